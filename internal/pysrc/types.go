package pysrc

import "strings"

// ParamKind mirrors the parameter kinds of Python's inspect module.
type ParamKind int

const (
	PositionalOnly ParamKind = iota
	PositionalOrKeyword
	VarPositional
	KeywordOnly
	VarKeyword
)

func (k ParamKind) String() string {
	switch k {
	case PositionalOnly:
		return "positional_only"
	case PositionalOrKeyword:
		return "positional_or_keyword"
	case VarPositional:
		return "var_positional"
	case KeywordOnly:
		return "keyword_only"
	case VarKeyword:
		return "var_keyword"
	}
	return "unknown"
}

// Param is a parameter as declared in a def statement.
type Param struct {
	Name        string
	Kind        ParamKind
	Annotation  string // source text, "" when absent
	Default     string // source text, "" when absent
	DefaultType string // inferred type of Default, "" when unknown
	Line        int
}

// Field is an annotated assignment in a class body.
type Field struct {
	Name        string
	Annotation  string
	Default     string
	DefaultType string
	Line        int
	ClassVar    bool
	NoInit      bool // field(init=False)
}

// Arg is one argument of a decorator call.
type Arg struct {
	Text    string   // expression source
	Kind    string   // tree-sitter node type
	Strings []string // values of a string literal or a list/tuple/set of them
}

// Decorator is a decorator applied to a definition.
type Decorator struct {
	Name   string // callee as written: "delegates", "dataclasses.dataclass"
	Call   bool
	Args   []Arg
	Kwargs map[string]Arg
}

// Is reports whether the decorator's name, or its last dotted segment, is name.
func (d Decorator) Is(name string) bool {
	if d.Name == name {
		return true
	}
	if i := strings.LastIndexByte(d.Name, '.'); i >= 0 {
		return d.Name[i+1:] == name
	}
	return false
}

// Snippet is the dedented source text of one definition, decorators included.
type Snippet struct {
	Text string
	Line int // 1-based file line of the first line of Text
}

// DefKind distinguishes function and class definitions.
type DefKind int

const (
	FunctionDef DefKind = iota
	ClassDef
)

// Def is a function, method or class definition.
type Def struct {
	Kind       DefKind
	Name       string
	Qualname   string
	Async      bool
	Decorators []Decorator
	Params     []Param
	Returns    string
	Bases      []string
	Members    []*Def
	Fields     []Field
	Docstring  string
	Snippet    Snippet
	StartLine  int
	EndLine    int
}

// Decorator returns the first decorator matching name.
func (d *Def) Decorator(name string) (Decorator, bool) {
	for _, dec := range d.Decorators {
		if dec.Is(name) {
			return dec, true
		}
	}
	return Decorator{}, false
}

// Member returns the method named name defined directly in a class body.
func (d *Def) Member(name string) *Def {
	for _, m := range d.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Import is one name bound by an import statement.
//
//	import a.b as c        -> {Module: "a.b", Alias: "c"}
//	from ..a import b as c -> {Module: "a", Level: 2, Name: "b", Alias: "c"}
type Import struct {
	Module string
	Level  int
	Name   string
	Alias  string
}

// Module is the parsed content of one Python file.
type Module struct {
	Path      string
	Source    []byte
	Defs      []*Def
	Imports   []Import
	Constants map[string]string // module-level name -> inferred literal type
	HasErrors bool
}

// Def returns the top-level definition named name.
func (m *Module) Def(name string) *Def {
	for _, d := range m.Defs {
		if d.Name == name {
			return d
		}
	}
	return nil
}
