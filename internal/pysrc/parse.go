package pysrc

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// moduleParser turns a tree-sitter Python tree into Defs.
type moduleParser struct {
	src     []byte
	consts  map[string]string
	classes map[string]bool
}

// Parse parses a Python module. Syntax errors do not fail the parse; they
// are reported through Module.HasErrors and affected definitions are
// extracted as far as tree-sitter recovered them.
func Parse(ctx context.Context, path string, src []byte) (*Module, error) {
	tree, err := parseTree(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("pysrc: %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	p := &moduleParser{
		src:     src,
		consts:  make(map[string]string),
		classes: make(map[string]bool),
	}
	m := &Module{
		Path:      path,
		Source:    src,
		Constants: p.consts,
		HasErrors: root.HasError(),
	}

	top := statements(root)
	for _, st := range top {
		if def, _ := unwrapDecorated(st); def != nil && def.Type() == "class_definition" {
			p.classes[p.text(def.ChildByFieldName("name"))] = true
		}
	}
	// Constants are recorded in statement order so a default only sees the
	// bindings made before its def, as at import time.
	for _, st := range top {
		switch st.Type() {
		case "expression_statement":
			p.constant(st)
		case "import_statement", "import_from_statement":
			m.Imports = append(m.Imports, p.imports(st)...)
		case "function_definition", "class_definition", "decorated_definition":
			if d := p.definition(st, ""); d != nil {
				m.Defs = append(m.Defs, d)
			}
		}
	}
	return m, nil
}

func (p *moduleParser) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(p.src)
}

func (p *moduleParser) constant(st *sitter.Node) {
	a := st.NamedChild(0)
	if a == nil || a.Type() != "assignment" {
		return
	}
	left, right := a.ChildByFieldName("left"), a.ChildByFieldName("right")
	if left == nil || right == nil || left.Type() != "identifier" {
		return
	}
	if t := p.inferType(right); t != "" {
		p.consts[p.text(left)] = t
	} else {
		delete(p.consts, p.text(left))
	}
}

func (p *moduleParser) imports(st *sitter.Node) []Import {
	var out []Import
	if st.Type() == "import_statement" {
		for i := 0; i < int(st.NamedChildCount()); i++ {
			c := st.NamedChild(i)
			switch c.Type() {
			case "dotted_name":
				out = append(out, Import{Module: p.text(c), Alias: p.text(c)})
			case "aliased_import":
				out = append(out, Import{
					Module: p.text(c.ChildByFieldName("name")),
					Alias:  p.text(c.ChildByFieldName("alias")),
				})
			}
		}
		return out
	}

	modNode := st.ChildByFieldName("module_name")
	if modNode == nil {
		return nil
	}
	modText := p.text(modNode)
	level := len(modText) - len(strings.TrimLeft(modText, "."))
	module := modText[level:]
	for i := 0; i < int(st.NamedChildCount()); i++ {
		c := st.NamedChild(i)
		if c.StartByte() == modNode.StartByte() {
			continue
		}
		imp := Import{Module: module, Level: level}
		switch c.Type() {
		case "dotted_name":
			imp.Name, imp.Alias = p.text(c), p.text(c)
		case "aliased_import":
			imp.Name = p.text(c.ChildByFieldName("name"))
			imp.Alias = p.text(c.ChildByFieldName("alias"))
		case "wildcard_import":
			imp.Name = "*"
		default:
			continue
		}
		out = append(out, imp)
	}
	return out
}

func (p *moduleParser) definition(n *sitter.Node, scope string) *Def {
	def, decorators := unwrapDecorated(n)
	if def == nil {
		return nil
	}
	name := p.text(def.ChildByFieldName("name"))
	if name == "" {
		return nil
	}
	qual := name
	if scope != "" {
		qual = scope + "." + name
	}

	var d *Def
	switch def.Type() {
	case "function_definition":
		d = p.function(def)
	case "class_definition":
		d = p.class(def, qual)
	default:
		return nil
	}
	d.Name, d.Qualname = name, qual
	for _, dn := range decorators {
		d.Decorators = append(d.Decorators, p.decorator(dn))
	}

	start, end := int(n.StartPoint().Row), int(n.EndPoint().Row)
	if n.EndPoint().Column == 0 && end > start {
		end--
	}
	d.StartLine, d.EndLine = start+1, end+1
	d.Snippet = snippet(p.src, start, end)
	return d
}

func (p *moduleParser) function(def *sitter.Node) *Def {
	d := &Def{Kind: FunctionDef}
	d.Async = def.ChildCount() > 0 && def.Child(0).Type() == "async"
	if ps := def.ChildByFieldName("parameters"); ps != nil {
		d.Params = parameters(ps, p.src, p.inferType)
	}
	if rt := def.ChildByFieldName("return_type"); rt != nil {
		d.Returns = p.text(rt)
	}
	d.Docstring = p.docstring(def.ChildByFieldName("body"))
	return d
}

func (p *moduleParser) class(def *sitter.Node, qual string) *Def {
	d := &Def{Kind: ClassDef}
	if sc := def.ChildByFieldName("superclasses"); sc != nil {
		for i := 0; i < int(sc.NamedChildCount()); i++ {
			c := sc.NamedChild(i)
			if c.Type() == "keyword_argument" || c.Type() == "comment" {
				continue
			}
			d.Bases = append(d.Bases, p.text(c))
		}
	}
	body := def.ChildByFieldName("body")
	if body == nil {
		return d
	}
	d.Docstring = p.docstring(body)
	for _, st := range statements(body) {
		switch st.Type() {
		case "function_definition", "class_definition", "decorated_definition":
			if m := p.definition(st, qual); m != nil {
				d.Members = append(d.Members, m)
			}
		case "expression_statement":
			if f, ok := p.field(st); ok {
				d.Fields = append(d.Fields, f)
			}
		}
	}
	return d
}

// field parses an annotated assignment (`name: T` or `name: T = v`).
func (p *moduleParser) field(st *sitter.Node) (Field, bool) {
	a := st.NamedChild(0)
	if a == nil || a.Type() != "assignment" {
		return Field{}, false
	}
	left, typ := a.ChildByFieldName("left"), a.ChildByFieldName("type")
	if left == nil || typ == nil || left.Type() != "identifier" {
		return Field{}, false
	}
	f := Field{
		Name:       p.text(left),
		Annotation: p.text(typ),
		Line:       line(left),
	}
	f.ClassVar = strings.HasPrefix(f.Annotation, "ClassVar") || strings.HasPrefix(f.Annotation, "typing.ClassVar")

	right := a.ChildByFieldName("right")
	if right == nil {
		return f, true
	}
	if fn := p.text(right.ChildByFieldName("function")); right.Type() == "call" && (fn == "field" || fn == "dataclasses.field") {
		if args := right.ChildByFieldName("arguments"); args != nil {
			for i := 0; i < int(args.NamedChildCount()); i++ {
				kw := args.NamedChild(i)
				if kw.Type() != "keyword_argument" {
					continue
				}
				value := kw.ChildByFieldName("value")
				switch p.text(kw.ChildByFieldName("name")) {
				case "default":
					f.Default, f.DefaultType = p.text(value), p.inferType(value)
				case "default_factory":
					f.Default = "<factory>"
				case "init":
					f.NoInit = p.text(value) == "False"
				}
			}
		}
		return f, true
	}
	f.Default, f.DefaultType = p.text(right), p.inferType(right)
	return f, true
}

func (p *moduleParser) docstring(body *sitter.Node) string {
	if body == nil {
		return ""
	}
	sts := statements(body)
	if len(sts) == 0 || sts[0].Type() != "expression_statement" {
		return ""
	}
	s := sts[0].NamedChild(0)
	if s == nil || (s.Type() != "string" && s.Type() != "concatenated_string") {
		return ""
	}
	return CleanDoc(p.stringValue(s))
}

func (p *moduleParser) stringValue(n *sitter.Node) string {
	if n.Type() != "concatenated_string" {
		return StringValue(p.text(n))
	}
	var b strings.Builder
	for i := 0; i < int(n.NamedChildCount()); i++ {
		b.WriteString(StringValue(p.text(n.NamedChild(i))))
	}
	return b.String()
}

func (p *moduleParser) decorator(n *sitter.Node) Decorator {
	var d Decorator
	expr := n.NamedChild(0)
	if expr == nil {
		return d
	}
	if expr.Type() != "call" {
		d.Name = p.text(expr)
		return d
	}
	d.Name = p.text(expr.ChildByFieldName("function"))
	d.Call = true
	args := expr.ChildByFieldName("arguments")
	if args == nil {
		return d
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		a := args.NamedChild(i)
		switch a.Type() {
		case "comment":
		case "keyword_argument":
			if d.Kwargs == nil {
				d.Kwargs = make(map[string]Arg)
			}
			d.Kwargs[p.text(a.ChildByFieldName("name"))] = p.arg(a.ChildByFieldName("value"))
		default:
			d.Args = append(d.Args, p.arg(a))
		}
	}
	return d
}

func (p *moduleParser) arg(n *sitter.Node) Arg {
	if n == nil {
		return Arg{}
	}
	a := Arg{Text: p.text(n), Kind: n.Type()}
	switch n.Type() {
	case "string", "concatenated_string":
		a.Strings = []string{p.stringValue(n)}
	case "list", "tuple", "set":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() == "string" || c.Type() == "concatenated_string" {
				a.Strings = append(a.Strings, p.stringValue(c))
			}
		}
	}
	return a
}
