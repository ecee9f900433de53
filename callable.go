package docments

import (
	"fmt"
	"strings"

	"github.com/jward/docments/internal/pysrc"
)

// Kind identifies a Callable variant.
type Kind string

const (
	KindFunction Kind = "function"
	KindMethod   Kind = "method"
	KindClass    Kind = "class"
	KindRecord   Kind = "record"
)

// Callable is a documentable definition: a *Function, *Method, *Class or
// *Record. The set is closed.
type Callable interface {
	// Name is the qualified name within the module, e.g. "Widget.resize".
	Name() string
	Kind() Kind
	Module() *Module
	// Line is the 1-based line of the definition, decorators included.
	Line() int
	// Source returns the text comments are read from: the dedented
	// definition, or for a class its constructor's. ok is false when no
	// source is retrievable.
	Source() (text string, ok bool)
	// Docstring returns the cleaned docstring, inherited where Python's
	// inspect.getdoc would inherit it.
	Docstring() string
	// Signature returns the callable's signature with @delegates expansion
	// applied. For methods, classes and records it is the bound signature.
	Signature() (*Signature, error)

	definition() *pysrc.Def
}

// Function is a module-level function.
type Function struct {
	mod *Module
	d   *pysrc.Def
}

// Method is a function defined in a class body, looked up through its class.
type Method struct {
	mod   *Module
	class *pysrc.Def
	d     *pysrc.Def
}

// Class is a class documented through its constructor.
type Class struct {
	mod *Module
	d   *pysrc.Def
}

// Record is a dataclass, documented through its fields.
type Record struct {
	mod *Module
	d   *pysrc.Def
}

var (
	_ Callable = (*Function)(nil)
	_ Callable = (*Method)(nil)
	_ Callable = (*Class)(nil)
	_ Callable = (*Record)(nil)
)

func (f *Function) Name() string { return f.d.Qualname }
func (f *Function) Kind() Kind { return KindFunction }
func (f *Function) Module() *Module { return f.mod }
func (f *Function) Line() int { return f.d.StartLine }
func (f *Function) Docstring() string { return f.d.Docstring }
func (f *Function) definition() *pysrc.Def { return f.d }
func (f *Function) Source() (string, bool) { return snippetText(f.d) }

func (f *Function) Signature() (*Signature, error) {
	return signatureOf(f, make(map[string]bool))
}

func (m *Method) Name() string { return m.d.Qualname }
func (m *Method) Kind() Kind { return KindMethod }
func (m *Method) Module() *Module { return m.mod }
func (m *Method) Line() int { return m.d.StartLine }
func (m *Method) definition() *pysrc.Def { return m.d }
func (m *Method) Source() (string, bool) { return snippetText(m.d) }

// Docstring returns the method's docstring, or that of the same-named method
// in the nearest base class that documents it.
func (m *Method) Docstring() string {
	if m.d.Docstring != "" {
		return m.d.Docstring
	}
	doc := ""
	m.mod.walkBases(m.class, func(_ *Module, base *pysrc.Def) bool {
		if mem := base.Member(m.d.Name); mem != nil && mem.Docstring != "" {
			doc = mem.Docstring
			return true
		}
		return false
	})
	return doc
}

func (m *Method) Signature() (*Signature, error) {
	return signatureOf(m, make(map[string]bool))
}

// static reports whether the method is called without a receiver.
func (m *Method) static() bool {
	_, ok := m.d.Decorator("staticmethod")
	return ok
}

func (c *Class) Name() string { return c.d.Qualname }
func (c *Class) Kind() Kind { return KindClass }
func (c *Class) Module() *Module { return c.mod }
func (c *Class) Line() int { return c.d.StartLine }
func (c *Class) definition() *pysrc.Def { return c.d }

// Source returns the constructor's source, which may be inherited.
func (c *Class) Source() (string, bool) {
	_, init, err := c.mod.constructor(c.d)
	if err != nil || init == nil {
		return "", false
	}
	return snippetText(init)
}

// Docstring returns the class docstring, inherited from base classes when
// absent, falling back to the constructor's docstring.
func (c *Class) Docstring() string {
	return c.mod.classDoc(c.d, true)
}

func (c *Class) Signature() (*Signature, error) {
	return signatureOf(c, make(map[string]bool))
}

func (r *Record) Name() string { return r.d.Qualname }
func (r *Record) Kind() Kind { return KindRecord }
func (r *Record) Module() *Module { return r.mod }
func (r *Record) Line() int { return r.d.StartLine }
func (r *Record) definition() *pysrc.Def { return r.d }
func (r *Record) Docstring() string { return r.mod.classDoc(r.d, false) }

// Source returns the class definition. Records defined in the __main__
// module have no retrievable source.
func (r *Record) Source() (string, bool) {
	if r.mod.Name == MainModule {
		return "", false
	}
	return snippetText(r.d)
}

func (r *Record) Signature() (*Signature, error) {
	return signatureOf(r, make(map[string]bool))
}

func snippetText(d *pysrc.Def) (string, bool) {
	if d == nil || d.Snippet.Text == "" {
		return "", false
	}
	return d.Snippet.Text, true
}

// callableKey identifies a callable across modules.
func callableKey(c Callable) string {
	return c.Module().Name + ":" + c.Name()
}

// isRecord reports whether a class is decorated as a dataclass.
func isRecord(d *pysrc.Def) bool {
	_, ok := d.Decorator("dataclass")
	return ok
}

// neutralBases are base classes that contribute neither a constructor nor a
// docstring.
var neutralBases = map[string]bool{
	"object":          true,
	"ABC":             true,
	"abc.ABC":         true,
	"Generic":         true,
	"typing.Generic":  true,
	"Protocol":        true,
	"typing.Protocol": true,
}

func baseName(expr string) string {
	if i := strings.IndexByte(expr, '['); i >= 0 {
		expr = expr[:i]
	}
	return strings.TrimSpace(expr)
}

// errUnresolvedBase reports a base class that is not defined in the workspace.
type errUnresolvedBase struct{ base string }

func (e errUnresolvedBase) Error() string {
	return fmt.Sprintf("base class %q is not defined in the workspace", e.base)
}

// resolveClass resolves a base-class expression to a class definition.
func (m *Module) resolveClass(expr string) (*Module, *pysrc.Def, bool) {
	c, ok := m.resolve(baseName(expr))
	if !ok {
		return nil, nil, false
	}
	switch c.(type) {
	case *Class, *Record:
		return c.Module(), c.definition(), true
	}
	return nil, nil, false
}

// walkBases visits the base classes of cls depth first, left to right, until
// visit returns true. Unresolvable and neutral bases are skipped.
func (m *Module) walkBases(cls *pysrc.Def, visit func(*Module, *pysrc.Def) bool) {
	seen := make(map[*pysrc.Def]bool)
	var walk func(mod *Module, d *pysrc.Def) bool
	walk = func(mod *Module, d *pysrc.Def) bool {
		for _, b := range d.Bases {
			if neutralBases[baseName(b)] {
				continue
			}
			bm, bd, ok := mod.resolveClass(b)
			if !ok || seen[bd] {
				continue
			}
			seen[bd] = true
			if visit(bm, bd) || walk(bm, bd) {
				return true
			}
		}
		return false
	}
	walk(m, cls)
}

// constructor finds the __init__ a class uses, defined on the class itself or
// inherited. It returns nil without error when every base is neutral, and
// errUnresolvedBase when the lookup reaches a base outside the workspace.
func (m *Module) constructor(cls *pysrc.Def) (*Module, *pysrc.Def, error) {
	return m.constructorDepth(cls, 0)
}

func (m *Module) constructorDepth(cls *pysrc.Def, depth int) (*Module, *pysrc.Def, error) {
	if init := cls.Member("__init__"); init != nil {
		return m, init, nil
	}
	if depth > maxImportDepth {
		return nil, nil, nil
	}
	for _, b := range cls.Bases {
		if neutralBases[baseName(b)] {
			continue
		}
		bm, bd, ok := m.resolveClass(b)
		if !ok {
			return nil, nil, errUnresolvedBase{base: b}
		}
		if isRecord(bd) {
			// A dataclass's generated __init__ is not source-backed.
			continue
		}
		im, init, err := bm.constructorDepth(bd, depth+1)
		if err != nil || init != nil {
			return im, init, err
		}
	}
	return nil, nil, nil
}

// classDoc returns a class's docstring or the nearest base class's. With
// initFallback, the constructor's docstring is used when no class documents
// itself.
func (m *Module) classDoc(cls *pysrc.Def, initFallback bool) string {
	if cls.Docstring != "" {
		return cls.Docstring
	}
	doc := ""
	m.walkBases(cls, func(_ *Module, base *pysrc.Def) bool {
		doc = base.Docstring
		return doc != ""
	})
	if doc != "" || !initFallback {
		return doc
	}
	if _, init, err := m.constructor(cls); err == nil && init != nil {
		if init.Docstring != "" {
			return init.Docstring
		}
	}
	return ""
}
