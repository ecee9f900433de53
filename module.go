package docments

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jward/docments/internal/pysrc"
)

// MainModule is the module name of interactively defined code. Records
// defined there have no retrievable source.
const MainModule = "__main__"

// maxImportDepth bounds the import chains followed when resolving a name, so
// that circular re-exports terminate.
const maxImportDepth = 16

// Module is a parsed Python module. It is read-only after construction and
// safe for concurrent use.
type Module struct {
	Name      string // dotted module name
	Path      string
	IsPackage bool // an __init__ module

	src *pysrc.Module
	ws  *Workspace // nil for a standalone module
}

// Parse parses src as the module called name.
func Parse(ctx context.Context, name string, src []byte) (*Module, error) {
	pm, err := pysrc.Parse(ctx, name, src)
	if err != nil {
		return nil, fmt.Errorf("docments: parse %s: %w", name, err)
	}
	return &Module{Name: name, src: pm}, nil
}

// Load reads and parses the Python file at path as a standalone module named
// after the file.
func Load(ctx context.Context, path string) (*Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("docments: read %s: %w", path, err)
	}
	m, err := Parse(ctx, ModuleName(filepath.Dir(path), path), src)
	if err != nil {
		return nil, err
	}
	m.Path = path
	m.IsPackage = isInitFile(path)
	return m, nil
}

// ModuleName derives a dotted module name from a file path relative to root:
// "pkg/util.py" is "pkg.util" and "pkg/__init__.py" is "pkg".
func ModuleName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if n := len(parts); n > 1 && parts[n-1] == "__init__" {
		parts = parts[:n-1]
	} else if n == 1 && parts[0] == "__init__" {
		parts[0] = filepath.Base(filepath.Dir(path))
	}
	return strings.Join(parts, ".")
}

func isInitFile(path string) bool {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) == "__init__"
}

// Source returns the module's source text.
func (m *Module) Source() []byte { return m.src.Source }

// HasErrors reports whether the module contained syntax errors.
func (m *Module) HasErrors() bool { return m.src.HasErrors }

// Imports returns the absolute names of the modules m imports from.
func (m *Module) Imports() []string {
	seen := make(map[string]bool)
	var out []string
	for _, imp := range m.src.Imports {
		name := m.absModule(imp)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Lookup returns the callable with the given qualified name, such as "f",
// "Widget" or "Widget.resize".
func (m *Module) Lookup(qualname string) (Callable, error) {
	c, ok := m.lookupParts(strings.Split(qualname, "."))
	if !ok {
		return nil, fmt.Errorf("docments: %s.%s: %w", m.Name, qualname, ErrNotFound)
	}
	return c, nil
}

// Callables returns every function, class and method defined in the module,
// in source order with methods following their class.
func (m *Module) Callables() []Callable {
	var out []Callable
	var walk func(d *pysrc.Def, owner *pysrc.Def)
	walk = func(d *pysrc.Def, owner *pysrc.Def) {
		out = append(out, m.wrap(d, owner))
		for _, mem := range d.Members {
			walk(mem, d)
		}
	}
	for _, d := range m.src.Defs {
		walk(d, nil)
	}
	return out
}

func (m *Module) lookupParts(parts []string) (Callable, bool) {
	d := m.src.Def(parts[0])
	if d == nil {
		return nil, false
	}
	var owner *pysrc.Def
	for _, p := range parts[1:] {
		mem := d.Member(p)
		if mem == nil {
			return nil, false
		}
		owner, d = d, mem
	}
	return m.wrap(d, owner), true
}

// wrap returns the Callable variant for a definition. owner is the class a
// function is defined in, if any.
func (m *Module) wrap(d *pysrc.Def, owner *pysrc.Def) Callable {
	switch {
	case d.Kind == pysrc.ClassDef && isRecord(d):
		return &Record{mod: m, d: d}
	case d.Kind == pysrc.ClassDef:
		return &Class{mod: m, d: d}
	case owner != nil:
		return &Method{mod: m, class: owner, d: d}
	}
	return &Function{mod: m, d: d}
}

// resolve resolves a dotted Python name as seen from the top level of m,
// following imports into other modules of the workspace.
func (m *Module) resolve(name string) (Callable, bool) {
	return m.resolveDepth(name, 0)
}

func (m *Module) resolveDepth(name string, depth int) (Callable, bool) {
	if depth > maxImportDepth || name == "" {
		return nil, false
	}
	parts := strings.Split(name, ".")
	if m.src.Def(parts[0]) != nil {
		return m.lookupParts(parts)
	}
	if m.ws == nil {
		return nil, false
	}

	// Later imports shadow earlier ones.
	for i := len(m.src.Imports) - 1; i >= 0; i-- {
		imp := m.src.Imports[i]
		switch {
		case imp.Name == "":
			// import a.b [as c]
			if !strings.HasPrefix(name, imp.Alias+".") {
				continue
			}
			if target := m.ws.Module(imp.Module); target != nil {
				return target.resolveDepth(name[len(imp.Alias)+1:], depth+1)
			}
			return nil, false

		case imp.Name == "*":
			if target := m.ws.Module(m.absModule(imp)); target != nil {
				if c, ok := target.resolveDepth(name, depth+1); ok {
					return c, true
				}
			}

		case imp.Alias == parts[0]:
			from := m.absModule(imp)
			rest := strings.Join(parts[1:], ".")
			if target := m.ws.Module(from); target != nil {
				qual := imp.Name
				if rest != "" {
					qual += "." + rest
				}
				if c, ok := target.resolveDepth(qual, depth+1); ok {
					return c, true
				}
			}
			// from pkg import submodule
			if sub := m.ws.Module(joinModule(from, imp.Name)); sub != nil && rest != "" {
				return sub.resolveDepth(rest, depth+1)
			}
			return nil, false
		}
	}
	return nil, false
}

// absModule returns the absolute module name an import refers to.
func (m *Module) absModule(imp pysrc.Import) string {
	if imp.Level == 0 {
		return imp.Module
	}
	pkg := m.Name
	if !m.IsPackage {
		pkg = parentModule(pkg)
	}
	for i := 1; i < imp.Level; i++ {
		pkg = parentModule(pkg)
	}
	return joinModule(pkg, imp.Module)
}

func parentModule(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

func joinModule(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "." + b
}

// Workspace is a set of modules that resolve names against each other
// through their import statements.
type Workspace struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

// NewWorkspace returns an empty Workspace.
func NewWorkspace() *Workspace {
	return &Workspace{modules: make(map[string]*Module)}
}

// Add adds m to the workspace, replacing any module with the same name.
func (w *Workspace) Add(m *Module) {
	w.mu.Lock()
	defer w.mu.Unlock()
	m.ws = w
	w.modules[m.Name] = m
}

// Remove drops the module called name.
func (w *Workspace) Remove(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.modules, name)
}

// Module returns the module called name, or nil.
func (w *Workspace) Module(name string) *Module {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.modules[name]
}

// Modules returns all modules sorted by name.
func (w *Workspace) Modules() []*Module {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Module, 0, len(w.modules))
	for _, m := range w.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadFile parses the file at path and adds it under its module name
// relative to root.
func (w *Workspace) LoadFile(ctx context.Context, root, path string) (*Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("docments: read %s: %w", path, err)
	}
	return w.LoadSource(ctx, root, path, src)
}

// LoadSource is LoadFile for content that has already been read.
func (w *Workspace) LoadSource(ctx context.Context, root, path string, src []byte) (*Module, error) {
	m, err := Parse(ctx, ModuleName(root, path), src)
	if err != nil {
		return nil, err
	}
	m.Path = path
	m.IsPackage = isInitFile(path)
	w.Add(m)
	return m, nil
}

// LoadDir walks root and adds every Python file below it. Hidden
// directories and __pycache__ are skipped.
func LoadDir(ctx context.Context, root string) (*Workspace, error) {
	w := NewWorkspace()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || skipDirs[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}
		if !pysrc.IsPythonFile(path) {
			return nil
		}
		_, err = w.LoadFile(ctx, root, path)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("docments: load %s: %w", root, err)
	}
	return w, nil
}
