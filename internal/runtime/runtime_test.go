package runtime

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/docments"
	"github.com/jward/docments/internal/pysrc"
)

const pyTestSource = `import os

def greet(name, # who to greet
          punct="!"):
    return "Hello, " + name + punct

def add(a, b):
    return a + b

class Server:
    def address(self):
        return "localhost"
`

// parsePySource is a test helper that parses Python source using tree-sitter
// directly and registers it in a Runtime's source store.
func parsePySource(t *testing.T, src string) (*sitter.Tree, *Runtime) {
	t.Helper()

	rt := NewRuntime(nil, "")

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(pysrc.Language())

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(src))
	require.NoError(t, err)

	rt.trees.add(tree, []byte(src))
	return tree, rt
}

// newIndexedRuntime indexes a small package and returns a Runtime over it.
func newIndexedRuntime(t *testing.T, opts ...RuntimeOption) *Runtime {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"pkg/__init__.py": "",
		"pkg/base.py": `def target(
    a,
    level=3, # how deep
):
    pass
`,
		"pkg/api.py": `from .base import target

@delegates(target)
def run(cmd, # command to run
        **kwargs):
    pass
`,
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	e, err := docments.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	_, err = e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	opts = append([]RuntimeOption{WithStore(e.Store())}, opts...)
	return NewRuntime(e.Query(), "", opts...)
}

func run(t *testing.T, rt *Runtime, script string, globals map[string]any) any {
	t.Helper()
	v, err := rt.RunSource(context.Background(), script, globals)
	require.NoError(t, err)
	return v
}

// --- Tree-sitter host functions ---

func TestParse_RootNodeType(t *testing.T) {
	tree, _ := parsePySource(t, pyTestSource)
	defer tree.Close()

	root := tree.RootNode()
	require.NotNil(t, root)
	assert.Equal(t, "module", root.Type())
	assert.False(t, root.HasError())
}

func TestParse_InvalidSourceStillReturnsTree(t *testing.T) {
	tree, _ := parsePySource(t, "def broken(:\n")
	defer tree.Close()

	root := tree.RootNode()
	require.NotNil(t, root)
	assert.True(t, root.HasError())
}

func TestNodeText_RootNodeReturnsFullSource(t *testing.T) {
	tree, rt := parsePySource(t, pyTestSource)
	defer tree.Close()

	root := tree.RootNode()
	src, ok := rt.trees.lookup(root.NamedChild(1))
	require.True(t, ok, "lookup walks up to the root")
	assert.Equal(t, pyTestSource, root.Content(src))
}

func TestRunSource_ParseAndNodeText(t *testing.T) {
	dir := t.TempDir()
	pyFile := filepath.Join(dir, "greet.py")
	require.NoError(t, os.WriteFile(pyFile, []byte(pyTestSource), 0o644))

	rt := NewRuntime(nil, "")
	script := `
tree := parse(test_file)
root := tree.RootNode()
assert(root.Type() == "module", "expected module")

names := []
count := int(root.NamedChildCount())
for i := 0; i < count; i++ {
    child := root.NamedChild(i)
    if child.Type() == "function_definition" {
        names.append(node_text(child.ChildByFieldName("name")))
    }
}
names
`
	got := run(t, rt, script, map[string]any{"test_file": pyFile})
	assert.Equal(t, []any{"greet", "add"}, got)
}

func TestRunSource_ParseMissingFile(t *testing.T) {
	rt := NewRuntime(nil, "")
	_, err := rt.RunSource(context.Background(), `parse("/nonexistent/x.py")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such file")
}

func TestRunSource_QueryHostFunction(t *testing.T) {
	rt := NewRuntime(nil, "")
	script := `
root := parse_src(src).RootNode()
matches := query("(function_definition name: (identifier) @name)", root)
names := []
for _, m := range matches {
    names.append(node_text(m["name"]))
}
names
`
	got := run(t, rt, script, map[string]any{"src": pyTestSource})
	assert.Equal(t, []any{"greet", "add", "address"}, got)
}

func TestRunSource_QueryNoMatches(t *testing.T) {
	rt := NewRuntime(nil, "")
	got := run(t, rt, `len(query("(class_definition) @c", parse_src("x = 1\n").RootNode()))`, nil)
	assert.Equal(t, int64(0), got)
}

func TestRunSource_QueryInvalidPattern(t *testing.T) {
	rt := NewRuntime(nil, "")
	_, err := rt.RunSource(context.Background(),
		`query("(not_a_real_node_type @x)", parse_src("x = 1\n").RootNode())`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestRunSource_NodeChild(t *testing.T) {
	rt := NewRuntime(nil, "")
	script := `
fn := parse_src("def f(): pass\n").RootNode().NamedChild(0)
[node_text(node_child(fn, "name")), node_child(fn, "return_type") == nil]
`
	got := run(t, rt, script, nil)
	assert.Equal(t, []any{"f", true}, got)
}

func TestRunSource_Comments(t *testing.T) {
	rt := NewRuntime(nil, "")
	src := "x = 1  # one\n#\ny = 2 #   two\n"

	got := run(t, rt, `comments(src)`, map[string]any{"src": src})
	assert.Equal(t, map[string]any{"1": " one", "3": "   two"}, got)

	got = run(t, rt, `len(comments(src, true))`, map[string]any{"src": src})
	assert.Equal(t, int64(3), got, "a bare marker is kept on request")
}

// --- Live extraction ---

func TestRunSource_Extract(t *testing.T) {
	rt := NewRuntime(nil, "")

	got := run(t, rt, `extract(src, "greet")`, map[string]any{"src": pyTestSource})
	assert.Equal(t, map[string]any{"name": "who to greet", "punct": nil, "return": nil}, got)

	got = run(t, rt, `extract(src, "greet", true)["punct"]`, map[string]any{"src": pyTestSource})
	assert.Equal(t, map[string]any{"docment": nil, "anno": "str", "default": `"!"`}, got)
}

func TestRunSource_ExtractUnknownCallable(t *testing.T) {
	rt := NewRuntime(nil, "")
	_, err := rt.RunSource(context.Background(), `extract(src, "missing")`, map[string]any{"src": pyTestSource})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

// --- Index queries ---

func TestRunSource_Docments(t *testing.T) {
	rt := newIndexedRuntime(t)
	script := `
d := docments("pkg.api", "run")
names := []
for _, p := range d["params"] {
    names.append(p["name"])
}
[d["delegates_to"], names, d["params"][1]["docment"]]
`
	got := run(t, rt, script, nil)
	assert.Equal(t, []any{
		"pkg.base:target",
		[]any{"cmd", "level", "return"},
		"how deep",
	}, got)
}

func TestRunSource_DocmentsNotFound(t *testing.T) {
	rt := newIndexedRuntime(t)
	got := run(t, rt, `docments("pkg.api", "nothing") == nil`, nil)
	assert.Equal(t, true, got)
}

func TestRunSource_LookupAndDelegators(t *testing.T) {
	rt := newIndexedRuntime(t)
	got := run(t, rt, `[lookup("target")[0]["module"], delegators("pkg.base", "target")[0]["qualname"]]`, nil)
	assert.Equal(t, []any{"pkg.base", "run"}, got)
}

func TestRunSource_SearchAndUndocumented(t *testing.T) {
	rt := newIndexedRuntime(t)

	got := run(t, rt, `[len(search("deep")), len(search("deep", "pkg.base")), undocumented()[0]["name"]]`, nil)
	assert.Equal(t, []any{int64(2), int64(1), "a"}, got)
}

func TestRunSource_Coverage(t *testing.T) {
	rt := newIndexedRuntime(t)

	got := run(t, rt, `coverage()`, nil)
	m, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(2), m["callables"])
	assert.Equal(t, int64(4), m["params"])
	assert.Equal(t, int64(3), m["documented"])
	assert.InDelta(t, 0.75, m["ratio"], 1e-9)
}

func TestRunSource_DBQuery(t *testing.T) {
	rt := newIndexedRuntime(t)

	got := run(t, rt, `db_query("SELECT COUNT(*) AS n FROM files WHERE module LIKE ?", "pkg%")[0]["n"]`, nil)
	assert.Equal(t, int64(3), got)

	_, err := rt.RunSource(context.Background(), `db_query("DELETE FROM files")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only SELECT")
}

func TestRunSource_IndexGlobalsNeedQueryBuilder(t *testing.T) {
	rt := NewRuntime(nil, "")
	_, err := rt.RunSource(context.Background(), `docments("pkg", "f")`, nil)
	require.Error(t, err)
}

func TestRunSource_Log(t *testing.T) {
	var buf bytes.Buffer
	rt := NewRuntime(nil, "", WithRuntimeLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	run(t, rt, `log.Info("checking coverage")`, nil)
	assert.Contains(t, buf.String(), "checking coverage")
	assert.Contains(t, buf.String(), "source=script")
}

// --- Script loading ---

func TestRunScript_LoadsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(`1 + 1`), 0o644))

	rt := NewRuntime(nil, dir)
	got, err := rt.RunScript(context.Background(), "test.risor", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)
}

func TestRunScript_MissingFile(t *testing.T) {
	rt := NewRuntime(nil, t.TempDir())
	_, err := rt.RunScript(context.Background(), "nonexistent.risor", nil)
	require.Error(t, err)
}

func TestLoadScript_FromFS(t *testing.T) {
	t.Parallel()

	content := `x := 42`
	mapFS := fstest.MapFS{
		"reports/coverage.risor": &fstest.MapFile{Data: []byte(content)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("reports/coverage.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// Absolute-style path should be resolved within the FS.
	got, err = rt.LoadScript("/reports/coverage.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = rt.LoadScript("missing.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestLoadScript_FallsBackToDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	content := `z := 7`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(content), 0o644))

	rt := NewRuntime(nil, dir)
	got, err := rt.LoadScript("test.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

// --- Importer wiring ---

func TestImport_FSImporter(t *testing.T) {
	// Risor's FSImporter resolves "lib_helpers" by trying name + ".risor".
	mapFS := fstest.MapFS{
		"lib_helpers.risor": &fstest.MapFile{Data: []byte(`
func documented(d) {
	n := 0
	for _, p := range d["params"] {
		if p["docment"] != nil {
			n += 1
		}
	}
	return n
}
`)},
	}

	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))
	script := `
import lib_helpers
lib_helpers.documented({"params": [{"docment": "x"}, {"docment": nil}]})
`
	got := run(t, rt, script, nil)
	assert.Equal(t, int64(1), got)
}

func TestImport_LocalImporter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "math_utils.risor"), []byte(`
func double(x) {
	return x * 2
}
`), 0o644))

	rt := NewRuntime(nil, dir)
	got := run(t, rt, "import math_utils\nmath_utils.double(21)\n", nil)
	assert.Equal(t, int64(42), got)
}

func TestImport_GlobalsAvailableInImportedModules(t *testing.T) {
	// Imported modules can reference host-provided globals.
	mapFS := fstest.MapFS{
		"helper.risor": &fstest.MapFile{Data: []byte(`
func names(src) {
	return keys(extract(src, "add"))
}
`)},
	}

	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))
	got := run(t, rt, "import helper\nsorted(helper.names(src))\n", map[string]any{"src": pyTestSource})
	assert.Equal(t, []any{"a", "b", "return"}, got)
}
