package docments

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	pkgBaseSource = `def target(
    a,
    level=3, # how deep
):
    pass
`
	pkgAPISource = `from .base import target

@delegates(target)
def run(cmd, # command to run
        **kwargs):
    "Run a command."
`
)

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	e, err := New(dbPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

// writeTree writes files, keyed by slash-separated relative path, under root.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// newPkgTree writes the pkg fixture: a package whose api module delegates to
// its base module.
func newPkgTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"pkg/__init__.py": "",
		"pkg/base.py":     pkgBaseSource,
		"pkg/api.py":      pkgAPISource,
	})
	return root
}

func indexDir(t *testing.T, e *Engine, root string) *IndexStats {
	t.Helper()
	stats, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	return stats
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_CreatesStore(t *testing.T) {
	e := newTestEngine(t)
	require.NotNil(t, e.Store())
	require.NotNil(t, e.Query())
	require.NotNil(t, e.Workspace())
	assert.GreaterOrEqual(t, e.workers, 1)
}

func TestNew_InvalidPath(t *testing.T) {
	_, err := New("/nonexistent/dir/db.sqlite")
	require.Error(t, err)
}

func TestWithWorkers(t *testing.T) {
	e := newTestEngine(t, WithWorkers(3))
	assert.Equal(t, 3, e.workers)
}

// =============================================================================
// IndexDirectory
// =============================================================================

func TestIndexDirectory_ExtractsDocments(t *testing.T) {
	e := newTestEngine(t)
	stats := indexDir(t, e, newPkgTree(t))

	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 3, stats.Extracted)
	assert.Equal(t, 0, stats.Unchanged)
	assert.Equal(t, 2, stats.Callables)
	assert.Equal(t, 0, stats.Failed)
	assert.Empty(t, stats.Changed, "first indexing reports no changes")

	entry, err := e.Query().Docments("pkg.api", "run")
	require.NoError(t, err)
	assert.Equal(t, "function", entry.Kind)
	assert.Equal(t, "pkg.base:target", entry.DelegatesTo)
	assert.Equal(t, "Run a command.", entry.Docstring)

	var names, kinds []string
	for _, p := range entry.Params {
		names = append(names, p.Name)
		kinds = append(kinds, p.Kind)
	}
	assert.Equal(t, []string{"cmd", "level", "return"}, names)
	assert.Equal(t, []string{"positional_or_keyword", "keyword_only", "return"}, kinds)
	require.NotNil(t, entry.Params[1].Docment)
	assert.Equal(t, "how deep", *entry.Params[1].Docment)
	assert.Equal(t, "3", entry.Params[1].Default)
}

func TestIndexDirectory_RecordsImports(t *testing.T) {
	e := newTestEngine(t)
	root := newPkgTree(t)
	indexDir(t, e, root)

	f, err := e.Store().FileByPath(filepath.Join(root, "pkg", "api.py"))
	require.NoError(t, err)
	require.NotNil(t, f)
	imps, err := e.Store().ImportsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, imps, 1)
	assert.Equal(t, "pkg.base", imps[0].Module)
}

func TestIndexDirectory_SkipsUnchangedFiles(t *testing.T) {
	e := newTestEngine(t)
	root := newPkgTree(t)
	indexDir(t, e, root)

	stats := indexDir(t, e, root)
	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 0, stats.Extracted)
	assert.Equal(t, 3, stats.Unchanged)
	assert.Empty(t, stats.Changed)
}

func TestIndexDirectory_ChangeReextractsImporters(t *testing.T) {
	e := newTestEngine(t)
	root := newPkgTree(t)
	indexDir(t, e, root)

	writeTree(t, root, map[string]string{
		"pkg/base.py": `def target(
    a,
    level=3, # recursion depth
):
    pass
`,
	})
	stats := indexDir(t, e, root)

	assert.Equal(t, 2, stats.Extracted, "base and its importer")
	assert.Equal(t, 1, stats.Unchanged)
	assert.Equal(t, []string{"pkg.api:run", "pkg.base:target"}, stats.Changed)

	entry, err := e.Query().Docments("pkg.api", "run")
	require.NoError(t, err)
	require.NotNil(t, entry.Params[1].Docment)
	assert.Equal(t, "recursion depth", *entry.Params[1].Docment)
}

func TestIndexDirectory_MovedDefinitionIsNotAChange(t *testing.T) {
	e := newTestEngine(t)
	root := newPkgTree(t)
	indexDir(t, e, root)

	writeTree(t, root, map[string]string{"pkg/base.py": "\n\n" + pkgBaseSource})
	stats := indexDir(t, e, root)

	assert.Equal(t, 2, stats.Extracted)
	assert.Empty(t, stats.Changed)

	cs, err := e.Query().Callables(filepath.Join(root, "pkg", "base.py"))
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, 3, cs[0].StartLine)
}

func TestIndexDirectory_RemovesMissingFiles(t *testing.T) {
	e := newTestEngine(t)
	root := newPkgTree(t)
	indexDir(t, e, root)

	require.NoError(t, os.Remove(filepath.Join(root, "pkg", "api.py")))
	stats := indexDir(t, e, root)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, 2, stats.Files)

	_, err := e.Query().Docments("pkg.api", "run")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Nil(t, e.Workspace().Module("pkg.api"))
}

func TestIndexDirectory_RemovedTargetReextractsImporters(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	e := newTestEngine(t, WithEngineLogger(logger))
	root := newPkgTree(t)
	indexDir(t, e, root)

	require.NoError(t, os.Remove(filepath.Join(root, "pkg", "base.py")))
	stats := indexDir(t, e, root)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, 1, stats.Extracted)
	assert.Contains(t, stats.Changed, "pkg.api:run")

	entry, err := e.Query().Docments("pkg.api", "run")
	require.NoError(t, err)
	assert.Empty(t, entry.DelegatesTo)
	assert.Contains(t, buf.String(), "delegation target not found")
}

func TestIndexDirectory_Force(t *testing.T) {
	root := newPkgTree(t)
	dbPath := filepath.Join(t.TempDir(), "test.db")

	e, err := New(dbPath)
	require.NoError(t, err)
	indexDir(t, e, root)
	require.NoError(t, e.Close())

	forced, err := New(dbPath, WithForce(true))
	require.NoError(t, err)
	defer forced.Close()
	stats := indexDir(t, forced, root)
	assert.Equal(t, 3, stats.Extracted)
	assert.Equal(t, 0, stats.Unchanged)
	assert.Empty(t, stats.Changed)
}

func TestIndexDirectory_Exclude(t *testing.T) {
	e := newTestEngine(t, WithExclude("api.py", "build"))
	root := newPkgTree(t)
	writeTree(t, root, map[string]string{"build/lib/gen.py": "def gen(): pass\n"})

	stats := indexDir(t, e, root)
	assert.Equal(t, 2, stats.Files)

	_, err := e.Query().Docments("pkg.api", "run")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.Query().Docments("build.lib.gen", "gen")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndexDirectory_SkipsVirtualenvs(t *testing.T) {
	e := newTestEngine(t)
	root := newPkgTree(t)
	writeTree(t, root, map[string]string{
		"venv/lib/site.py":       "def site(): pass\n",
		".hidden/secret.py":      "def secret(): pass\n",
		"pkg/__pycache__/x.py":   "def x(): pass\n",
		"pkg/notes.txt":          "not python",
		"pkg/stubs/typing_x.pyi": "def stub(a: int) -> int: ...\n",
	})

	stats := indexDir(t, e, root)
	assert.Equal(t, 4, stats.Files)
}

func TestIndexDirectory_RecordsFailedCallables(t *testing.T) {
	e := newTestEngine(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"remote.py": `import somewhere

class Remote(somewhere.Thing):
    pass
`,
	})

	stats := indexDir(t, e, root)
	assert.Equal(t, 1, stats.Callables)
	assert.Equal(t, 1, stats.Failed)

	entry, err := e.Query().Docments("remote", "Remote")
	require.NoError(t, err)
	assert.Contains(t, entry.Error, ErrSignatureUnavailable.Error())
	assert.Empty(t, entry.Params)
}

func TestIndexDirectory_SyntaxErrorsExtractWhatParsed(t *testing.T) {
	e := newTestEngine(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"broken.py": `def ok(a, # fine
       ):
    pass

def bad(:
`,
	})

	indexDir(t, e, root)
	entry, err := e.Query().Docments("broken", "ok")
	require.NoError(t, err)
	require.NotEmpty(t, entry.Params)
	require.NotNil(t, entry.Params[0].Docment)
	assert.Equal(t, "fine", *entry.Params[0].Docment)
}

// cancelOnHandler cancels a context when a record with the given message is
// logged.
type cancelOnHandler struct {
	slog.Handler
	msg    string
	cancel context.CancelFunc
}

func (h *cancelOnHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Message == h.msg {
		h.cancel()
	}
	return h.Handler.Handle(ctx, r)
}

func TestIndexDirectory_CanceledContext(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.IndexDirectory(ctx, newPkgTree(t))
	require.Error(t, err)
}

func TestIndexDirectory_CanceledDuringExtractionIsRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := slog.New(&cancelOnHandler{
		Handler: slog.NewTextHandler(io.Discard, nil),
		msg:     "delegation target not found",
		cancel:  cancel,
	})
	e := newTestEngine(t, WithEngineLogger(logger), WithWorkers(1))

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"jobs.py": `def first(a, # the a
         ):
    pass

@delegates(missing)
def middle(**kwargs):
    pass

def last(b, # the b
         ):
    pass
`,
	})

	_, err := e.IndexDirectory(ctx, root)
	require.ErrorIs(t, err, context.Canceled)

	stats, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Extracted)
	assert.Equal(t, 0, stats.Unchanged)
	assert.Equal(t, 3, stats.Callables)

	entry, err := e.Query().Docments("jobs", "last")
	require.NoError(t, err)
	require.NotEmpty(t, entry.Params)
	require.NotNil(t, entry.Params[0].Docment)
	assert.Equal(t, "the b", *entry.Params[0].Docment)

	stats, err = e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Unchanged)
}

// =============================================================================
// IndexFiles
// =============================================================================

func TestIndexFiles_RelativePaths(t *testing.T) {
	e := newTestEngine(t)
	root := newPkgTree(t)

	stats, err := e.IndexFiles(context.Background(), root, []string{"pkg/base.py", "pkg/readme.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Extracted)

	entry, err := e.Query().Docments("pkg.base", "target")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "pkg", "base.py"), entry.Path)
}

func TestIndexFiles_ResolvesAgainstIndexedFiles(t *testing.T) {
	root := newPkgTree(t)
	dbPath := filepath.Join(t.TempDir(), "test.db")

	e, err := New(dbPath)
	require.NoError(t, err)
	_, err = e.IndexFiles(context.Background(), root, []string{"pkg/base.py"})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	// A fresh engine only sees base.py through the index.
	e2, err := New(dbPath)
	require.NoError(t, err)
	defer e2.Close()
	_, err = e2.IndexFiles(context.Background(), root, []string{"pkg/api.py"})
	require.NoError(t, err)

	entry, err := e2.Query().Docments("pkg.api", "run")
	require.NoError(t, err)
	assert.Equal(t, "pkg.base:target", entry.DelegatesTo)
	assert.Len(t, entry.Params, 3)
}

func TestIndexFiles_MissingFileIsIgnored(t *testing.T) {
	e := newTestEngine(t)
	stats, err := e.IndexFiles(context.Background(), t.TempDir(), []string{"gone.py"})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Extracted)
}
