package docments

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/jward/docments/internal/pysrc"
	"github.com/jward/docments/internal/store"
)

// Engine indexes the docments of a Python source tree into SQLite and gives
// query access to the index.
type Engine struct {
	store   *store.Store
	logger  *slog.Logger
	workers int
	extract []DocOption
	exclude []string
	force   bool

	mu sync.Mutex // serializes indexing runs
	ws *Workspace
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger for indexing progress and soft failures.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithWorkers bounds the number of files extracted concurrently. Values
// below 1 mean runtime.NumCPU().
func WithWorkers(n int) EngineOption {
	return func(e *Engine) { e.workers = n }
}

// WithExtractOptions sets the options every indexed Docments call uses.
// Indexing always stores full records, so WithFull is ignored.
func WithExtractOptions(opts ...DocOption) EngineOption {
	return func(e *Engine) { e.extract = append(e.extract, opts...) }
}

// WithExclude skips files whose slash-separated path relative to the indexed
// root, or any single path element, matches one of the glob patterns.
func WithExclude(patterns ...string) EngineOption {
	return func(e *Engine) { e.exclude = append(e.exclude, patterns...) }
}

// WithForce re-extracts every file even when its content hash is unchanged.
func WithForce(force bool) EngineOption {
	return func(e *Engine) { e.force = force }
}

// New creates an Engine backed by a SQLite database at dbPath.
func New(dbPath string, opts ...EngineOption) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("docments: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("docments: migrate: %w", err)
	}

	e := &Engine{store: s, ws: NewWorkspace()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.workers < 1 {
		e.workers = runtime.NumCPU()
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Workspace returns the modules parsed by indexing runs so far.
func (e *Engine) Workspace() *Workspace {
	return e.ws
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

// IndexStats summarizes an indexing run.
type IndexStats struct {
	Files     int // Python files considered
	Extracted int // files (re-)extracted, including importers of changed modules
	Unchanged int // files skipped because their content hash matched
	Removed   int // files dropped from the index because they no longer exist
	Callables int // callables written
	Failed    int // callables whose extraction failed

	// Changed lists "module:qualname" for callables of previously indexed
	// files whose documented surface changed, appeared or disappeared.
	Changed []string
}

// skipDirs are directories excluded from indexing.
var skipDirs = map[string]bool{
	"node_modules":  true,
	"vendor":        true,
	"__pycache__":   true,
	"venv":          true,
	"site-packages": true,
}

// IndexDirectory indexes every Python file under root. If root is inside a
// git repository, git ls-files is used to respect .gitignore. Otherwise the
// filesystem is walked, skipping hidden directories and skipDirs. Indexed
// files under root that no longer exist are removed from the index.
func (e *Engine) IndexDirectory(ctx context.Context, root string) (*IndexStats, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("docments: index %s: %w", root, err)
	}
	paths, err := e.gitListFiles(root)
	if err != nil {
		e.logger.Debug("git listing unavailable, walking", "root", root, "error", err)
		paths, err = e.walkListFiles(root)
		if err != nil {
			return nil, err
		}
	}
	paths = e.filterExcluded(root, paths)

	e.mu.Lock()
	defer e.mu.Unlock()

	removed, err := e.removeMissing(root, paths)
	if err != nil {
		return nil, err
	}
	stats, err := e.index(ctx, root, paths, removed)
	if stats != nil {
		stats.Removed = len(removed)
	}
	return stats, err
}

// IndexFiles indexes the given Python files, naming modules relative to
// root. Files already in the index that import a changed module are
// re-extracted too, since delegated documentation flows across modules.
func (e *Engine) IndexFiles(ctx context.Context, root string, paths []string) (*IndexStats, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("docments: index %s: %w", root, err)
	}
	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		if !pysrc.IsPythonFile(p) {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		abs = append(abs, filepath.Clean(p))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index(ctx, root, abs, nil)
}

// removeMissing drops indexed files under root that are not in paths and
// returns their module names.
func (e *Engine) removeMissing(root string, paths []string) ([]string, error) {
	present := make(map[string]bool, len(paths))
	for _, p := range paths {
		present[p] = true
	}
	files, err := e.store.Files()
	if err != nil {
		return nil, fmt.Errorf("docments: list indexed files: %w", err)
	}
	var removed []string
	for _, f := range files {
		rel, err := filepath.Rel(root, f.Path)
		if err != nil || strings.HasPrefix(rel, "..") || present[f.Path] {
			continue
		}
		if err := e.store.DeleteFile(f.ID); err != nil {
			return nil, fmt.Errorf("docments: remove %s: %w", f.Path, err)
		}
		e.ws.Remove(f.Module)
		e.logger.Info("removed from index", "path", f.Path)
		removed = append(removed, f.Module)
	}
	return removed, nil
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) Python files under root.
func (e *Engine) gitListFiles(root string) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if pysrc.IsPythonFile(line) {
			paths = append(paths, filepath.Join(root, line))
		}
	}
	return paths, nil
}

// walkListFiles discovers Python files by walking the filesystem, used as a
// fallback when git is not available.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if p != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if pysrc.IsPythonFile(p) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("docments: walk directory: %w", err)
	}
	return paths, nil
}

func (e *Engine) filterExcluded(root string, paths []string) []string {
	if len(e.exclude) == 0 {
		return paths
	}
	out := paths[:0]
	for _, p := range paths {
		if !e.excluded(root, p) {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) excluded(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pat := range e.exclude {
		if ok, _ := path.Match(pat, rel); ok {
			return true
		}
		for _, elem := range strings.Split(rel, "/") {
			if ok, _ := path.Match(pat, elem); ok {
				return true
			}
		}
	}
	return false
}
