package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/docments"
	"github.com/jward/docments/internal/store"
)

// scriptExt is the extension of importable script modules.
const scriptExt = ".risor"

// Runtime embeds a Risor VM and exposes the docments index, live
// extraction and tree-sitter host functions to user scripts.
type Runtime struct {
	query      *docments.QueryBuilder
	store      *store.Store
	logger     *slog.Logger
	scriptsDir string
	fsys       fs.FS
	trees      *treeSources
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS loads scripts, and resolves their imports, from fsys
// instead of the scripts directory.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) { r.fsys = fsys }
}

// WithStore exposes read-only SQL over the index as db_query.
func WithStore(s *store.Store) RuntimeOption {
	return func(r *Runtime) { r.store = s }
}

// WithRuntimeLogger sets the logger behind the log global.
func WithRuntimeLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) { r.logger = l }
}

// NewRuntime creates a Runtime answering index queries through q, which may
// be nil when scripts only use live extraction.
func NewRuntime(q *docments.QueryBuilder, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		query:      q,
		scriptsDir: scriptsDir,
		trees:      newTreeSources(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// RunScript runs the script at path with the standard globals plus extra,
// and returns the value of its last expression converted to Go.
func (r *Runtime) RunScript(ctx context.Context, path string, extra map[string]any) (any, error) {
	src, err := r.LoadScript(path)
	if err != nil {
		return nil, err
	}
	return r.eval(ctx, src, path, extra)
}

// RunSource is RunScript for inline source.
func (r *Runtime) RunSource(ctx context.Context, source string, extra map[string]any) (any, error) {
	return r.eval(ctx, source, "<inline>", extra)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extra map[string]any) (any, error) {
	globals := r.globals(extra)

	opts := make([]risor.Option, 0, len(globals)+1)
	names := make([]string, 0, len(globals))
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
		names = append(names, name)
	}
	if imp := r.importer(names); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	if result == nil || result == object.Nil {
		return nil, nil
	}
	return result.Interface(), nil
}

// importer resolves import statements next to the scripts, or nil when the
// Runtime has nowhere to load modules from. Imported modules see the same
// global names.
func (r *Runtime) importer(globalNames []string) importer.Importer {
	switch {
	case r.fsys != nil:
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{scriptExt},
		})
	case r.scriptsDir != "":
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{scriptExt},
		})
	}
	return nil
}

// LoadScript returns the source of a script. Relative paths are taken from
// the scripts directory; with an fs.FS every path is relative to its root.
func (r *Runtime) LoadScript(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if r.fsys != nil {
		path = strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err = fs.ReadFile(r.fsys, path)
	} else {
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.scriptsDir, path)
		}
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("runtime: load script %s: %w", path, err)
	}
	return string(data), nil
}

// globals returns the host functions visible to scripts. Extra values
// shadow them.
func (r *Runtime) globals(extra map[string]any) map[string]any {
	g := map[string]any{
		"parse":      makeParseFn(r.trees),
		"parse_src":  makeParseSrcFn(r.trees),
		"node_text":  makeNodeTextFn(r.trees),
		"node_child": makeNodeChildFn(),
		"query":      makeQueryFn(r.trees),
		"comments":   makeCommentsFn(),
		"extract":    makeExtractFn(r.logger),
		"log":        mustProxy(&scriptLog{logger: r.logger}),
	}
	if q := r.query; q != nil {
		g["docments"] = makeDocmentsFn(q)
		g["lookup"] = makeLookupFn(q)
		g["callables"] = makeCallablesFn(q)
		g["delegators"] = makeDelegatorsFn(q)
		g["search"] = makeSearchFn(q)
		g["undocumented"] = makeUndocumentedFn(q)
		g["coverage"] = makeCoverageFn(q)
	}
	if r.store != nil {
		g["db_query"] = makeDBQueryFn(r.store)
	}
	for k, v := range extra {
		g[k] = v
	}
	return g
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy: %v", err))
	}
	return p
}
