package docments

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jward/docments/internal/store"
)

// workItem holds everything an extraction worker needs for one file.
type workItem struct {
	path   string
	fileID int64
	mod    *Module
	batch  *store.BatchedStore

	// Hashes of the file's callables before re-extraction, nil for a file
	// indexed for the first time.
	oldHashes map[string]string
}

// index runs the three-phase pipeline:
//
//	Phase A (serial):   Parse every file into the workspace, hash check,
//	                    insert new file records, expand to importers of
//	                    changed modules.
//	Phase B (parallel): Extract docments into per-file BatchedStores.
//	Phase C (serial):   Commit each batch and its file record in one
//	                    transaction, diff hashes.
//
// removed names modules that disappeared before this run; their importers
// are re-extracted.
func (e *Engine) index(ctx context.Context, root string, paths []string, removed []string) (*IndexStats, error) {
	stats := &IndexStats{Files: len(paths)}

	if err := e.loadIndexed(ctx, root); err != nil {
		return stats, err
	}

	// ---- Phase A: Serial file preparation ----
	var items []*workItem
	queued := make(map[int64]bool)
	unchanged := make(map[int64]bool)
	changed := append([]string(nil), removed...)
	for _, p := range paths {
		item, err := e.prepareFile(ctx, root, p)
		if err != nil {
			return stats, fmt.Errorf("docments: prepare %s: %w", p, err)
		}
		switch {
		case item == nil:
			continue
		case item.batch == nil:
			unchanged[item.fileID] = true
			continue
		}
		items = append(items, item)
		queued[item.fileID] = true
		changed = append(changed, item.mod.Name)
	}

	importers, err := e.importersOf(ctx, root, changed, queued)
	if err != nil {
		return stats, err
	}
	for _, item := range importers {
		delete(unchanged, item.fileID)
	}
	items = append(items, importers...)
	stats.Unchanged = len(unchanged)
	if len(items) == 0 {
		return stats, nil
	}

	// ---- Phase B: Parallel extraction ----
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(e.workers, len(items)))
	for _, item := range items {
		g.Go(func() error {
			if err := e.extractFile(gctx, item); err != nil {
				return fmt.Errorf("docments: extract %s: %w", item.path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	// ---- Phase C: Serial commit ----
	var errs []error
	for _, item := range items {
		if err := e.store.CommitBatch(item.batch, item.fileID); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", item.path, err))
			continue
		}
		stats.Extracted++
		for _, c := range item.batch.Callables {
			stats.Callables++
			if c.Error != "" {
				stats.Failed++
			}
		}
		if item.oldHashes != nil {
			stats.Changed = append(stats.Changed, diffHashes(item)...)
		}
	}
	sort.Strings(stats.Changed)

	e.logger.Info("indexed",
		"files", stats.Files,
		"extracted", stats.Extracted,
		"unchanged", stats.Unchanged,
		"callables", stats.Callables,
		"failed", stats.Failed,
	)
	if len(errs) > 0 {
		return stats, fmt.Errorf("docments: indexing had %d error(s): %w", len(errs), errors.Join(errs...))
	}
	return stats, nil
}

// loadIndexed parses indexed files that the workspace does not hold yet, so
// that delegation targets in files outside this run still resolve.
func (e *Engine) loadIndexed(ctx context.Context, root string) error {
	files, err := e.store.Files()
	if err != nil {
		return fmt.Errorf("docments: list indexed files: %w", err)
	}
	for _, f := range files {
		if e.ws.Module(f.Module) != nil {
			continue
		}
		if _, err := e.ws.LoadFile(ctx, root, f.Path); err != nil {
			e.logger.Debug("indexed file not loadable", "path", f.Path, "error", err)
		}
	}
	return nil
}

// prepareFile does Phase A work for a single file: parse, hash check and
// file record. It returns nil for a file that no longer exists, and an item
// without a batch for an unchanged file.
func (e *Engine) prepareFile(ctx context.Context, root, path string) (*workItem, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		// Listed by git but deleted from the worktree.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(content))

	mod, err := e.ws.LoadSource(ctx, root, path, content)
	if err != nil {
		return nil, err
	}
	if mod.HasErrors() {
		e.logger.Warn("syntax errors, extracting what parsed", "path", path)
	}

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash && existing.Module == mod.Name && !e.force {
		return &workItem{path: path, fileID: existing.ID, mod: mod}, nil
	}

	// The new hash is committed with the extracted data in Phase C. Until
	// then the row keeps its old hash, or none for a new file, so a failed
	// run leaves the file queued for the next one.
	f := &store.File{
		Path:        path,
		Module:      mod.Name,
		LineCount:   bytes.Count(content, []byte{'\n'}) + 1,
		LastIndexed: time.Now(),
	}
	item := &workItem{path: path, mod: mod, batch: store.NewBatchedStore(e.store)}
	if existing != nil {
		f.ID = existing.ID
		if item.oldHashes, err = e.store.SignatureHashes([]int64{existing.ID}); err != nil {
			return nil, err
		}
	} else if _, err := e.store.InsertFile(f); err != nil {
		return nil, err
	}
	f.Hash = hash
	item.batch.File = f
	item.fileID = f.ID
	return item, nil
}

// importersOf returns work items for indexed files that import any of the
// changed modules, transitively, skipping files already queued.
func (e *Engine) importersOf(ctx context.Context, root string, changed []string, queued map[int64]bool) ([]*workItem, error) {
	var items []*workItem
	for frontier := changed; len(frontier) > 0; {
		ids, err := e.store.FilesImportingModules(frontier)
		if err != nil {
			return nil, err
		}
		frontier = nil
		for _, id := range ids {
			if queued[id] {
				continue
			}
			queued[id] = true
			f, err := e.store.FileByID(id)
			if err != nil {
				return nil, err
			}
			if f == nil {
				continue
			}
			mod := e.ws.Module(f.Module)
			if mod == nil {
				if mod, err = e.ws.LoadFile(ctx, root, f.Path); err != nil {
					e.logger.Warn("importer not loadable", "path", f.Path, "error", err)
					continue
				}
			}
			old, err := e.store.SignatureHashes([]int64{id})
			if err != nil {
				return nil, err
			}
			e.logger.Debug("re-extracting importer", "path", f.Path)
			items = append(items, &workItem{
				path:      f.Path,
				fileID:    id,
				mod:       mod,
				batch:     store.NewBatchedStore(e.store),
				oldHashes: old,
			})
			frontier = append(frontier, f.Module)
		}
	}
	return items, nil
}

// extractFile computes the docments of every callable in a module into the
// item's BatchedStore. A callable that fails is recorded with its error and
// no entries.
func (e *Engine) extractFile(ctx context.Context, item *workItem) error {
	opts := append(append([]DocOption(nil), e.extract...), WithFull(true), WithLogger(e.logger))
	for _, imp := range item.mod.Imports() {
		if _, err := item.batch.InsertImport(&store.Import{FileID: item.fileID, Module: imp}); err != nil {
			return err
		}
	}
	for _, c := range item.mod.Callables() {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := &store.Callable{
			FileID:    item.fileID,
			Qualname:  c.Name(),
			Kind:      string(c.Kind()),
			StartLine: c.Line(),
			EndLine:   c.definition().EndLine,
			Docstring: c.Docstring(),
		}
		if t, ok := DelegationTarget(c); ok {
			row.DelegatesTo = callableKey(t)
		}

		params, err := entries(ctx, c, opts)
		if err != nil {
			row.Error = err.Error()
			e.logger.Warn("extraction failed", "path", item.path, "callable", c.Name(), "error", err)
		}
		row.SignatureHash = store.ComputeSignatureHash(row.Kind, row.DelegatesTo, params)

		id, err := item.batch.InsertCallable(row)
		if err != nil {
			return err
		}
		for _, p := range params {
			p.CallableID = id
			if _, err := item.batch.InsertParam(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// entries converts a callable's full docments to index rows.
func entries(ctx context.Context, c Callable, opts []DocOption) ([]*store.Param, error) {
	res, err := Docments(ctx, c, opts...)
	if err != nil {
		return nil, err
	}
	sig, err := c.Signature()
	if err != nil {
		return nil, err
	}
	out := make([]*store.Param, 0, res.Len())
	for i, p := range res.Params() {
		kind := store.ReturnKind
		if sp, ok := sig.Param(p.Name); ok && p.Name != ReturnKey {
			kind = sp.Kind.String()
		}
		out = append(out, &store.Param{
			Ordinal: i,
			Name:    p.Name,
			Kind:    kind,
			Docment: p.Doc,
			Anno:    string(p.Anno),
			Default: string(p.Default),
		})
	}
	return out, nil
}

// diffHashes lists the callables of a re-extracted file whose hash differs
// from before, including added and removed ones.
func diffHashes(item *workItem) []string {
	cur := make(map[string]string, len(item.batch.Callables))
	for _, c := range item.batch.Callables {
		cur[item.mod.Name+":"+c.Qualname] = c.SignatureHash
	}
	var out []string
	for k, h := range cur {
		if item.oldHashes[k] != h {
			out = append(out, k)
		}
	}
	for k := range item.oldHashes {
		if _, ok := cur[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
