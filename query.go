package docments

import (
	"fmt"

	"github.com/jward/docments/internal/store"
)

// QueryBuilder answers questions about indexed docments from the Store alone,
// without reparsing sources.
type QueryBuilder struct {
	store *store.Store
}

// Pagination controls offset+limit paging on list/search results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// normalize returns a Pagination with defaults applied and bounds enforced.
func (p Pagination) normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// PagedResult wraps a page of results with total count for pagination.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int // total matching results (before pagination)
}

// Entry is an indexed callable with its location and documented entries.
type Entry struct {
	IndexedCallable
	Module string
	Path   string
	Params []*IndexedParam
}

// Key returns "module:qualname".
func (e *Entry) Key() string { return e.Module + ":" + e.Qualname }

// Result rebuilds the docments Result of the entry. In non-full mode only
// doc texts are kept.
func (e *Entry) Result(full bool) *Result {
	res := newResult(full)
	for _, p := range e.Params {
		res.set(Param{Name: p.Name, Doc: p.Docment, Anno: Expr(p.Anno), Default: Expr(p.Default)})
	}
	return res
}

// ParamMatch is one documented entry found by a search.
type ParamMatch struct {
	Module   string
	Path     string
	Qualname string
	Kind     string // callable kind
	Param    IndexedParam
}

// Key returns "module:qualname".
func (m *ParamMatch) Key() string { return m.Module + ":" + m.Qualname }

// Docments returns the indexed callable called qualname in module, with its
// entries. The error wraps ErrNotFound when there is none.
func (q *QueryBuilder) Docments(module, qualname string) (*Entry, error) {
	c, err := q.store.CallableByName(module, qualname)
	if err != nil {
		return nil, fmt.Errorf("docments: query %s:%s: %w", module, qualname, err)
	}
	if c == nil {
		return nil, fmt.Errorf("docments: query %s:%s: %w", module, qualname, ErrNotFound)
	}
	return q.entry(c)
}

// Lookup returns every indexed callable called qualname, in any module.
func (q *QueryBuilder) Lookup(qualname string) ([]*Entry, error) {
	cs, err := q.store.CallablesByName(qualname)
	if err != nil {
		return nil, fmt.Errorf("docments: lookup %s: %w", qualname, err)
	}
	out := make([]*Entry, 0, len(cs))
	for _, c := range cs {
		e, err := q.entry(c)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (q *QueryBuilder) entry(c *IndexedCallable) (*Entry, error) {
	f, err := q.store.FileByID(c.FileID)
	if err != nil {
		return nil, fmt.Errorf("docments: query %s: %w", c.Qualname, err)
	}
	params, err := q.store.ParamsByCallable(c.ID)
	if err != nil {
		return nil, fmt.Errorf("docments: query %s: %w", c.Qualname, err)
	}
	e := &Entry{IndexedCallable: *c, Params: params}
	if f != nil {
		e.Module, e.Path = f.Module, f.Path
	}
	return e, nil
}

// Callables returns the callables indexed for the file at path, in source
// order. An unindexed path yields no callables.
func (q *QueryBuilder) Callables(path string) ([]*IndexedCallable, error) {
	f, err := q.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("docments: callables: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	return q.store.CallablesByFile(f.ID)
}

// Files returns indexed files ordered by path.
func (q *QueryBuilder) Files(page Pagination) (*PagedResult[*File], error) {
	page = page.normalize()
	var total int
	if err := q.store.DB().QueryRow("SELECT COUNT(*) FROM files").Scan(&total); err != nil {
		return nil, fmt.Errorf("docments: files: count: %w", err)
	}
	rows, err := q.store.DB().Query(
		"SELECT "+store.FileCols+" FROM files ORDER BY path LIMIT ? OFFSET ?",
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("docments: files: %w", err)
	}
	defer rows.Close()
	res := &PagedResult[*File]{TotalCount: total}
	for rows.Next() {
		f, err := store.ScanFileRow(rows)
		if err != nil {
			return nil, fmt.Errorf("docments: files: scan: %w", err)
		}
		res.Items = append(res.Items, f)
	}
	return res, rows.Err()
}

// Delegators returns the callables whose **kwargs forward to the callable
// called qualname in module.
func (q *QueryBuilder) Delegators(module, qualname string) ([]*IndexedCallable, error) {
	out, err := q.store.QueryCallables(
		"SELECT "+store.CallableCols+" FROM callables WHERE delegates_to = ? ORDER BY file_id, start_line",
		module+":"+qualname,
	)
	if err != nil {
		return nil, fmt.Errorf("docments: delegators: %w", err)
	}
	return out, nil
}
