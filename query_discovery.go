package docments

import (
	"fmt"
	"strings"

	"github.com/jward/docments/internal/store"
)

// ParamFilter narrows discovery queries.
type ParamFilter struct {
	Kinds         []string // callable kinds to include; empty means all
	ModulePrefix  string   // restrict to a module and its submodules
	IncludeReturn bool     // consider return entries too
}

// where renders the filter as SQL conditions over params p, callables c
// and files f.
func (pf ParamFilter) where() (string, []any) {
	var conds []string
	var args []any
	if !pf.IncludeReturn {
		conds = append(conds, "p.kind != ?")
		args = append(args, store.ReturnKind)
	}
	if len(pf.Kinds) > 0 {
		conds = append(conds, "c.kind IN ("+strings.TrimSuffix(strings.Repeat("?,", len(pf.Kinds)), ",")+")")
		for _, k := range pf.Kinds {
			args = append(args, k)
		}
	}
	if pf.ModulePrefix != "" {
		conds = append(conds, `(f.module = ? OR f.module LIKE ? ESCAPE '\')`)
		args = append(args, pf.ModulePrefix, store.EscapeLike(pf.ModulePrefix)+".%")
	}
	if len(conds) == 0 {
		return "1=1", nil
	}
	return strings.Join(conds, " AND "), args
}

const paramMatchFrom = ` FROM params p
	JOIN callables c ON c.id = p.callable_id
	JOIN files f ON f.id = c.file_id`

// Search finds documented entries whose doc text contains text, case
// insensitively for ASCII.
func (q *QueryBuilder) Search(text string, filter ParamFilter, page Pagination) (*PagedResult[*ParamMatch], error) {
	where, args := filter.where()
	where = `p.docment LIKE ? ESCAPE '\' AND ` + where
	args = append([]any{"%" + store.EscapeLike(text) + "%"}, args...)
	res, err := q.paramMatches(where, args, page)
	if err != nil {
		return nil, fmt.Errorf("docments: search %q: %w", text, err)
	}
	return res, nil
}

// Undocumented finds entries without documentation.
func (q *QueryBuilder) Undocumented(filter ParamFilter, page Pagination) (*PagedResult[*ParamMatch], error) {
	where, args := filter.where()
	res, err := q.paramMatches("p.docment IS NULL AND "+where, args, page)
	if err != nil {
		return nil, fmt.Errorf("docments: undocumented: %w", err)
	}
	return res, nil
}

func (q *QueryBuilder) paramMatches(where string, args []any, page Pagination) (*PagedResult[*ParamMatch], error) {
	page = page.normalize()

	var total int
	if err := q.store.DB().QueryRow("SELECT COUNT(*)"+paramMatchFrom+" WHERE "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}

	rows, err := q.store.DB().Query(
		"SELECT f.module, f.path, c.qualname, c.kind, "+store.PrefixCols("p.", store.ParamCols)+
			paramMatchFrom+" WHERE "+where+
			" ORDER BY f.module, c.start_line, p.ordinal LIMIT ? OFFSET ?",
		append(args, page.Limit, page.Offset)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := &PagedResult[*ParamMatch]{TotalCount: total}
	for rows.Next() {
		m := &ParamMatch{}
		p := &m.Param
		var doc, anno, def *string
		if err := rows.Scan(
			&m.Module, &m.Path, &m.Qualname, &m.Kind,
			&p.ID, &p.CallableID, &p.Ordinal, &p.Name, &p.Kind, &doc, &anno, &def,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		p.Docment = doc
		if anno != nil {
			p.Anno = *anno
		}
		if def != nil {
			p.Default = *def
		}
		res.Items = append(res.Items, m)
	}
	return res, rows.Err()
}

// Coverage counts documented entries.
type Coverage struct {
	Callables  int
	Failed     int // callables whose extraction failed
	Params     int // entries considered, return entries excluded
	Documented int
}

// Ratio returns the documented share of entries, 1 when there are none.
func (c Coverage) Ratio() float64 {
	if c.Params == 0 {
		return 1
	}
	return float64(c.Documented) / float64(c.Params)
}

// Coverage summarizes documentation coverage over the whole index, or over
// the modules matching filter.
func (q *QueryBuilder) Coverage(filter ParamFilter) (*Coverage, error) {
	where, args := filter.where()
	cov := &Coverage{}
	err := q.store.DB().QueryRow(
		"SELECT COUNT(*), COUNT(p.docment)"+paramMatchFrom+" WHERE "+where, args...,
	).Scan(&cov.Params, &cov.Documented)
	if err != nil {
		return nil, fmt.Errorf("docments: coverage: %w", err)
	}

	cf := filter
	cf.IncludeReturn = true
	cwhere, cargs := cf.where()
	err = q.store.DB().QueryRow(
		`SELECT COUNT(*), COUNT(NULLIF(c.error, '')) FROM callables c
		 JOIN files f ON f.id = c.file_id WHERE `+cwhere, cargs...,
	).Scan(&cov.Callables, &cov.Failed)
	if err != nil {
		return nil, fmt.Errorf("docments: coverage: %w", err)
	}
	return cov, nil
}
