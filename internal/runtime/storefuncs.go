package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/jward/docments"
	"github.com/jward/docments/internal/store"
)

// Index query host functions. Results are plain Risor maps and lists so
// scripts can index and iterate them, and so a script's final value
// converts cleanly back to Go.

// scriptPage is the page size used for list results handed to scripts.
var scriptPage = docments.Pagination{Limit: 500}

func makeDocmentsFn(q *docments.QueryBuilder) *object.Builtin {
	return object.NewBuiltin("docments", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("docments", 2, len(args))
		}
		module, err := toString(args[0])
		if err != nil {
			return object.Errorf("docments: module: %v", err)
		}
		qualname, err := toString(args[1])
		if err != nil {
			return object.Errorf("docments: qualname: %v", err)
		}

		entry, err := q.Docments(module, qualname)
		if errors.Is(err, docments.ErrNotFound) {
			return object.Nil
		}
		if err != nil {
			return object.Errorf("docments: %v", err)
		}
		return entryToMap(entry)
	})
}

func makeLookupFn(q *docments.QueryBuilder) *object.Builtin {
	return object.NewBuiltin("lookup", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("lookup", 1, len(args))
		}
		qualname, err := toString(args[0])
		if err != nil {
			return object.Errorf("lookup: %v", err)
		}

		entries, err := q.Lookup(qualname)
		if err != nil {
			return object.Errorf("lookup: %v", err)
		}
		results := make([]object.Object, 0, len(entries))
		for _, e := range entries {
			results = append(results, entryToMap(e))
		}
		return object.NewList(results)
	})
}

func makeCallablesFn(q *docments.QueryBuilder) *object.Builtin {
	return object.NewBuiltin("callables", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("callables", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("callables: %v", err)
		}

		cs, err := q.Callables(path)
		if err != nil {
			return object.Errorf("callables: %v", err)
		}
		return callablesToList(cs)
	})
}

func makeDelegatorsFn(q *docments.QueryBuilder) *object.Builtin {
	return object.NewBuiltin("delegators", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("delegators", 2, len(args))
		}
		module, err := toString(args[0])
		if err != nil {
			return object.Errorf("delegators: module: %v", err)
		}
		qualname, err := toString(args[1])
		if err != nil {
			return object.Errorf("delegators: qualname: %v", err)
		}

		cs, err := q.Delegators(module, qualname)
		if err != nil {
			return object.Errorf("delegators: %v", err)
		}
		return callablesToList(cs)
	})
}

// makeSearchFn creates "search".
//
// search(text, module_prefix="") → []map
func makeSearchFn(q *docments.QueryBuilder) *object.Builtin {
	return object.NewBuiltin("search", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.Errorf("search: expected 1 or 2 arguments, got %d", len(args))
		}
		text, err := toString(args[0])
		if err != nil {
			return object.Errorf("search: %v", err)
		}
		filter, err := filterArg(args[1:])
		if err != nil {
			return object.Errorf("search: %v", err)
		}

		res, err := q.Search(text, filter, scriptPage)
		if err != nil {
			return object.Errorf("search: %v", err)
		}
		return matchesToList(res.Items)
	})
}

// makeUndocumentedFn creates "undocumented".
//
// undocumented(module_prefix="") → []map
func makeUndocumentedFn(q *docments.QueryBuilder) *object.Builtin {
	return object.NewBuiltin("undocumented", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) > 1 {
			return object.Errorf("undocumented: expected at most 1 argument, got %d", len(args))
		}
		filter, err := filterArg(args)
		if err != nil {
			return object.Errorf("undocumented: %v", err)
		}

		res, err := q.Undocumented(filter, scriptPage)
		if err != nil {
			return object.Errorf("undocumented: %v", err)
		}
		return matchesToList(res.Items)
	})
}

// makeCoverageFn creates "coverage".
//
// coverage(module_prefix="") → map
func makeCoverageFn(q *docments.QueryBuilder) *object.Builtin {
	return object.NewBuiltin("coverage", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) > 1 {
			return object.Errorf("coverage: expected at most 1 argument, got %d", len(args))
		}
		filter, err := filterArg(args)
		if err != nil {
			return object.Errorf("coverage: %v", err)
		}

		cov, err := q.Coverage(filter)
		if err != nil {
			return object.Errorf("coverage: %v", err)
		}
		return object.NewMap(map[string]object.Object{
			"callables":  object.NewInt(int64(cov.Callables)),
			"failed":     object.NewInt(int64(cov.Failed)),
			"params":     object.NewInt(int64(cov.Params)),
			"documented": object.NewInt(int64(cov.Documented)),
			"ratio":      object.NewFloat(cov.Ratio()),
		})
	})
}

// filterArg reads an optional module prefix argument.
func filterArg(args []object.Object) (docments.ParamFilter, error) {
	var f docments.ParamFilter
	if len(args) == 0 {
		return f, nil
	}
	prefix, err := toString(args[0])
	if err != nil {
		return f, fmt.Errorf("module prefix: %w", err)
	}
	f.ModulePrefix = prefix
	return f, nil
}

// db_query(sql, args...) runs a read-only query over the index and returns
// a list of row maps.
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		query, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		params := make([]any, len(args)-1)
		for i, a := range args[1:] {
			params[i] = a.Interface()
		}

		rows, err := s.Select(ctx, query, params...)
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		list := make([]object.Object, len(rows))
		for i, row := range rows {
			m := make(map[string]object.Object, len(row))
			for col, v := range row {
				if v == nil {
					m[col] = object.Nil
					continue
				}
				m[col] = object.FromGoType(v)
			}
			list[i] = object.NewMap(m)
		}
		return object.NewList(list)
	})
}

// --- Conversions ---

func optString(s *string) object.Object {
	if s == nil {
		return object.Nil
	}
	return object.NewString(*s)
}

// exprObject maps the Empty expression to nil.
func exprObject(s string) object.Object {
	if s == "" {
		return object.Nil
	}
	return object.NewString(s)
}

func callableToMap(c *docments.IndexedCallable) map[string]object.Object {
	m := map[string]object.Object{
		"qualname":   object.NewString(c.Qualname),
		"kind":       object.NewString(c.Kind),
		"start_line": object.NewInt(int64(c.StartLine)),
		"end_line":   object.NewInt(int64(c.EndLine)),
		"docstring":  object.NewString(c.Docstring),
	}
	if c.DelegatesTo != "" {
		m["delegates_to"] = object.NewString(c.DelegatesTo)
	}
	if c.Error != "" {
		m["error"] = object.NewString(c.Error)
	}
	return m
}

func callablesToList(cs []*docments.IndexedCallable) object.Object {
	results := make([]object.Object, 0, len(cs))
	for _, c := range cs {
		results = append(results, object.NewMap(callableToMap(c)))
	}
	return object.NewList(results)
}

func paramToMap(p *docments.IndexedParam) *object.Map {
	return object.NewMap(map[string]object.Object{
		"name":    object.NewString(p.Name),
		"kind":    object.NewString(p.Kind),
		"docment": optString(p.Docment),
		"anno":    exprObject(p.Anno),
		"default": exprObject(p.Default),
	})
}

func entryToMap(e *docments.Entry) object.Object {
	m := callableToMap(&e.IndexedCallable)
	m["module"] = object.NewString(e.Module)
	m["path"] = object.NewString(e.Path)
	params := make([]object.Object, 0, len(e.Params))
	for _, p := range e.Params {
		params = append(params, paramToMap(p))
	}
	m["params"] = object.NewList(params)
	return object.NewMap(m)
}

func matchesToList(ms []*docments.ParamMatch) object.Object {
	results := make([]object.Object, 0, len(ms))
	for _, pm := range ms {
		m := paramToMap(&pm.Param).Value()
		m["module"] = object.NewString(pm.Module)
		m["path"] = object.NewString(pm.Path)
		m["qualname"] = object.NewString(pm.Qualname)
		m["callable_kind"] = object.NewString(pm.Kind)
		results = append(results, object.NewMap(m))
	}
	return object.NewList(results)
}

// resultToMap converts a live Result. Non-full results map each name to its
// doc text or nil.
func resultToMap(res *docments.Result) object.Object {
	m := make(map[string]object.Object, res.Len())
	for _, p := range res.Params() {
		if !res.Full() {
			m[p.Name] = optString(p.Doc)
			continue
		}
		m[p.Name] = object.NewMap(map[string]object.Object{
			"docment": optString(p.Doc),
			"anno":    exprObject(string(p.Anno)),
			"default": exprObject(string(p.Default)),
		})
	}
	return object.NewMap(m)
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
