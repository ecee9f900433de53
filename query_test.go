package docments

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newIndexedQuery indexes the pkg fixture and returns a QueryBuilder over it.
func newIndexedQuery(t *testing.T) (*QueryBuilder, string) {
	t.Helper()
	e := newTestEngine(t)
	root := newPkgTree(t)
	indexDir(t, e, root)
	return e.Query(), root
}

func TestPagination_Normalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   Pagination
		want Pagination
	}{
		{Pagination{}, Pagination{Offset: 0, Limit: 50}},
		{Pagination{Offset: -4, Limit: 10}, Pagination{Offset: 0, Limit: 10}},
		{Pagination{Offset: 7, Limit: 5000}, Pagination{Offset: 7, Limit: 500}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.normalize())
	}
}

// =============================================================================
// Lookups
// =============================================================================

func TestQuery_Docments(t *testing.T) {
	q, root := newIndexedQuery(t)

	entry, err := q.Docments("pkg.base", "target")
	require.NoError(t, err)
	assert.Equal(t, "pkg.base:target", entry.Key())
	assert.Equal(t, filepath.Join(root, "pkg", "base.py"), entry.Path)
	assert.Equal(t, 1, entry.StartLine)
	assert.Empty(t, entry.DelegatesTo)
	assert.NotEmpty(t, entry.SignatureHash)
	require.Len(t, entry.Params, 3)
	assert.Nil(t, entry.Params[0].Docment, "a is undocumented")
}

func TestQuery_Docments_NotFound(t *testing.T) {
	q, _ := newIndexedQuery(t)

	_, err := q.Docments("pkg.base", "nothing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = q.Docments("pkg.missing", "target")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntry_Result(t *testing.T) {
	q, _ := newIndexedQuery(t)

	entry, err := q.Docments("pkg.api", "run")
	require.NoError(t, err)

	data, err := json.Marshal(entry.Result(false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"cmd":"command to run","level":"how deep","return":null}`, string(data))

	full := entry.Result(true)
	level, ok := full.Get("level")
	require.True(t, ok)
	assert.Equal(t, Expr("3"), level.Default)
	assert.Equal(t, Expr("int"), level.Anno)
}

func TestQuery_Lookup(t *testing.T) {
	q, _ := newIndexedQuery(t)

	entries, err := q.Lookup("target")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pkg.base", entries[0].Module)

	entries, err = q.Lookup("nothing")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestQuery_Callables(t *testing.T) {
	q, root := newIndexedQuery(t)

	cs, err := q.Callables(filepath.Join(root, "pkg", "api.py"))
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "run", cs[0].Qualname)

	cs, err = q.Callables(filepath.Join(root, "nope.py"))
	require.NoError(t, err)
	assert.Nil(t, cs)
}

func TestQuery_Files(t *testing.T) {
	q, root := newIndexedQuery(t)

	res, err := q.Files(Pagination{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)
	require.Len(t, res.Items, 2)
	assert.Equal(t, filepath.Join(root, "pkg", "__init__.py"), res.Items[0].Path)
	assert.Equal(t, "pkg", res.Items[0].Module)
	assert.Equal(t, filepath.Join(root, "pkg", "api.py"), res.Items[1].Path)

	res, err = q.Files(Pagination{Offset: 2})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "pkg.base", res.Items[0].Module)
}

func TestQuery_Delegators(t *testing.T) {
	q, _ := newIndexedQuery(t)

	cs, err := q.Delegators("pkg.base", "target")
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "run", cs[0].Qualname)

	cs, err = q.Delegators("pkg.api", "run")
	require.NoError(t, err)
	assert.Empty(t, cs)
}

// =============================================================================
// Discovery
// =============================================================================

func TestQuery_Search(t *testing.T) {
	q, _ := newIndexedQuery(t)

	res, err := q.Search("DEEP", ParamFilter{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "pkg.api:run", res.Items[0].Key())
	assert.Equal(t, "pkg.base:target", res.Items[1].Key())
	assert.Equal(t, "level", res.Items[1].Param.Name)
	assert.Equal(t, "function", res.Items[1].Kind)
}

func TestQuery_Search_ModulePrefix(t *testing.T) {
	q, _ := newIndexedQuery(t)

	res, err := q.Search("deep", ParamFilter{ModulePrefix: "pkg.base"}, Pagination{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "pkg.base", res.Items[0].Module)

	res, err = q.Search("deep", ParamFilter{ModulePrefix: "pk"}, Pagination{})
	require.NoError(t, err)
	assert.Empty(t, res.Items, "prefix matches whole module names only")
}

func TestQuery_Search_EscapesWildcards(t *testing.T) {
	q, _ := newIndexedQuery(t)

	res, err := q.Search("how_deep", ParamFilter{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalCount)

	res, err = q.Search("%", ParamFilter{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalCount)
}

func TestQuery_Search_KindFilter(t *testing.T) {
	q, _ := newIndexedQuery(t)

	res, err := q.Search("deep", ParamFilter{Kinds: []string{"class", "method"}}, Pagination{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestQuery_Undocumented(t *testing.T) {
	q, _ := newIndexedQuery(t)

	res, err := q.Undocumented(ParamFilter{}, Pagination{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "pkg.base:target", res.Items[0].Key())
	assert.Equal(t, "a", res.Items[0].Param.Name)

	res, err = q.Undocumented(ParamFilter{IncludeReturn: true}, Pagination{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)
	assert.Len(t, res.Items, 2)
}

func TestQuery_Coverage(t *testing.T) {
	q, _ := newIndexedQuery(t)

	cov, err := q.Coverage(ParamFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, cov.Callables)
	assert.Equal(t, 0, cov.Failed)
	assert.Equal(t, 4, cov.Params)
	assert.Equal(t, 3, cov.Documented)
	assert.InDelta(t, 0.75, cov.Ratio(), 1e-9)

	cov, err = q.Coverage(ParamFilter{ModulePrefix: "pkg.api"})
	require.NoError(t, err)
	assert.Equal(t, 1, cov.Callables)
	assert.Equal(t, 1.0, cov.Ratio())
}

func TestCoverage_RatioWithoutParams(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1.0, Coverage{}.Ratio())
}
