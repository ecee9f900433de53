package numpydoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `Compute a weighted sum.

Each value is multiplied by its weight
before summing.

Parameters
----------
values : list of float
    The values to sum.

    Continued after a blank line.
weights
    Optional weights.
*args, **kwargs : any
    Passed through.

Returns
-------
float
    The weighted sum.
bool
    Ignored second entry.

Notes
-----
Free text.`

func TestParse_Sections(t *testing.T) {
	t.Parallel()
	d := Parse(sample)

	assert.Equal(t, []string{"Compute a weighted sum."}, d.Summary)
	assert.Equal(t, []string{"Each value is multiplied by its weight", "before summing."}, d.Extended)

	require.Contains(t, d.Parameters, "values")
	v := d.Parameters["values"]
	assert.Equal(t, "list of float", v.Type)
	assert.Equal(t, "The values to sum.\n\nContinued after a blank line.", v.Description())

	w := d.Parameters["weights"]
	assert.Equal(t, "", w.Type)
	assert.Equal(t, []string{"Optional weights."}, w.Desc)

	assert.Equal(t, "any", d.Parameters["args"].Type)
	assert.Equal(t, "any", d.Parameters["kwargs"].Type)

	require.NotNil(t, d.Returns)
	assert.Equal(t, "float", d.Returns.Type)
	assert.Equal(t, "The weighted sum.", d.Returns.Description())

	assert.Equal(t, []string{"Free text."}, d.Sections["Notes"])
}

func TestParse_NamedReturn(t *testing.T) {
	t.Parallel()
	d := Parse("Returns\n-------\ntotal : int\n    Sum of parts.\n")

	assert.Empty(t, d.Summary)
	require.NotNil(t, d.Returns)
	assert.Equal(t, Param{Name: "total", Type: "int", Desc: []string{"Sum of parts."}}, *d.Returns)
}

func TestParse_TitleCaseAndUnderline(t *testing.T) {
	t.Parallel()
	d := Parse("Summary.\n\nother parameters\n================\nflag : bool\n  Toggle.\n")

	require.Contains(t, d.Parameters, "flag")
	assert.Equal(t, "bool", d.Parameters["flag"].Type)
	assert.Equal(t, "Toggle.", d.Parameters["flag"].Description())
}

func TestParse_ShortUnderlineIsNotASection(t *testing.T) {
	t.Parallel()
	d := Parse("Parameters\n---\nx : int\n")

	assert.Empty(t, d.Parameters)
	assert.Equal(t, []string{"Parameters", "---", "x : int"}, d.Summary)
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()
	d := Parse("")

	assert.Empty(t, d.Summary)
	assert.Empty(t, d.Parameters)
	assert.Nil(t, d.Returns)
}

func TestParse_NameWithoutType(t *testing.T) {
	t.Parallel()
	d := Parse("Parameters\n----------\nx :\n    No type given.\n")

	require.Contains(t, d.Parameters, "x")
	assert.Equal(t, "", d.Parameters["x"].Type)
}
