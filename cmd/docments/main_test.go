package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/docments"
	"github.com/jward/docments/internal/config"
)

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	assert.Equal(t, root, findRepoRoot(root))
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "sub", "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestFindRepoRoot_NoGitAncestor(t *testing.T) {
	t.Parallel()
	// TempDir has no .git directory anywhere in its ancestry
	// (unless /tmp itself is a repo, which would be unusual).
	dir := t.TempDir()

	assert.Equal(t, dir, findRepoRoot(dir))
}

func TestResolveDBPath(t *testing.T) {
	cfg = config.Default()
	t.Cleanup(func() { cfg = nil })

	assert.Equal(t, filepath.Join("/repo", ".docments", "index.db"), resolveDBPath("/repo"))

	cfg.DB = "/abs/index.db"
	assert.Equal(t, "/abs/index.db", resolveDBPath("/repo"))
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))

	err := validateFormat("yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json or text")
}

// =============================================================================
// Text formatting
// =============================================================================

func parseResult(t *testing.T, src, qualname string, full bool) *docments.Result {
	t.Helper()
	ctx := context.Background()
	m, err := docments.Parse(ctx, "sample", []byte(src))
	require.NoError(t, err)
	c, err := m.Lookup(qualname)
	require.NoError(t, err)
	res, err := docments.Docments(ctx, c, docments.WithFull(full))
	require.NoError(t, err)
	return res
}

const sampleSource = `def f(
    # the input value
    a,
    b=2, # the scale
):
    return a * b
`

func TestFormatResultText(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	formatResultText(&buf, parseResult(t, sampleSource, "f", false), "")
	assert.Equal(t, "a       the input value\nb       the scale\nreturn  -\n", buf.String())
}

func TestFormatResultText_Full(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	formatResultText(&buf, parseResult(t, sampleSource, "f", true), "")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Regexp(t, `^NAME\s+ANNO\s+DEFAULT\s+DOC$`, string(lines[0]))
	assert.Regexp(t, `^b\s+int\s+2\s+the scale$`, string(lines[2]))
	assert.Regexp(t, `^return\s+-\s+-\s+-$`, string(lines[3]))
}

func TestOutputResultText_PaginationFooter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	total := 7
	err := outputResultText(&buf, CLIResult{
		Command:    "files",
		Results:    []CLIFile{{ID: 1, Path: "/r/a.py", Module: "a", LineCount: 3}},
		TotalCount: &total,
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "/r/a.py")
	assert.Contains(t, buf.String(), "Showing 1 of 7 results")
}

func TestOutputResultText_ScriptValue(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, outputResultText(&buf, CLIResult{Command: "script", Results: map[string]any{"n": 2}}))
	assert.JSONEq(t, `{"n": 2}`, buf.String())
}

func TestFormatMatchesText(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	doc := "how deep"
	formatMatchesText(&buf, []CLIMatch{
		{Module: "pkg.base", Qualname: "target", Param: "level", Docment: &doc},
		{Module: "pkg.base", Qualname: "target", Param: "a"},
	})
	out := buf.String()
	assert.Contains(t, out, "MODULE")
	assert.Regexp(t, `pkg\.base\s+target\s+level\s+how deep`, out)
	assert.Regexp(t, `pkg\.base\s+target\s+a\s+-`, out)
}
