package pysrc

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// pythonExts lists the file extensions treated as Python source.
var pythonExts = map[string]bool{
	".py":  true,
	".pyi": true,
}

// grammar is the tree-sitter Python language, initialized on first use.
var (
	grammar     *sitter.Language
	grammarOnce sync.Once
)

// Language returns the tree-sitter Python grammar.
func Language() *sitter.Language {
	grammarOnce.Do(func() {
		grammar = python.GetLanguage()
	})
	return grammar
}

// IsPythonFile reports whether path has a Python source extension.
func IsPythonFile(path string) bool {
	return pythonExts[strings.ToLower(filepath.Ext(path))]
}

// parseTree parses src with a fresh parser. The caller must Close the tree.
func parseTree(ctx context.Context, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(Language())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	return tree, nil
}

// line converts a tree-sitter row to a 1-based line number.
func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// statements returns the named children of a module or block, skipping comments.
func statements(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// unwrapDecorated returns the definition inside a decorated_definition along
// with its decorator nodes. Other nodes are returned unchanged.
func unwrapDecorated(n *sitter.Node) (*sitter.Node, []*sitter.Node) {
	if n.Type() != "decorated_definition" {
		return n, nil
	}
	var decorators []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "decorator" {
			decorators = append(decorators, c)
		}
	}
	return n.ChildByFieldName("definition"), decorators
}
