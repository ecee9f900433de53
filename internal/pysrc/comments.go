package pysrc

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// CommentOptions controls how comment tokens are cleaned.
type CommentOptions struct {
	// KeepBlank records a bare "#" as an empty comment instead of dropping it.
	KeepBlank bool
}

// Comments tokenizes Python source and maps each comment's 1-based start
// line to its text with the leading "#" removed and trailing whitespace
// trimmed. Leading whitespace after the marker is kept so that a block of
// comments can be dedented as a whole.
func Comments(ctx context.Context, text string, opts CommentOptions) (map[int]string, error) {
	src := []byte(text)
	tree, err := parseTree(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("pysrc: comments: %w", err)
	}
	defer tree.Close()

	comments := make(map[int]string)
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "comment" {
			if c, ok := CleanComment(n.Content(src), opts); ok {
				comments[line(n)] = c
			}
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())
	return comments, nil
}

// CleanComment strips the comment marker from a comment token. It reports
// false for text that is not a comment, and for a bare marker unless
// opts.KeepBlank is set.
func CleanComment(tok string, opts CommentOptions) (string, bool) {
	tok = strings.TrimLeft(tok, " \t")
	if !strings.HasPrefix(tok, "#") {
		return "", false
	}
	body := strings.TrimRight(tok[1:], " \t\r\n")
	if strings.TrimSpace(body) == "" {
		return "", opts.KeepBlank
	}
	return body, true
}
