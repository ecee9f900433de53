package runtime

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"unsafe"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/docments"
	"github.com/jward/docments/internal/pysrc"
)

// treeSources remembers the source bytes of every tree parsed by a script.
// go-tree-sitter nodes carry no reference to their tree, so entries are keyed
// by the address of the root node, which any node reaches through Parent().
type treeSources struct {
	mu  sync.RWMutex
	src map[uintptr][]byte
}

func newTreeSources() *treeSources {
	return &treeSources{src: make(map[uintptr][]byte)}
}

func rootKey(n *sitter.Node) uintptr {
	for n.Parent() != nil {
		n = n.Parent()
	}
	return uintptr(unsafe.Pointer(n))
}

func (t *treeSources) add(tree *sitter.Tree, src []byte) {
	t.mu.Lock()
	t.src[rootKey(tree.RootNode())] = src
	t.mu.Unlock()
}

func (t *treeSources) lookup(n *sitter.Node) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	src, ok := t.src[rootKey(n)]
	return src, ok
}

// nodeArg unwraps a proxied tree-sitter node.
func nodeArg(fn string, arg object.Object) (*sitter.Node, *object.Error) {
	p, ok := arg.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected a node, got %s", fn, arg.Type())
	}
	n, ok := p.Interface().(*sitter.Node)
	if !ok {
		return nil, object.Errorf("%s: expected a node, got %T", fn, p.Interface())
	}
	return n, nil
}

func proxyNode(fn string, n *sitter.Node) object.Object {
	if n == nil {
		return object.Nil
	}
	p, err := object.NewProxy(n)
	if err != nil {
		return object.Errorf("%s: %v", fn, err)
	}
	return p
}

// parse(path) parses a Python file and returns its tree.
func makeParseFn(ts *treeSources) *object.Builtin {
	return object.NewBuiltin("parse", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parse", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("parse: path: %v", err)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return object.Errorf("parse: %v", err)
		}
		return parseTree(ctx, ts, "parse", src)
	})
}

// parse_src(source) parses Python source text.
func makeParseSrcFn(ts *treeSources) *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parse_src", 1, len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("parse_src: source: %v", err)
		}
		return parseTree(ctx, ts, "parse_src", []byte(src))
	})
}

func parseTree(ctx context.Context, ts *treeSources, fn string, src []byte) object.Object {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(pysrc.Language())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return object.Errorf("%s: %v", fn, err)
	}
	ts.add(tree, src)

	p, err := object.NewProxy(tree)
	if err != nil {
		return object.Errorf("%s: %v", fn, err)
	}
	return p
}

// node_text(node) returns the source text a node spans. Scripts cannot call
// Node.Content themselves because proxies do not convert strings to []byte.
func makeNodeTextFn(ts *treeSources) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		n, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		src, ok := ts.lookup(n)
		if !ok {
			return object.Errorf("node_text: node does not belong to a parsed tree")
		}
		return object.NewString(n.Content(src))
	})
}

// node_child(node, field) returns the child under a field name, or nil
// rather than a proxied nil pointer.
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		n, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		field, err := toString(args[1])
		if err != nil {
			return object.Errorf("node_child: field: %v", err)
		}
		return proxyNode("node_child", n.ChildByFieldName(field))
	})
}

// query(pattern, node) runs a tree-sitter query under node. Each match is a
// map from capture name to node.
func makeQueryFn(ts *treeSources) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		pattern, err := toString(args[0])
		if err != nil {
			return object.Errorf("query: pattern: %v", err)
		}
		n, errObj := nodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}
		src, ok := ts.lookup(n)
		if !ok {
			return object.Errorf("query: node does not belong to a parsed tree")
		}

		q, err := sitter.NewQuery([]byte(pattern), pysrc.Language())
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()
		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, n)

		matches := []object.Object{}
		for {
			m, ok := cursor.NextMatch()
			if !ok {
				break
			}
			m = cursor.FilterPredicates(m, src)
			captures := make(map[string]object.Object, len(m.Captures))
			for _, c := range m.Captures {
				captures[q.CaptureNameForId(c.Index)] = proxyNode("query", c.Node)
			}
			matches = append(matches, object.NewMap(captures))
		}
		return object.NewList(matches)
	})
}

// comments(source, keep_blank=false) maps each comment's line number, as a
// string key, to its text without the marker.
func makeCommentsFn() *object.Builtin {
	return object.NewBuiltin("comments", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.Errorf("comments: expected 1 or 2 arguments, got %d", len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("comments: source: %v", err)
		}
		var opts pysrc.CommentOptions
		if len(args) == 2 {
			b, ok := args[1].(*object.Bool)
			if !ok {
				return object.Errorf("comments: keep_blank must be a bool, got %s", args[1].Type())
			}
			opts.KeepBlank = b.Value()
		}

		cs, err := pysrc.Comments(ctx, src, opts)
		if err != nil {
			return object.Errorf("comments: %v", err)
		}
		out := make(map[string]object.Object, len(cs))
		for line, text := range cs {
			out[strconv.Itoa(line)] = object.NewString(text)
		}
		return object.NewMap(out)
	})
}

// extract(source, qualname, full=false) computes the docments of a callable
// in Python source without touching the index.
func makeExtractFn(logger *slog.Logger) *object.Builtin {
	return object.NewBuiltin("extract", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 2 || len(args) > 3 {
			return object.Errorf("extract: expected 2 or 3 arguments, got %d", len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("extract: source: %v", err)
		}
		qualname, err := toString(args[1])
		if err != nil {
			return object.Errorf("extract: qualname: %v", err)
		}
		full := false
		if len(args) == 3 {
			b, ok := args[2].(*object.Bool)
			if !ok {
				return object.Errorf("extract: full must be a bool, got %s", args[2].Type())
			}
			full = b.Value()
		}

		mod, err := docments.Parse(ctx, docments.MainModule, []byte(src))
		if err != nil {
			return object.Errorf("extract: %v", err)
		}
		c, err := mod.Lookup(qualname)
		if err != nil {
			return object.Errorf("extract: %v", err)
		}
		res, err := docments.Docments(ctx, c, docments.WithFull(full), docments.WithLogger(logger))
		if err != nil {
			return object.Errorf("extract: %v", err)
		}
		return resultToMap(res)
	})
}

// scriptLog is the log global. Records carry source=script.
type scriptLog struct {
	logger *slog.Logger
}

func (l *scriptLog) Info(msg string)  { l.logger.Info(msg, "source", "script") }
func (l *scriptLog) Warn(msg string)  { l.logger.Warn(msg, "source", "script") }
func (l *scriptLog) Error(msg string) { l.logger.Error(msg, "source", "script") }
