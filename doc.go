// Package docments extracts per-parameter documentation ("docments") from
// the comments written next to the parameters of Python functions, methods,
// classes and dataclasses, using tree-sitter to read the source.
//
// A parameter's docment is the comment on its own line, or failing that the
// block of comments directly above it:
//
//	def add(
//	    a:int, # the 1st number to add
//	    # the 2nd number to add
//	    b=0,
//	)->int:    # the result of adding `a` to `b`
//	    ...
//
// Parameters without a comment take their description from a numpy-style
// docstring when there is one. Callables decorated with @delegates(target)
// also get the keyword parameters, and their documentation, of target.
//
// # Usage
//
// Parse a module, look up a callable and extract its docments:
//
//	m, err := docments.Load(ctx, "pkg/api.py")
//	if err != nil { ... }
//	c, err := m.Lookup("Client.fetch")
//	res, err := docments.Docments(ctx, c, docments.WithFull(true))
//
// Delegation targets in other modules resolve only when those modules are
// loaded into the same [Workspace], for example with [LoadDir].
//
// # Index
//
// An [Engine] keeps the full docments of a source tree in SQLite:
//
//	e, err := docments.New(".docments/index.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	stats, err := e.IndexDirectory(ctx, "path/to/project")
//	entry, err := e.Query().Docments("pkg.api", "run")
//
// [Engine.IndexFiles] skips files whose content hash is unchanged. When a
// module changes, every indexed file importing it is extracted again so that
// delegated parameters stay current.
//
// The [QueryBuilder] returned by [Engine.Query] provides lookups by module
// and qualified name, the callables of a file, the delegators of a callable,
// documentation text search, undocumented parameters and coverage.
package docments
