package docments

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jward/docments/internal/numpydoc"
	"github.com/jward/docments/internal/pysrc"
)

// options configures a Docments call.
type options struct {
	full          bool
	returns       bool
	evalStr       bool
	blankComments bool
	logger        *slog.Logger
}

// DocOption configures Docments.
type DocOption func(*options)

// WithFull returns full records (doc, annotation, default) instead of doc
// text only.
func WithFull(full bool) DocOption {
	return func(o *options) { o.full = full }
}

// WithReturns controls whether the return value gets an entry. Default true.
func WithReturns(returns bool) DocOption {
	return func(o *options) { o.returns = returns }
}

// WithEvalStr replaces string-literal annotations with the expression they
// contain, as typing.get_type_hints does.
func WithEvalStr(evalStr bool) DocOption {
	return func(o *options) { o.evalStr = evalStr }
}

// WithBlankComments records a bare "#" as an empty comment line, so that it
// can separate paragraphs of a comment block above a parameter. By default
// bare markers are ignored.
func WithBlankComments(keep bool) DocOption {
	return func(o *options) { o.blankComments = keep }
}

// WithLogger sets the logger for soft failures such as unresolvable
// delegation targets. The default discards.
func WithLogger(l *slog.Logger) DocOption {
	return func(o *options) { o.logger = l }
}

func newOptions(opts []DocOption) *options {
	o := &options{returns: true}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Docments extracts the documentation of every parameter of c, and of its
// return value unless disabled with WithReturns(false).
//
// Documentation comes from comments next to each parameter, then from the
// numpy-style docstring. When c forwards **kwargs with @delegates, the
// target's documentation is merged in first and c's own entries override it
// wherever they have text. The result is ordered as c's signature with the
// return entry last.
func Docments(ctx context.Context, c Callable, opts ...DocOption) (*Result, error) {
	o := newOptions(opts)

	sig, err := c.Signature()
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]bool, len(sig.Params)+1)
	for _, p := range sig.Params {
		allowed[p.Name] = true
	}
	if o.returns {
		allowed[ReturnKey] = true
	}

	chain, err := delegationChain(c, o.logger)
	if err != nil {
		return nil, err
	}
	acc := make(map[string]Param)
	for i := len(chain) - 1; i >= 0; i-- {
		entries, err := extract(ctx, chain[i], o)
		if err != nil {
			return nil, err
		}
		accumulate(acc, entries, allowed)
	}

	res := newResult(o.full)
	for _, name := range sig.Names() {
		if p, ok := acc[name]; ok {
			res.set(p)
		}
	}
	if p, ok := acc[ReturnKey]; ok && o.returns {
		res.set(p)
	}
	return res, nil
}

// extract computes the entries of one callable in isolation: its signature
// parameters (plus the return entry), documented from its own source
// comments and docstring.
func extract(ctx context.Context, c Callable, o *options) ([]Param, error) {
	sig, err := c.Signature()
	if err != nil {
		return nil, err
	}

	var docs map[string]*string
	if src, ok := c.Source(); ok {
		docs, err = sourceDocs(ctx, c, src, o)
		if err != nil {
			return nil, err
		}
	} else {
		o.logger.Debug("source unavailable", "callable", callableKey(c))
	}

	byName := make(map[string]*Param, len(sig.Params)+1)
	entries := make([]*Param, 0, len(sig.Params)+1)
	add := func(name string, anno, def Expr, defType string) {
		p := &Param{Name: name, Doc: docs[name], Anno: anno, Default: def}
		if p.Anno.IsEmpty() && !p.Default.IsEmpty() {
			p.Anno = Expr(defType)
		}
		if o.evalStr {
			p.Anno = evalStr(p.Anno)
		}
		byName[name] = p
		entries = append(entries, p)
	}
	for _, sp := range sig.Params {
		add(sp.Name, sp.Annotation, sp.Default, sp.DefaultType)
	}
	if o.returns {
		add(ReturnKey, sig.Return, Empty, "")
	}

	if doc := c.Docstring(); doc != "" {
		mergeDocstring(byName, numpydoc.Parse(doc))
	}

	out := make([]Param, len(entries))
	for i, p := range entries {
		if p.Doc != nil && *p.Doc == "" {
			p.Doc = nil
		}
		out[i] = *p
	}
	return out, nil
}

// sourceDocs reads the comments of c's source and attributes them to
// parameter names.
func sourceDocs(ctx context.Context, c Callable, src string, o *options) (map[string]*string, error) {
	comments, err := pysrc.Comments(ctx, src, pysrc.CommentOptions{KeepBlank: o.blankComments})
	if err != nil {
		return nil, fmt.Errorf("docments: %s: %w", callableKey(c), err)
	}
	locs, ok, err := pysrc.ParamLocations(ctx, src, pysrc.LocateOptions{
		Record:  c.Kind() == KindRecord,
		Returns: o.returns,
	})
	if err != nil {
		return nil, fmt.Errorf("docments: %s: %w", callableKey(c), err)
	}
	if !ok {
		o.logger.Debug("unrecognized definition shape", "callable", callableKey(c))
		return nil, nil
	}
	return associate(locs, comments), nil
}

// evalStr unquotes a string-literal annotation.
func evalStr(anno Expr) Expr {
	s := string(anno)
	if s == "" {
		return anno
	}
	i := 0
	for i < len(s) && (s[i] == 'r' || s[i] == 'R' || s[i] == 'u' || s[i] == 'U') {
		i++
	}
	if i < len(s) && (s[i] == '"' || s[i] == '\'') {
		return Expr(pysrc.StringValue(s))
	}
	return anno
}
