package docments

import (
	"fmt"

	"github.com/jward/docments/internal/pysrc"
)

// Parameter is one parameter of a Signature.
type Parameter struct {
	Name       string
	Kind       ParamKind
	Annotation Expr
	Default    Expr
	// DefaultType is the statically inferred type of Default, such as "int",
	// or "" when it cannot be determined without running the code.
	DefaultType string
}

// Signature is the call signature of a Callable.
type Signature struct {
	Params []Parameter
	Return Expr
}

// Names returns the parameter names in order.
func (s *Signature) Names() []string {
	out := make([]string, len(s.Params))
	for i, p := range s.Params {
		out[i] = p.Name
	}
	return out
}

// Param returns the parameter called name.
func (s *Signature) Param(name string) (Parameter, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// delegation describes a @delegates decorator in effect on a callable.
type delegation struct {
	// targetExpr is the target as written; "" with toBase means the first
	// base class.
	targetExpr string
	toBase     bool
	keep       bool
	but        map[string]bool

	// owner is the definition carrying the decorator and mod its module.
	mod   *Module
	owner *pysrc.Def
}

// String describes the target for log messages.
func (d *delegation) String() string {
	if d.toBase {
		return "base class of " + d.owner.Qualname
	}
	return d.targetExpr
}

// delegationOf returns the @delegates decorator in effect on c, or nil.
// A class uses its constructor's decorator, which may be inherited, before
// its class decorator.
func delegationOf(c Callable) *delegation {
	switch v := c.(type) {
	case *Function:
		return parseDelegates(v.mod, v.d, false)
	case *Method:
		return parseDelegates(v.mod, v.d, false)
	case *Class:
		if im, init, err := v.mod.constructor(v.d); err == nil && init != nil {
			if dl := parseDelegates(im, init, false); dl != nil {
				return dl
			}
		}
		return parseDelegates(v.mod, v.d, true)
	}
	return nil
}

func parseDelegates(mod *Module, d *pysrc.Def, onClass bool) *delegation {
	dec, ok := d.Decorator("delegates")
	if !ok {
		return nil
	}
	dl := &delegation{mod: mod, owner: d, but: make(map[string]bool)}

	arg := func(pos int, name string) (pysrc.Arg, bool) {
		if a, ok := dec.Kwargs[name]; ok {
			return a, true
		}
		if pos < len(dec.Args) {
			return dec.Args[pos], true
		}
		return pysrc.Arg{}, false
	}
	if to, ok := arg(0, "to"); ok && to.Text != "None" {
		dl.targetExpr = to.Text
	}
	if keep, ok := arg(1, "keep"); ok {
		dl.keep = keep.Text == "True"
	}
	if but, ok := arg(2, "but"); ok {
		for _, s := range but.Strings {
			dl.but[s] = true
		}
	}
	if dl.targetExpr == "" {
		if !onClass {
			// delegates() on a function has nothing to forward to.
			return nil
		}
		dl.toBase = true
	}
	return dl
}

// target resolves the delegation target. ok is false when it names nothing
// in the workspace.
func (d *delegation) target() (Callable, bool) {
	if !d.toBase {
		return d.mod.resolve(d.targetExpr)
	}
	for _, b := range d.owner.Bases {
		if neutralBases[baseName(b)] {
			continue
		}
		bm, bd, ok := d.mod.resolveClass(b)
		if !ok {
			return nil, false
		}
		return bm.wrap(bd, nil), true
	}
	return nil, false
}

// signatureOf computes c's signature. seen holds the callables whose
// signatures are being computed further up the delegation chain.
func signatureOf(c Callable, seen map[string]bool) (*Signature, error) {
	key := callableKey(c)
	if seen[key] {
		return nil, fmt.Errorf("docments: %s: %w", key, ErrDelegationCycle)
	}
	seen[key] = true
	defer delete(seen, key)

	sig, err := ownSignature(c)
	if err != nil {
		return nil, err
	}
	dl := delegationOf(c)
	if dl == nil {
		return sig, nil
	}
	target, ok := dl.target()
	if !ok {
		return sig, nil
	}
	tsig, err := signatureOf(target, seen)
	if err != nil {
		return nil, err
	}
	return expand(sig, tsig, dl), nil
}

// ownSignature is c's signature as declared, before delegation.
func ownSignature(c Callable) (*Signature, error) {
	switch v := c.(type) {
	case *Function:
		return fromDef(v.d, false), nil
	case *Method:
		return fromDef(v.d, !v.static()), nil
	case *Class:
		_, init, err := v.mod.constructor(v.d)
		if err != nil {
			return nil, fmt.Errorf("docments: %s: %w: %v", callableKey(c), ErrSignatureUnavailable, err)
		}
		if init == nil {
			return &Signature{}, nil
		}
		return fromDef(init, true), nil
	case *Record:
		return recordSignature(v.mod, v.d), nil
	}
	return nil, fmt.Errorf("docments: %s: %w", callableKey(c), ErrSignatureUnavailable)
}

// fromDef converts a function definition's parameters. bound drops the
// receiver.
func fromDef(d *pysrc.Def, bound bool) *Signature {
	params := d.Params
	if bound && len(params) > 0 && params[0].Kind <= PositionalOrKeyword {
		params = params[1:]
	}
	sig := &Signature{Return: Expr(d.Returns)}
	for _, p := range params {
		sig.Params = append(sig.Params, Parameter{
			Name:        p.Name,
			Kind:        p.Kind,
			Annotation:  Expr(p.Annotation),
			Default:     Expr(p.Default),
			DefaultType: p.DefaultType,
		})
	}
	return sig
}

// recordSignature builds a dataclass's generated constructor signature:
// fields of base dataclasses first, then its own, with redefined fields kept
// in their original position.
func recordSignature(mod *Module, d *pysrc.Def) *Signature {
	var params []Parameter
	index := make(map[string]int)
	add := func(f pysrc.Field) {
		if f.ClassVar {
			return
		}
		p := Parameter{
			Name:        f.Name,
			Kind:        PositionalOrKeyword,
			Annotation:  Expr(f.Annotation),
			Default:     Expr(f.Default),
			DefaultType: f.DefaultType,
		}
		if i, ok := index[f.Name]; ok {
			params[i] = p
			return
		}
		index[f.Name] = len(params)
		params = append(params, p)
	}

	var chain []*pysrc.Def
	seen := map[*pysrc.Def]bool{d: true}
	var collect func(m *Module, cls *pysrc.Def, depth int)
	collect = func(m *Module, cls *pysrc.Def, depth int) {
		if depth > maxImportDepth {
			return
		}
		// Python's MRO visits the last base first when collecting fields.
		for i := len(cls.Bases) - 1; i >= 0; i-- {
			bm, bd, ok := m.resolveClass(cls.Bases[i])
			if !ok || seen[bd] || !isRecord(bd) {
				continue
			}
			seen[bd] = true
			collect(bm, bd, depth+1)
			chain = append(chain, bd)
		}
	}
	collect(mod, d, 0)
	chain = append(chain, d)

	noInit := make(map[string]bool)
	for _, cls := range chain {
		for _, f := range cls.Fields {
			add(f)
			noInit[f.Name] = f.NoInit
		}
	}
	sig := &Signature{Return: "None"}
	for _, p := range params {
		if !noInit[p.Name] {
			sig.Params = append(sig.Params, p)
		}
	}
	return sig
}

// expand applies a delegation to sig: the wrapper's **kwargs is replaced by
// the target's defaulted parameters not already present and not excluded,
// as keyword-only parameters. **kwargs is kept at the end with keep.
func expand(sig, target *Signature, dl *delegation) *Signature {
	kw := -1
	for i, p := range sig.Params {
		if p.Kind == VarKeyword {
			kw = i
			break
		}
	}
	if kw < 0 {
		return sig
	}

	out := &Signature{Return: sig.Return}
	present := make(map[string]bool)
	for i, p := range sig.Params {
		if i == kw {
			continue
		}
		out.Params = append(out.Params, p)
		present[p.Name] = true
	}
	for _, p := range target.Params {
		if p.Default.IsEmpty() || present[p.Name] || dl.but[p.Name] {
			continue
		}
		p.Kind = KeywordOnly
		out.Params = append(out.Params, p)
		present[p.Name] = true
	}
	if dl.keep {
		out.Params = append(out.Params, sig.Params[kw])
	}
	return out
}

// DelegationTarget returns the callable c forwards its **kwargs to. ok is
// false when c has no @delegates decorator or its target does not resolve.
func DelegationTarget(c Callable) (Callable, bool) {
	dl := delegationOf(c)
	if dl == nil {
		return nil, false
	}
	return dl.target()
}
