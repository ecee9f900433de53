package docments

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/jward/docments/internal/pysrc"
	"github.com/jward/docments/internal/store"
)

// Sentinel errors. Callers compare with errors.Is; returned errors wrap them
// with the callable or name involved.
var (
	// ErrSignatureUnavailable means no signature could be determined for a
	// callable, for example a class whose constructor lives in an unresolvable
	// base class.
	ErrSignatureUnavailable = errors.New("signature unavailable")
	// ErrDelegationCycle means a chain of @delegates targets loops back on itself.
	ErrDelegationCycle = errors.New("delegation cycle")
	// ErrNotFound means a qualified name does not name a callable.
	ErrNotFound = errors.New("not found")
)

// ReturnKey is the result key of the return-value entry.
const ReturnKey = pysrc.ReturnName

// Expr is the source text of a Python expression used as an annotation or a
// default value. The zero value is Empty, meaning "no annotation" or "no
// default", which is distinct from an expression that evaluates to None.
type Expr string

// Empty is the absent-expression sentinel.
const Empty Expr = ""

// IsEmpty reports whether e is the Empty sentinel.
func (e Expr) IsEmpty() bool { return e == Empty }

func (e Expr) String() string {
	if e == Empty {
		return "empty"
	}
	return string(e)
}

// MarshalJSON encodes Empty as null.
func (e Expr) MarshalJSON() ([]byte, error) {
	if e == Empty {
		return []byte("null"), nil
	}
	return json.Marshal(string(e))
}

// Param is the documentation record of one parameter (or of the return
// value, under ReturnKey).
type Param struct {
	Name    string  `json:"-"`
	Doc     *string `json:"docment"` // nil when no documentation was found
	Anno    Expr    `json:"anno"`
	Default Expr    `json:"default"`
}

// DocText returns the doc text, or "" when absent.
func (p Param) DocText() string {
	if p.Doc == nil {
		return ""
	}
	return *p.Doc
}

// Result is an ordered mapping from parameter name to its documentation.
// Names follow signature order, with ReturnKey last when present.
//
// In non-full mode only doc texts are meaningful: Anno and Default are left
// Empty and JSON encodes each name to its doc string or null.
type Result struct {
	full   bool
	names  []string
	params map[string]Param
}

func newResult(full bool) *Result {
	return &Result{full: full, params: make(map[string]Param)}
}

func (r *Result) set(p Param) {
	if !r.full {
		p = Param{Name: p.Name, Doc: p.Doc}
	}
	if _, ok := r.params[p.Name]; !ok {
		r.names = append(r.names, p.Name)
	}
	r.params[p.Name] = p
}

// Full reports whether the result carries annotations and defaults.
func (r *Result) Full() bool { return r.full }

// Len returns the number of entries.
func (r *Result) Len() int { return len(r.names) }

// Names returns the entry names in order.
func (r *Result) Names() []string {
	return append([]string(nil), r.names...)
}

// Get returns the entry for name.
func (r *Result) Get(name string) (Param, bool) {
	p, ok := r.params[name]
	return p, ok
}

// Doc returns the doc text for name. ok is false when name is unknown or
// has no documentation.
func (r *Result) Doc(name string) (string, bool) {
	p, ok := r.params[name]
	if !ok || p.Doc == nil {
		return "", false
	}
	return *p.Doc, true
}

// Params returns the entries in order.
func (r *Result) Params() []Param {
	out := make([]Param, len(r.names))
	for i, n := range r.names {
		out[i] = r.params[n]
	}
	return out
}

// MarshalJSON encodes the result as a JSON object whose keys keep entry order.
func (r *Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		p := r.params[n]
		var val []byte
		if r.full {
			val, err = json.Marshal(p)
		} else {
			val, err = json.Marshal(p.Doc)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParamKind is the inspect-style kind of a signature parameter.
type ParamKind = pysrc.ParamKind

const (
	PositionalOnly      = pysrc.PositionalOnly
	PositionalOrKeyword = pysrc.PositionalOrKeyword
	VarPositional       = pysrc.VarPositional
	KeywordOnly         = pysrc.KeywordOnly
	VarKeyword          = pysrc.VarKeyword
)

// Aliases for the index rows returned by QueryBuilder.
type (
	File            = store.File
	IndexedCallable = store.Callable
	IndexedParam    = store.Param
	Store           = store.Store
)
