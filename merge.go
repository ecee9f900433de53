package docments

import "github.com/jward/docments/internal/numpydoc"

// mergeDocstring fills gaps in params from a parsed numpy-style docstring.
// A docstring type is used only when the parameter has no annotation, and a
// description only when it has no doc. Names the docstring mentions that are
// not in params are ignored. The return entry merges against the first
// Returns entry.
func mergeDocstring(params map[string]*Param, doc *numpydoc.Docstring) {
	for name, p := range params {
		var np *numpydoc.Param
		if name == ReturnKey {
			np = doc.Returns
		} else if v, ok := doc.Parameters[name]; ok {
			np = &v
		}
		if np == nil {
			continue
		}
		if p.Anno.IsEmpty() && np.Type != "" {
			p.Anno = Expr(np.Type)
		}
		if p.Doc == nil || *p.Doc == "" {
			if desc := np.Description(); desc != "" {
				p.Doc = &desc
			}
		}
	}
}
