package pysrc

import sitter "github.com/smacker/go-tree-sitter"

// parameters converts a `parameters` node into Params in declaration order.
// infer may be nil, in which case DefaultType is left empty.
func parameters(n *sitter.Node, src []byte, infer func(*sitter.Node) string) []Param {
	var out []Param
	kind := PositionalOrKeyword

	add := func(name *sitter.Node, k ParamKind, anno, def *sitter.Node) {
		if name == nil || name.Type() != "identifier" {
			return
		}
		p := Param{Name: name.Content(src), Kind: k, Line: line(name)}
		if anno != nil {
			p.Annotation = anno.Content(src)
		}
		if def != nil {
			p.Default = def.Content(src)
			if infer != nil {
				p.DefaultType = infer(def)
			}
		}
		out = append(out, p)
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "identifier":
			add(c, kind, nil, nil)
		case "default_parameter":
			add(c.ChildByFieldName("name"), kind, nil, c.ChildByFieldName("value"))
		case "typed_default_parameter":
			add(c.ChildByFieldName("name"), kind, c.ChildByFieldName("type"), c.ChildByFieldName("value"))
		case "typed_parameter":
			inner, anno := c.NamedChild(0), c.ChildByFieldName("type")
			if inner == nil {
				continue
			}
			switch inner.Type() {
			case "list_splat_pattern":
				add(inner.NamedChild(0), VarPositional, anno, nil)
				kind = KeywordOnly
			case "dictionary_splat_pattern":
				add(inner.NamedChild(0), VarKeyword, anno, nil)
			default:
				add(inner, kind, anno, nil)
			}
		case "list_splat_pattern":
			add(c.NamedChild(0), VarPositional, nil, nil)
			kind = KeywordOnly
		case "dictionary_splat_pattern":
			add(c.NamedChild(0), VarKeyword, nil, nil)
		case "keyword_separator":
			kind = KeywordOnly
		case "positional_separator":
			for j := range out {
				if out[j].Kind == PositionalOrKeyword {
					out[j].Kind = PositionalOnly
				}
			}
		}
	}
	return out
}
