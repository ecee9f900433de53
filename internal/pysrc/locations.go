package pysrc

import (
	"context"
	"fmt"
)

// ReturnName is the synthetic parameter name of a return annotation.
const ReturnName = "return"

// LocateOptions selects which declarations ParamLocations maps.
type LocateOptions struct {
	// Record treats a class snippet as a dataclass whose annotated fields
	// are its parameters.
	Record bool
	// Returns maps the line of a return annotation to ReturnName.
	Returns bool
}

// ParamLocations maps the 1-based line of each parameter declaration in a
// single-definition snippet to the parameter name. When several parameters
// share a line the last one wins.
//
// ok is false when the snippet is not exactly one function definition (or
// one record class with opts.Record), or when it does not parse cleanly.
func ParamLocations(ctx context.Context, text string, opts LocateOptions) (locs map[int]string, ok bool, err error) {
	src := []byte(text)
	tree, err := parseTree(ctx, src)
	if err != nil {
		return nil, false, fmt.Errorf("pysrc: locations: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, false, nil
	}
	top := statements(root)
	if len(top) != 1 {
		return nil, false, nil
	}
	def, _ := unwrapDecorated(top[0])
	if def == nil {
		return nil, false, nil
	}

	switch def.Type() {
	case "function_definition":
		locs = make(map[int]string)
		if ps := def.ChildByFieldName("parameters"); ps != nil {
			for _, p := range parameters(ps, src, nil) {
				locs[p.Line] = p.Name
			}
		}
		if rt := def.ChildByFieldName("return_type"); opts.Returns && rt != nil {
			locs[line(rt)] = ReturnName
		}
		return locs, true, nil

	case "class_definition":
		if !opts.Record {
			return nil, false, nil
		}
		locs = make(map[int]string)
		body := def.ChildByFieldName("body")
		if body == nil {
			return locs, true, nil
		}
		for _, st := range statements(body) {
			if st.Type() != "expression_statement" {
				continue
			}
			a := st.NamedChild(0)
			if a == nil || a.Type() != "assignment" || a.ChildByFieldName("type") == nil {
				continue
			}
			if left := a.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
				locs[line(left)] = left.Content(src)
			}
		}
		return locs, true, nil
	}
	return nil, false, nil
}
