package pysrc

import (
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
)

// builtinConstructors maps builtin callables to the type of the value they return.
var builtinConstructors = map[string]string{
	"int":       "int",
	"float":     "float",
	"complex":   "complex",
	"str":       "str",
	"bytes":     "bytes",
	"bytearray": "bytearray",
	"bool":      "bool",
	"list":      "list",
	"dict":      "dict",
	"set":       "set",
	"frozenset": "frozenset",
	"tuple":     "tuple",
	"object":    "object",
	"range":     "range",
	"slice":     "slice",
}

// inferType returns the name of the type a default-value expression
// evaluates to, or "" when it cannot be known without running the code.
func (p *moduleParser) inferType(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "integer":
		return numberType(p.text(n), "int")
	case "float":
		return numberType(p.text(n), "float")
	case "string":
		return stringType(p.text(n))
	case "concatenated_string":
		if n.NamedChildCount() > 0 {
			return stringType(p.text(n.NamedChild(0)))
		}
		return "str"
	case "true", "false", "not_operator", "comparison_operator":
		return "bool"
	case "none":
		return "NoneType"
	case "ellipsis":
		return "ellipsis"
	case "list", "list_comprehension":
		return "list"
	case "tuple":
		return "tuple"
	case "dictionary", "dictionary_comprehension":
		return "dict"
	case "set", "set_comprehension":
		return "set"
	case "generator_expression":
		return "generator"
	case "lambda":
		return "function"
	case "parenthesized_expression":
		if n.NamedChildCount() == 1 {
			return p.inferType(n.NamedChild(0))
		}
	case "unary_operator":
		switch t := p.inferType(n.ChildByFieldName("argument")); t {
		case "int", "float", "complex":
			return t
		case "bool":
			return "int"
		}
	case "call":
		fn := p.text(n.ChildByFieldName("function"))
		if t, ok := builtinConstructors[fn]; ok {
			return t
		}
		if p.classes[fn] {
			return fn
		}
	case "identifier":
		return p.consts[p.text(n)]
	}
	return ""
}

func numberType(text, base string) string {
	if strings.HasSuffix(text, "j") || strings.HasSuffix(text, "J") {
		return "complex"
	}
	return base
}

func stringType(text string) string {
	for _, r := range text {
		if !unicode.IsLetter(r) {
			break
		}
		if r == 'b' || r == 'B' {
			return "bytes"
		}
	}
	return "str"
}
