// Package numpydoc parses numpy-style docstrings into their sections.
//
// Only the structure needed to document parameters is interpreted: the
// summary, the Parameters-like sections and Returns. Other sections are kept
// as raw lines. Malformed input never fails; unrecognized text ends up in the
// summary or extended summary.
package numpydoc

import (
	"strings"
	"unicode"
)

// Param is one entry of a parameter-list section.
type Param struct {
	Name string
	Type string
	Desc []string
}

// Description joins the description lines with newlines.
func (p Param) Description() string {
	return strings.Join(p.Desc, "\n")
}

// Docstring is a parsed numpy-style docstring.
type Docstring struct {
	Summary    []string
	Extended   []string
	Parameters map[string]Param
	Returns    *Param
	// Sections holds the raw lines of every other titled section.
	Sections map[string][]string
}

// paramSections are merged into Parameters, as numpydoc does with its
// parameter-like sections.
var paramSections = map[string]bool{
	"Parameters":        true,
	"Other Parameters":  true,
	"Attributes":        true,
	"Keyword Arguments": true,
}

// Parse parses doc. The text is expected to be cleaned already (see
// inspect.cleandoc); leading and trailing blank lines are ignored.
func Parse(doc string) *Docstring {
	d := &Docstring{
		Parameters: make(map[string]Param),
		Sections:   make(map[string][]string),
	}
	r := newReader(doc)
	r.skipBlank()

	// Summary: the first paragraph, unless the docstring starts with a section.
	if !r.atSection() {
		d.Summary = r.readParagraph()
		r.skipBlank()
		for !r.eof() && !r.atSection() {
			d.Extended = append(d.Extended, r.readParagraph()...)
			r.skipBlank()
			if !r.eof() && !r.atSection() {
				d.Extended = append(d.Extended, "")
			}
		}
	}

	for !r.eof() {
		title, content := r.readSection()
		switch {
		case paramSections[title]:
			for _, p := range parseParams(content, false) {
				d.Parameters[p.Name] = p
			}
		case title == "Returns":
			if ps := parseParams(content, true); len(ps) > 0 {
				ret := ps[0]
				d.Returns = &ret
			}
		default:
			d.Sections[title] = content
		}
	}
	return d
}

type reader struct {
	lines []string
	pos   int
}

func newReader(doc string) *reader {
	lines := strings.Split(strings.ReplaceAll(doc, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return &reader{lines: lines}
}

func (r *reader) eof() bool { return r.pos >= len(r.lines) }

func (r *reader) skipBlank() {
	for !r.eof() && r.lines[r.pos] == "" {
		r.pos++
	}
}

// atSection reports whether the current line is a section title, that is a
// non-blank line followed by an underline of '-' or '=' at least as long.
func (r *reader) atSection() bool {
	if r.pos+1 >= len(r.lines) {
		return false
	}
	title := strings.TrimSpace(r.lines[r.pos])
	under := strings.TrimSpace(r.lines[r.pos+1])
	if title == "" || under == "" || len(under) < len(title) {
		return false
	}
	return strings.Trim(under, "-") == "" || strings.Trim(under, "=") == ""
}

func (r *reader) readParagraph() []string {
	var out []string
	for !r.eof() && r.lines[r.pos] != "" && !r.atSection() {
		out = append(out, r.lines[r.pos])
		r.pos++
	}
	return out
}

// readSection consumes a section title, its underline and its body, which
// runs until the next section title. Trailing blank lines are dropped.
func (r *reader) readSection() (string, []string) {
	if !r.atSection() {
		// Stray text between sections is folded into an untitled section.
		content := r.readParagraph()
		r.skipBlank()
		return "", content
	}
	title := titleCase(strings.TrimSpace(r.lines[r.pos]))
	r.pos += 2
	var content []string
	for !r.eof() && !r.atSection() {
		content = append(content, r.lines[r.pos])
		r.pos++
	}
	for len(content) > 0 && strings.TrimSpace(content[len(content)-1]) == "" {
		content = content[:len(content)-1]
	}
	return title, content
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		rs := []rune(strings.ToLower(w))
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}

// parseParams reads a parameter list: an unindented "name : type" header
// followed by indented description lines. With singleIsType a header without
// a colon is a bare type, as in a Returns section.
func parseParams(content []string, singleIsType bool) []Param {
	var out []Param
	i := 0
	for i < len(content) {
		header := content[i]
		i++
		if strings.TrimSpace(header) == "" {
			continue
		}
		var desc []string
		for i < len(content) && (content[i] == "" || isIndented(content[i])) {
			desc = append(desc, content[i])
			i++
		}
		desc = trimBlank(dedentLines(desc))

		header = strings.TrimSpace(header)
		var name, typ string
		if n, t, ok := strings.Cut(header, " : "); ok {
			name, typ = strings.TrimSpace(n), strings.TrimSpace(t)
		} else if singleIsType {
			typ = header
		} else {
			name = header
		}
		if strings.HasSuffix(name, " :") {
			name = strings.TrimSpace(strings.TrimSuffix(name, ":"))
		}

		if singleIsType || name == "" {
			out = append(out, Param{Name: name, Type: typ, Desc: desc})
			continue
		}
		for _, n := range strings.Split(name, ",") {
			n = strings.TrimLeft(strings.TrimSpace(n), "*")
			if n == "" {
				continue
			}
			out = append(out, Param{Name: n, Type: typ, Desc: desc})
		}
	}
	return out
}

func isIndented(l string) bool {
	return strings.HasPrefix(l, " ") || strings.HasPrefix(l, "\t")
}

func dedentLines(lines []string) []string {
	margin := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent := len(l) - len(strings.TrimLeft(l, " \t"))
		if margin < 0 || indent < margin {
			margin = indent
		}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		if len(l) >= margin && margin > 0 {
			out[i] = l[margin:]
		} else {
			out[i] = strings.TrimSpace(l)
		}
	}
	return out
}

func trimBlank(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil
	}
	return lines
}
