package pysrc

import (
	"strings"
	"unicode"
)

// Dedent removes the whitespace prefix common to every non-blank line and
// empties whitespace-only lines, like Python's textwrap.dedent.
func Dedent(text string) string {
	lines := strings.Split(text, "\n")
	var margin string
	found := false
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
		if !found {
			margin, found = indent, true
			continue
		}
		margin = commonPrefix(margin, indent)
	}
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = strings.TrimPrefix(l, margin)
	}
	return strings.Join(lines, "\n")
}

func commonPrefix(a, b string) string {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

// CleanDoc normalizes docstring indentation the way inspect.cleandoc does:
// the first line is left-stripped, the smallest indentation of the
// remaining lines is removed, and leading/trailing blank lines are dropped.
func CleanDoc(doc string) string {
	lines := strings.Split(expandTabs(doc), "\n")
	margin := -1
	for _, l := range lines[1:] {
		content := strings.TrimLeft(l, " ")
		if content == "" {
			continue
		}
		indent := len(l) - len(content)
		if margin < 0 || indent < margin {
			margin = indent
		}
	}
	lines[0] = strings.TrimLeft(lines[0], " ")
	if margin > 0 {
		for i := 1; i < len(lines); i++ {
			if len(lines[i]) >= margin {
				lines[i] = lines[i][margin:]
			} else {
				lines[i] = strings.TrimLeft(lines[i], " ")
			}
		}
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}

func expandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		switch r {
		case '\t':
			n := 8 - col%8
			b.WriteString(strings.Repeat(" ", n))
			col += n
		case '\n':
			b.WriteRune(r)
			col = 0
		default:
			b.WriteRune(r)
			col++
		}
	}
	return b.String()
}

// StringValue returns the value of a Python string literal given its
// source text, quotes and prefix included. Escapes are interpreted unless
// the literal is raw.
func StringValue(raw string) string {
	i := 0
	for i < len(raw) && unicode.IsLetter(rune(raw[i])) {
		i++
	}
	prefix, body := strings.ToLower(raw[:i]), raw[i:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(body) >= 2*len(q) && strings.HasPrefix(body, q) && strings.HasSuffix(body, q) {
			body = body[len(q) : len(body)-len(q)]
			break
		}
	}
	if strings.Contains(prefix, "r") {
		return body
	}
	return unescape(body)
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\', '\'', '"':
			b.WriteByte(s[i])
		case '\n':
			// line continuation
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// snippet returns the full source lines spanning startRow..endRow (0-based,
// inclusive), dedented.
func snippet(src []byte, startRow, endRow int) Snippet {
	lines := strings.Split(string(src), "\n")
	if startRow >= len(lines) {
		return Snippet{Line: startRow + 1}
	}
	endRow = min(endRow, len(lines)-1)
	text := strings.Join(lines[startRow:endRow+1], "\n")
	return Snippet{Text: Dedent(text) + "\n", Line: startRow + 1}
}
