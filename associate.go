package docments

import (
	"strings"

	"github.com/jward/docments/internal/pysrc"
)

// associate attributes comments to parameters. A comment on a parameter's own
// line wins. Otherwise the contiguous block of comment lines directly above
// it is used, stopping at a line without a comment, at another parameter's
// line or at the top of the snippet. The block is joined top to bottom and
// dedented.
func associate(locs map[int]string, comments map[int]string) map[string]*string {
	docs := make(map[string]*string, len(locs))
	for line, name := range locs {
		docs[name] = commentFor(line, locs, comments)
	}
	return docs
}

func commentFor(line int, locs map[int]string, comments map[int]string) *string {
	if c, ok := comments[line]; ok {
		s := strings.TrimSpace(c)
		return &s
	}
	var block []string
	for l := line - 1; l > 0; l-- {
		c, ok := comments[l]
		if !ok {
			break
		}
		if _, isParam := locs[l]; isParam {
			break
		}
		block = append(block, c)
	}
	if len(block) == 0 {
		return nil
	}
	for i, j := 0, len(block)-1; i < j; i, j = i+1, j-1 {
		block[i], block[j] = block[j], block[i]
	}
	s := pysrc.Dedent(strings.Join(block, "\n"))
	return &s
}
