package store

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// ComputeSignatureHash computes a deterministic hash from a callable's
// documented surface: its kind, delegation target and every entry's name,
// kind, doc text, annotation and default. Location changes do NOT affect
// the hash.
func ComputeSignatureHash(kind, delegatesTo string, params []*Param) string {
	h := sha256.New()

	fmt.Fprintf(h, "kind:%s\n", kind)
	fmt.Fprintf(h, "delegates:%s\n", delegatesTo)

	// Params, sorted by ordinal.
	sorted := make([]*Param, len(params))
	copy(sorted, params)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Ordinal < sorted[j].Ordinal
	})
	for _, p := range sorted {
		doc := "<absent>"
		if p.Docment != nil {
			doc = fmt.Sprintf("%q", *p.Docment)
		}
		fmt.Fprintf(h, "param:%d:%s:%s:%s:%q:%q\n", p.Ordinal, p.Name, p.Kind, doc, p.Anno, p.Default)
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}
