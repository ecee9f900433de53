package docments

import (
	"fmt"
	"log/slog"
)

// delegationChain returns c followed by the callables it delegates to,
// nearest first. A delegation with keep=True does not extend the chain, and
// an unresolvable target ends it with a warning.
func delegationChain(c Callable, logger *slog.Logger) ([]Callable, error) {
	chain := []Callable{c}
	seen := map[string]bool{callableKey(c): true}
	for cur := c; ; {
		dl := delegationOf(cur)
		if dl == nil || dl.keep {
			return chain, nil
		}
		target, ok := dl.target()
		if !ok {
			logger.Warn("delegation target not found",
				"callable", callableKey(cur),
				"target", dl.String(),
			)
			return chain, nil
		}
		key := callableKey(target)
		if seen[key] {
			return nil, fmt.Errorf("docments: %s delegates to %s: %w", callableKey(cur), key, ErrDelegationCycle)
		}
		seen[key] = true
		chain = append(chain, target)
		cur = target
	}
}

// accumulate merges a callable's entries into acc. An accumulated entry is
// replaced when the incoming one has doc text or the accumulated one has
// none. Only names in allowed are kept.
func accumulate(acc map[string]Param, entries []Param, allowed map[string]bool) {
	for _, p := range entries {
		if !allowed[p.Name] {
			continue
		}
		prev, ok := acc[p.Name]
		if p.Doc != nil || !ok || prev.Doc == nil {
			acc[p.Name] = p
		}
	}
}
