// Package knowledge holds the curated set of known-good serial numbers.
package knowledge

import "sort"

// Base is an immutable set of known-good serial numbers. Membership is exact
// and case-sensitive; no trimming or case folding is applied.
type Base struct {
	serials map[string]struct{}
}

// New builds a Base from serials. Empty strings are ignored.
func New(serials ...string) *Base {
	b := &Base{serials: make(map[string]struct{}, len(serials))}
	for _, s := range serials {
		if s == "" {
			continue
		}
		b.serials[s] = struct{}{}
	}
	return b
}

// IsKnown reports whether text is exactly one of the known serial numbers.
// A nil Base knows nothing.
func (b *Base) IsKnown(text string) bool {
	if b == nil || text == "" {
		return false
	}
	_, ok := b.serials[text]
	return ok
}

// Len returns the number of known serial numbers.
func (b *Base) Len() int {
	if b == nil {
		return 0
	}
	return len(b.serials)
}

// Serials returns a sorted copy of the known serial numbers.
func (b *Base) Serials() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.serials))
	for s := range b.serials {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
