package query

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var foldCaser = cases.Fold()

// MatchKey reduces a clause value to the form used for clause matching
// during a merge: NFKC-normalized, case-folded, with runs of whitespace
// collapsed to single spaces. "Café  Noir" and "café noir" match.
func MatchKey(value string) string {
	v := norm.NFKC.String(value)
	v = foldCaser.String(v)
	return strings.Join(strings.Fields(v), " ")
}

// Merge carries clause metadata from prev onto next after a re-parse.
// Freshly parsed clauses have no metadata; for each clause of next, in
// order, the earliest unconsumed prev clause with a matching value donates
// its metadata. When no value match exists, the prev clause at the same
// positional index is used if still unconsumed, which recovers metadata
// across edits that keep a term in place while changing its spelling.
// Every prev clause donates at most once.
//
// The result has next's structure with metadata attached; next itself is
// not mutated. If either input is malformed, Merge returns nil and the
// caller should use next as-is.
func Merge(prev, next AST) AST {
	if !prev.IsWellFormed() || !next.IsWellFormed() {
		return nil
	}

	prevClauses := prev.Clauses()
	consumed := make([]bool, len(prevClauses))

	prevKeys := make([]string, len(prevClauses))
	for i, c := range prevClauses {
		prevKeys[i] = MatchKey(c.Value)
	}

	merged := next.Clone()
	for i, c := range merged.Clauses() {
		idx := -1
		key := MatchKey(c.Value)
		for j, pk := range prevKeys {
			if !consumed[j] && pk == key {
				idx = j
				break
			}
		}
		if idx == -1 && i < len(prevClauses) && !consumed[i] {
			idx = i
		}
		if idx >= 0 {
			consumed[idx] = true
			c.Metadata = prevClauses[idx].Metadata
		} else {
			c.Metadata = nil
		}
	}
	return merged
}
