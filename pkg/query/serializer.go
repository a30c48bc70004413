package query

import (
	"strings"
	"unicode"
)

// Serialize renders the AST back into its display text form. Metadata is
// dropped: it has no text representation and is recovered by Merge after
// the next parse. Serialize(Parse(s)) is stable for any s that Serialize
// itself produced.
func Serialize(ast AST) string {
	var b strings.Builder
	writeElements(&b, ast)
	return b.String()
}

func writeElements(b *strings.Builder, els []Element) {
	first := true
	for _, el := range els {
		switch n := el.(type) {
		case *Clause:
			if !first {
				b.WriteByte(' ')
			}
			writeValue(b, n.Value)
			first = false
		case *SubQuery:
			if !first {
				b.WriteByte(' ')
			}
			b.WriteByte('(')
			writeElements(b, n.Elements)
			b.WriteByte(')')
			first = false
		}
	}
}

// writeValue quotes a value whose raw form would not survive a re-parse:
// embedded whitespace would split it and parens would open a group. Values
// combining a double quote with whitespace or parens have no exact text
// form; they are quoted anyway as the closest representation.
func writeValue(b *strings.Builder, v string) {
	if needsQuoting(v) {
		b.WriteByte('"')
		b.WriteString(v)
		b.WriteByte('"')
		return
	}
	b.WriteString(v)
}

func needsQuoting(v string) bool {
	if v == "" {
		return true
	}
	return strings.ContainsAny(v, "()") || strings.IndexFunc(v, unicode.IsSpace) >= 0
}
