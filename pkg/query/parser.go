package query

import (
	"strings"
	"unicode"
)

// Parse converts free search text into an AST. It never fails: empty or
// whitespace-only input yields an empty AST, and malformed input (unmatched
// parentheses or quotes) degrades to literal characters rather than errors,
// because the search box must accept whatever the user types.
func Parse(text string) AST {
	toks := tokenize(text)
	toks = resolveUnmatched(toks)
	pos := 0
	return AST(buildElements(toks, &pos))
}

type tokKind int

const (
	tokTerm tokKind = iota
	tokOpen
	tokClose
)

type token struct {
	kind tokKind
	text string
	// joinPrev is set when no whitespace separated this token from the
	// previous one. Used to glue demoted literal parens onto their clause.
	joinPrev bool
	// phrase marks a quoted term, which survives even when empty.
	phrase bool
}

func tokenize(text string) []token {
	var (
		toks     []token
		cur      strings.Builder
		adjacent bool // no whitespace since the previous token ended
		curJoin  bool // adjacency at the time the current term started
	)

	runes := []rune(text)

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		toks = append(toks, token{kind: tokTerm, text: cur.String(), joinPrev: curJoin})
		cur.Reset()
		adjacent = true
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			flush()
			adjacent = false

		case r == '(':
			flush()
			toks = append(toks, token{kind: tokOpen, joinPrev: adjacent})
			adjacent = true

		case r == ')':
			flush()
			toks = append(toks, token{kind: tokClose, joinPrev: adjacent})
			adjacent = true

		case r == '"':
			// A quote only opens a phrase if a closing quote follows;
			// otherwise it is a literal character of the current term.
			end := -1
			for j := i + 1; j < len(runes); j++ {
				if runes[j] == '"' {
					end = j
					break
				}
			}
			if end == -1 {
				if cur.Len() == 0 {
					curJoin = adjacent
				}
				cur.WriteRune(r)
				continue
			}
			flush()
			toks = append(toks, token{
				kind:     tokTerm,
				text:     string(runes[i+1 : end]),
				joinPrev: adjacent,
				phrase:   true,
			})
			adjacent = true
			i = end

		default:
			if cur.Len() == 0 {
				curJoin = adjacent
			}
			cur.WriteRune(r)
		}
	}
	flush()

	return toks
}

// resolveUnmatched demotes unbalanced parenthesis tokens to literal text,
// attaching each to the adjacent term when the original input had no
// whitespace between them.
func resolveUnmatched(toks []token) []token {
	literal := make(map[int]bool)
	var stack []int
	for i, t := range toks {
		switch t.kind {
		case tokOpen:
			stack = append(stack, i)
		case tokClose:
			if len(stack) == 0 {
				literal[i] = true
			} else {
				stack = stack[:len(stack)-1]
			}
		}
	}
	for _, i := range stack {
		literal[i] = true
	}
	if len(literal) == 0 {
		return toks
	}

	out := make([]token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if !literal[i] {
			out = append(out, t)
			continue
		}

		text := "("
		if t.kind == tokClose {
			text = ")"
		}

		// Prefer the term the paren was typed against: "a)" binds left,
		// "(a" binds right, an isolated paren becomes its own clause.
		if t.joinPrev && len(out) > 0 && out[len(out)-1].kind == tokTerm && !out[len(out)-1].phrase {
			out[len(out)-1].text += text
			continue
		}
		if i+1 < len(toks) && toks[i+1].joinPrev && toks[i+1].kind == tokTerm && !toks[i+1].phrase {
			next := toks[i+1]
			next.text = text + next.text
			next.joinPrev = t.joinPrev
			out = append(out, next)
			i++
			continue
		}
		out = append(out, token{kind: tokTerm, text: text, joinPrev: t.joinPrev})
	}
	return out
}

// buildElements consumes tokens until a closing paren or end of input.
// The token stream is balanced by the time this runs.
func buildElements(toks []token, pos *int) []Element {
	var els []Element
	for *pos < len(toks) {
		t := toks[*pos]
		switch t.kind {
		case tokTerm:
			els = append(els, &Clause{Value: t.text})
			*pos++
		case tokOpen:
			*pos++
			els = append(els, &SubQuery{Elements: buildElements(toks, pos)})
		case tokClose:
			*pos++
			return els
		}
	}
	return els
}
