// Package query implements the search query model: a free-text boolean
// search string on one side, a structured AST on the other, and the
// transforms between them.
//
// The grammar is deliberately small. Terms are separated by whitespace,
// double-quoted phrases form a single clause, and parentheses group
// elements into nested sub-queries:
//
//	orders "north region" (refunds returns)
//
// There are no operator keywords: AND, OR and NOT are ordinary terms, and
// boolean semantics are the backend's business. Parsing never fails; an
// unmatched parenthesis or quote is demoted to a literal character of the
// nearest clause so that any text the user types remains a valid query.
//
// Each clause may carry opaque Metadata attached by a classification step
// that runs outside this package. Serialize drops metadata (it has no text
// form); Merge recovers it after a re-parse by lining the freshly parsed
// clauses up against the previous AST.
package query
