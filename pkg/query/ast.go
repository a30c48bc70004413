package query

import "encoding/json"

// Element is a node in a search query AST.
type Element interface {
	elementNode()
}

// Metadata is the opaque per-term annotation attached to a clause by the
// term-classification step. The parser and serializer never look inside it.
type Metadata map[string]any

// Clause is a single leaf search term.
type Clause struct {
	Value    string
	Metadata Metadata // nil until a classification step fills it in
}

func (*Clause) elementNode() {}

// SubQuery is a parenthesized group of elements.
type SubQuery struct {
	Elements []Element
}

func (*SubQuery) elementNode() {}

// AST is an ordered sequence of elements. Order is significant: the merge
// algorithm uses positional correspondence between two ASTs.
type AST []Element

// Clauses returns the AST's clauses in pre-order, descending into
// sub-queries. The returned pointers alias the AST.
func (a AST) Clauses() []*Clause {
	var out []*Clause
	var walk func(els []Element)
	walk = func(els []Element) {
		for _, el := range els {
			switch n := el.(type) {
			case *Clause:
				out = append(out, n)
			case *SubQuery:
				walk(n.Elements)
			}
		}
	}
	walk(a)
	return out
}

// Values returns the ordered clause values of the AST.
func (a AST) Values() []string {
	clauses := a.Clauses()
	out := make([]string, len(clauses))
	for i, c := range clauses {
		out[i] = c.Value
	}
	return out
}

// IsWellFormed reports whether every node in the AST is a non-nil Clause or
// SubQuery. An empty AST is well formed.
func (a AST) IsWellFormed() bool {
	var walk func(els []Element) bool
	walk = func(els []Element) bool {
		for _, el := range els {
			switch n := el.(type) {
			case *Clause:
				if n == nil {
					return false
				}
			case *SubQuery:
				if n == nil || !walk(n.Elements) {
					return false
				}
			default:
				return false
			}
		}
		return true
	}
	return walk(a)
}

// Clone returns a deep copy of the AST structure. Metadata maps are shared
// between the original and the copy; they are treated as immutable
// annotations, not owned state.
func (a AST) Clone() AST {
	var cloneEls func(els []Element) []Element
	cloneEls = func(els []Element) []Element {
		if els == nil {
			return nil
		}
		out := make([]Element, 0, len(els))
		for _, el := range els {
			switch n := el.(type) {
			case *Clause:
				out = append(out, &Clause{Value: n.Value, Metadata: n.Metadata})
			case *SubQuery:
				out = append(out, &SubQuery{Elements: cloneEls(n.Elements)})
			}
		}
		return out
	}
	return AST(cloneEls(a))
}

// jsonElement is the wire form of an Element. A clause carries "value"
// (plus optional "metadata"); a sub-query carries "elements". The Value
// pointer distinguishes the two: an empty-string clause is still a clause.
type jsonElement struct {
	Value    *string       `json:"value,omitempty"`
	Metadata Metadata      `json:"metadata,omitempty"`
	Elements []jsonElement `json:"elements,omitempty"`
}

func toJSONElements(els []Element) []jsonElement {
	out := make([]jsonElement, 0, len(els))
	for _, el := range els {
		switch n := el.(type) {
		case *Clause:
			v := n.Value
			out = append(out, jsonElement{Value: &v, Metadata: n.Metadata})
		case *SubQuery:
			sub := toJSONElements(n.Elements)
			if sub == nil {
				sub = []jsonElement{}
			}
			out = append(out, jsonElement{Elements: sub})
		}
	}
	return out
}

func fromJSONElements(els []jsonElement) []Element {
	out := make([]Element, 0, len(els))
	for _, el := range els {
		switch {
		case el.Value != nil:
			out = append(out, &Clause{Value: *el.Value, Metadata: el.Metadata})
		case el.Elements != nil:
			out = append(out, &SubQuery{Elements: fromJSONElements(el.Elements)})
		default:
			// Neither value nor elements: not a representable node, skip.
		}
	}
	return out
}

// MarshalAST encodes the AST as a JSON array of element objects. This is
// the encoding used for the shareable URL parameter and the history store.
func MarshalAST(a AST) ([]byte, error) {
	return json.Marshal(toJSONElements(a))
}

// UnmarshalAST decodes a JSON array of element objects.
func UnmarshalAST(data []byte) (AST, error) {
	var els []jsonElement
	if err := json.Unmarshal(data, &els); err != nil {
		return nil, err
	}
	return AST(fromJSONElements(els)), nil
}

// DecodeParam decodes the AST from a URL parameter value. Malformed input
// yields an empty AST, never an error: a broken bookmark must degrade to an
// empty search, not break the page.
func DecodeParam(raw string) AST {
	if raw == "" {
		return AST{}
	}
	ast, err := UnmarshalAST([]byte(raw))
	if err != nil {
		return AST{}
	}
	return ast
}
