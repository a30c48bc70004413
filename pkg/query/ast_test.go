package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalAST_RoundTrip(t *testing.T) {
	ast := AST{
		&Clause{Value: "orders", Metadata: Metadata{"kind": "table"}},
		&SubQuery{Elements: []Element{
			&Clause{Value: "north region"},
			&SubQuery{},
		}},
		&Clause{Value: ""},
	}

	data, err := MarshalAST(ast)
	require.NoError(t, err)

	decoded, err := UnmarshalAST(data)
	require.NoError(t, err)

	require.Len(t, decoded, 3)
	assert.Equal(t, ast.Values(), decoded.Values())

	// Metadata survives the wire format.
	assert.Equal(t, Metadata{"kind": "table"}, decoded.Clauses()[0].Metadata)

	// An empty-string clause stays a clause, not a group.
	_, ok := decoded[2].(*Clause)
	assert.True(t, ok)
}

func TestMarshalAST_Empty(t *testing.T) {
	data, err := MarshalAST(AST{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	decoded, err := UnmarshalAST(data)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecodeParam(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty param", raw: "", want: []string{}},
		{name: "malformed json", raw: "{not json", want: []string{}},
		{name: "wrong shape", raw: `{"value":"x"}`, want: []string{}},
		{
			name: "valid array",
			raw:  `[{"value":"cat"},{"elements":[{"value":"dog"}]}]`,
			want: []string{"cat", "dog"},
		},
		{
			name: "unknown node shapes are skipped",
			raw:  `[{"value":"cat"},{"bogus":true}]`,
			want: []string{"cat"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeParam(tt.raw)
			require.NotNil(t, got, "DecodeParam never returns a nil AST")
			assert.Equal(t, tt.want, got.Values())
		})
	}
}

func TestClauses_PreOrder(t *testing.T) {
	ast := AST{
		&Clause{Value: "a"},
		&SubQuery{Elements: []Element{
			&Clause{Value: "b"},
			&SubQuery{Elements: []Element{&Clause{Value: "c"}}},
			&Clause{Value: "d"},
		}},
		&Clause{Value: "e"},
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ast.Values())
}

func TestClone_Independence(t *testing.T) {
	ast := AST{&Clause{Value: "a", Metadata: Metadata{"k": 1}}}
	cp := ast.Clone()

	cp.Clauses()[0].Value = "changed"
	cp.Clauses()[0].Metadata = nil

	assert.Equal(t, "a", ast.Clauses()[0].Value)
	assert.Equal(t, Metadata{"k": 1}, ast.Clauses()[0].Metadata)
}
