package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keyringdb/internal/keyring"
)

func validSelect() Select {
	return Select{
		From:    TableRef{Name: "key_rings"},
		Columns: []Projection{{Col: C("key_rings", "id"), As: "id"}},
		Where:   Equals{Col: C("key_rings", "kind"), Value: keyring.Int(0)},
		OrderBy: []Order{{Col: C("key_rings", "id")}},
	}
}

func TestValidate_ValidStatements(t *testing.T) {
	where := Equals{Col: C("", "id"), Value: keyring.Int(1)}

	stmts := map[string]Statement{
		"select":  validSelect(),
		"pointer": &Insert{Table: "keys", Values: keyring.Values{"rank": keyring.Int(0)}},
		"insert":  Insert{Table: "keys", Values: keyring.Values{"rank": keyring.Int(0)}},
		"update":  Update{Table: "keys", Set: keyring.Values{"rank": keyring.Int(1)}, Where: where},
		"delete":  Delete{Table: "keys", Where: where},
		"exists": Select{
			From:    TableRef{Name: "key_rings"},
			Columns: []Projection{{Col: C("key_rings", "id")}},
			Where: Exists{Query: Select{
				From:  TableRef{Name: "user_ids", Alias: "matched"},
				Where: ColumnEquals{Left: C("matched", "key_ring_row_id"), Right: C("key_rings", "id")},
			}},
		},
	}

	for name, stmt := range stmts {
		t.Run(name, func(t *testing.T) {
			result := Validate(stmt)
			assert.True(t, result.Valid, "%v", result.Problems)
			assert.Empty(t, result.Problems)
			assert.NoError(t, result.Err())
		})
	}
}

func TestValidate_RejectsUnsafeIdentifiers(t *testing.T) {
	sel := validSelect()
	sel.Where = Equals{Col: C("key_rings", "id; DROP TABLE keys"), Value: keyring.Int(1)}

	result := Validate(sel)
	assert.False(t, result.Valid)
	require.Len(t, result.Problems, 1)
	assert.Contains(t, result.Problems[0], "invalid column identifier")
	assert.Error(t, result.Err())
}

func TestValidate_RejectsUnsafePayloadColumn(t *testing.T) {
	result := Validate(Insert{Table: "keys", Values: keyring.Values{"rank) VALUES (1": keyring.Int(0)}})
	assert.False(t, result.Valid)
}

func TestValidate_UnscopedMutations(t *testing.T) {
	result := Validate(Delete{Table: "key_rings"})
	assert.False(t, result.Valid)
	assert.Contains(t, result.Problems[0], "no WHERE")

	result = Validate(Update{Table: "key_rings", Set: keyring.Values{"kind": keyring.Int(1)}})
	assert.False(t, result.Valid)
	assert.Contains(t, result.Problems[0], "no WHERE")
}

func TestValidate_EmptyShapes(t *testing.T) {
	tests := []struct {
		name string
		stmt Statement
		want string
	}{
		{"no columns", Select{From: TableRef{Name: "keys"}}, "projects no columns"},
		{"no values", Insert{Table: "keys"}, "has no values"},
		{"no set", Update{Table: "keys", Where: Equals{Col: C("", "id"), Value: keyring.Int(1)}}, "sets no columns"},
		{"nil", nil, "nil statement"},
		{
			"join without on",
			Select{
				From:    TableRef{Name: "a"},
				Joins:   []Join{{Table: TableRef{Name: "b"}}},
				Columns: []Projection{{Col: C("a", "id")}},
			},
			"no ON condition",
		},
		{
			"bad operator",
			Select{
				From:    TableRef{Name: "a"},
				Columns: []Projection{{Col: C("a", "id")}},
				Where:   Compare{Col: C("a", "id"), Op: "LIKE", Value: keyring.Int(1)},
			},
			"unknown operator",
		},
		{
			"negative limit",
			Select{From: TableRef{Name: "a"}, Columns: []Projection{{Col: C("a", "id")}}, Limit: -1},
			"negative limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.stmt)
			assert.False(t, result.Valid)
			require.NotEmpty(t, result.Problems)
			assert.Contains(t, result.Problems[0], tt.want)
		})
	}
}

func TestValidIdentifier(t *testing.T) {
	assert.True(t, ValidIdentifier("key_ring_row_id"))
	assert.True(t, ValidIdentifier("_x1"))
	assert.False(t, ValidIdentifier(""))
	assert.False(t, ValidIdentifier("1abc"))
	assert.False(t, ValidIdentifier("a.b"))
	assert.False(t, ValidIdentifier("a b"))
	assert.False(t, ValidIdentifier(`a"`))
}
