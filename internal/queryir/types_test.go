package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/keyringdb/internal/keyring"
)

// Compile-time checks that the sealed interfaces are implemented.
var (
	_ Statement = Select{}
	_ Statement = Insert{}
	_ Statement = Update{}
	_ Statement = Delete{}

	_ Predicate = Equals{}
	_ Predicate = Compare{}
	_ Predicate = ColumnEquals{}
	_ Predicate = EndsWith{}
	_ Predicate = And{}
	_ Predicate = Or{}
	_ Predicate = Exists{}
)

func TestTableRef_Ref(t *testing.T) {
	assert.Equal(t, "keys", TableRef{Name: "keys"}.Ref())
	assert.Equal(t, "sub", TableRef{Name: "keys", Alias: "sub"}.Ref())
}

func TestOp_Valid(t *testing.T) {
	for _, op := range []Op{OpEq, OpNe, OpLt, OpLe, OpGt, OpGe} {
		assert.True(t, op.Valid(), op)
	}
	assert.False(t, Op("LIKE").Valid())
	assert.False(t, Op("").Valid())
}

func TestAllOf(t *testing.T) {
	a := Equals{Col: C("t", "a"), Value: keyring.Int(1)}
	b := Equals{Col: C("t", "b"), Value: keyring.Int(2)}

	assert.Nil(t, AllOf())
	assert.Nil(t, AllOf(nil, nil))
	assert.Equal(t, a, AllOf(nil, a))
	assert.Equal(t, And{Predicates: []Predicate{a, b}}, AllOf(a, nil, b))
}
