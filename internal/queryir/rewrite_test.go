package queryir

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keyringdb/internal/keyring"
)

func aliasMapper(aliases map[string]Col) ColumnMapper {
	return func(c Col) (Col, error) {
		if real, ok := aliases[c.Name]; ok {
			return real, nil
		}
		return Col{}, fmt.Errorf("unknown column %q", c.Name)
	}
}

func TestMapColumns(t *testing.T) {
	m := aliasMapper(map[string]Col{
		"primary_user_id": C("user_ids", "user_id"),
		"id":              C("key_rings", "id"),
	})

	in := And{Predicates: []Predicate{
		EndsWith{Col: Col{Name: "primary_user_id"}, Suffix: "<a@x.com>"},
		Or{Predicates: []Predicate{
			Equals{Col: Col{Name: "id"}, Value: keyring.Int(1)},
			Compare{Col: Col{Name: "id"}, Op: OpGt, Value: keyring.Int(10)},
		}},
	}}

	out, err := MapColumns(in, m)
	require.NoError(t, err)
	assert.Equal(t, And{Predicates: []Predicate{
		EndsWith{Col: C("user_ids", "user_id"), Suffix: "<a@x.com>"},
		Or{Predicates: []Predicate{
			Equals{Col: C("key_rings", "id"), Value: keyring.Int(1)},
			Compare{Col: C("key_rings", "id"), Op: OpGt, Value: keyring.Int(10)},
		}},
	}}, out)

	// The input is not modified.
	assert.Equal(t, "primary_user_id", in.Predicates[0].(EndsWith).Col.Name)
}

func TestMapColumns_Errors(t *testing.T) {
	m := aliasMapper(map[string]Col{"id": C("key_rings", "id")})

	_, err := MapColumns(Equals{Col: Col{Name: "key_ring_data"}, Value: keyring.Null{}}, m)
	assert.ErrorContains(t, err, "unknown column")

	_, err = MapColumns(Exists{}, m)
	assert.ErrorContains(t, err, "cannot be rewritten")

	out, err := MapColumns(nil, m)
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestMapOrder(t *testing.T) {
	m := aliasMapper(map[string]Col{"rank": C("keys", "rank")})

	out, err := MapOrder([]Order{{Col: Col{Name: "rank"}, Desc: true}}, m)
	require.NoError(t, err)
	assert.Equal(t, []Order{{Col: C("keys", "rank"), Desc: true}}, out)

	_, err = MapOrder([]Order{{Col: Col{Name: "nope"}}}, m)
	assert.Error(t, err)
}

func TestColumns(t *testing.T) {
	p := And{Predicates: []Predicate{
		Equals{Col: C("", "a")},
		Or{Predicates: []Predicate{ColumnEquals{Left: C("", "b"), Right: C("", "c")}}},
	}}
	assert.Equal(t, []Col{C("", "a"), C("", "b"), C("", "c")}, Columns(p))
}
