package keyring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDriver(t *testing.T) {
	testCases := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"int64", int64(5), Int(5)},
		{"string", "x", String("x")},
		{"bytes", []byte{1, 2}, Bytes{1, 2}},
		{"bool", true, Bool(true)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromDriver(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := FromDriver(1.5)
	assert.Error(t, err)
}

func TestFromDriver_CopiesBytes(t *testing.T) {
	src := []byte{1, 2, 3}
	v, err := FromDriver(src)
	require.NoError(t, err)
	src[0] = 9
	assert.Equal(t, Bytes{1, 2, 3}, v)
}

func TestToDriver(t *testing.T) {
	p, err := ToDriver(Bool(true))
	require.NoError(t, err)
	assert.Equal(t, int64(1), p)

	p, err = ToDriver(Null{})
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = ToDriver(Bytes("ab"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), p)
}

func TestRecord_MarshalJSON_SortedKeys(t *testing.T) {
	r := Record{
		"z":    Int(1),
		"a":    String("x"),
		"blob": Bytes{0xff},
		"n":    Null{},
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","blob":{"base64":"/w=="},"n":null,"z":1}`, string(data))
}

func TestValues_UnmarshalJSON(t *testing.T) {
	var v Values
	err := json.Unmarshal([]byte(`{"rank":0,"user_id":"A <a@x.com>","key_data":{"base64":"AQI="},"expires_at":null,"can_sign":true}`), &v)
	require.NoError(t, err)

	assert.Equal(t, Int(0), v["rank"])
	assert.Equal(t, String("A <a@x.com>"), v["user_id"])
	assert.Equal(t, Bytes{1, 2}, v["key_data"])
	assert.Equal(t, Null{}, v["expires_at"])
	assert.Equal(t, Bool(true), v["can_sign"])
}

func TestValues_UnmarshalJSON_RejectsFractions(t *testing.T) {
	var v Values
	err := json.Unmarshal([]byte(`{"rank":1.5}`), &v)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"rank":{"other":1}}`), &v)
	assert.Error(t, err)
}

func TestValues_SortedKeysAndClone(t *testing.T) {
	v := Values{"b": Int(1), "a": Int(2)}
	assert.Equal(t, []string{"a", "b"}, v.SortedKeys())

	c := v.Clone()
	c["a"] = Int(3)
	assert.Equal(t, Int(2), v["a"])
}
