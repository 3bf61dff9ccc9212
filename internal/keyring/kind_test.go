package keyring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind("public")
	require.NoError(t, err)
	assert.Equal(t, KindPublic, k)

	k, err = ParseKind("secret")
	require.NoError(t, err)
	assert.Equal(t, KindSecret, k)

	_, err = ParseKind("Public")
	assert.Error(t, err, "kind segments are case-sensitive")

	_, err = ParseKind("")
	assert.Error(t, err)
}

func TestKind_StringRoundTrip(t *testing.T) {
	for _, k := range Kinds {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
}

func TestKind_PersistedValues(t *testing.T) {
	assert.Equal(t, Int(0), KindPublic.Value())
	assert.Equal(t, Int(1), KindSecret.Value())
	assert.False(t, Kind(7).Valid())
}

func TestKind_YAML(t *testing.T) {
	var ring KeyRing
	err := yaml.Unmarshal([]byte("kind: secret\nmaster_key_id: 0x00000000000000FF\n"), &ring)
	require.NoError(t, err)
	assert.Equal(t, KindSecret, ring.Kind)
	require.NotNil(t, ring.MasterKeyID)
	assert.Equal(t, KeyID(255), *ring.MasterKeyID)
}

func TestKind_MarshalInvalid(t *testing.T) {
	_, err := Kind(9).MarshalText()
	assert.Error(t, err)
}
