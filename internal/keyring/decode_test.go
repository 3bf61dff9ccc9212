package keyring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ringsYAML = `
key_rings:
  - kind: public
    keys:
      - key_id: 0x10
        is_master_key: true
        algorithm: 1
        key_size: 2048
        can_sign: true
        created_at: 1700000000
      - key_id: 17
        algorithm: 1
        key_size: 2048
        can_encrypt: true
        created_at: 1700000000
        expires_at: 1800000000
        rank: 1
    user_ids:
      - user_id: "Alice <alice@example.com>"
---
key_rings:
  - kind: secret
    master_key_id: 32
    keys:
      - key_id: 32
        is_master_key: true
    user_ids:
      - user_id: "Bob <bob@example.com>"
`

func TestDecodeRings(t *testing.T) {
	rings, err := DecodeRings(strings.NewReader(ringsYAML))
	require.NoError(t, err)
	require.Len(t, rings, 2)

	alice := rings[0]
	assert.Equal(t, KindPublic, alice.Kind)
	assert.Nil(t, alice.MasterKeyID)
	require.Len(t, alice.Keys, 2)
	master, ok := alice.MasterKey()
	require.True(t, ok)
	assert.Equal(t, KeyID(16), master.KeyID)
	require.NotNil(t, alice.Keys[1].ExpiresAt)
	assert.Equal(t, int64(1800000000), *alice.Keys[1].ExpiresAt)
	uid, ok := alice.PrimaryUserID()
	require.True(t, ok)
	assert.Equal(t, "Alice <alice@example.com>", uid.Text)

	bob := rings[1]
	assert.Equal(t, KindSecret, bob.Kind)
	require.NotNil(t, bob.MasterKeyID)
	assert.Equal(t, KeyID(32), *bob.MasterKeyID)
}

func TestDecodeRings_Empty(t *testing.T) {
	rings, err := DecodeRings(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rings)
}

func TestDecodeRings_Errors(t *testing.T) {
	_, err := DecodeRings(strings.NewReader("key_rings:\n  - kind: private\n"))
	assert.ErrorContains(t, err, "document 1")

	_, err = DecodeRings(strings.NewReader("key_rings:\n  - kind: public\n    colour: red\n"))
	assert.Error(t, err)
}
