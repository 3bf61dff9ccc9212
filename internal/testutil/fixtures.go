package testutil

import (
	"fmt"

	"github.com/roach88/keyringdb/internal/keyring"
)

// fixtureCreatedAt is the creation time stamped on fixture keys.
const fixtureCreatedAt = 1700000000

// Ring returns a key ring with one master key and one user id per entry
// in userIDs, ranked in order. The first user id is the primary.
func Ring(kind keyring.Kind, masterKeyID keyring.KeyID, userIDs ...string) keyring.KeyRing {
	ring := keyring.KeyRing{
		Kind: kind,
		Keys: []keyring.Key{MasterKey(masterKeyID)},
	}
	for i, text := range userIDs {
		ring.UserIDs = append(ring.UserIDs, keyring.UserID{Text: text, Rank: int64(i)})
	}
	return ring
}

// MasterKey returns a certify+sign master key with the given id.
func MasterKey(id keyring.KeyID) keyring.Key {
	return keyring.Key{
		KeyID:       id,
		IsMasterKey: true,
		Algorithm:   1,
		KeySize:     3072,
		CanCertify:  true,
		CanSign:     true,
		CreatedAt:   fixtureCreatedAt,
	}
}

// Subkey returns an encryption subkey with the given id and rank.
func Subkey(id keyring.KeyID, rank int64) keyring.Key {
	return keyring.Key{
		KeyID:      id,
		Algorithm:  1,
		KeySize:    3072,
		CanEncrypt: true,
		CreatedAt:  fixtureCreatedAt,
		Rank:       rank,
	}
}

// Identity formats a user id in the "Name <email>" form.
func Identity(name, email string) string {
	return fmt.Sprintf("%s <%s>", name, email)
}
