package route

import (
	"strconv"
	"strings"

	"github.com/roach88/keyringdb/internal/keyring"
)

// Address builders produce canonical addresses without a leading slash.
// Segments are not escaped; free text containing '/' yields an address
// that does not resolve.

// KeyRings is the listing of every ring of kind.
func KeyRings(kind keyring.Kind) string {
	return "keyrings/" + kind.String()
}

// KeyRing addresses one ring by row id.
func KeyRing(kind keyring.Kind, row int64) string {
	return KeyRings(kind) + "/" + strconv.FormatInt(row, 10)
}

// ByMasterKey selects rings by master_key_id.
func ByMasterKey(kind keyring.Kind, id keyring.KeyID) string {
	return KeyRings(kind) + "/by-master-key/" + strconv.FormatInt(int64(id), 10)
}

// ByKeyID selects the ring owning a master key or subkey id.
func ByKeyID(kind keyring.Kind, id keyring.KeyID) string {
	return KeyRings(kind) + "/by-key/" + strconv.FormatInt(int64(id), 10)
}

// ByEmails selects rings with a user id ending in any of the emails.
func ByEmails(kind keyring.Kind, emails ...string) string {
	return KeyRings(kind) + "/by-emails/" + strings.Join(emails, ",")
}

// Keys lists a ring's keys.
func Keys(kind keyring.Kind, row int64) string {
	return KeyRing(kind, row) + "/keys"
}

// Key addresses one key row of a ring.
func Key(kind keyring.Kind, row, key int64) string {
	return Keys(kind, row) + "/" + strconv.FormatInt(key, 10)
}

// UserIDs lists a ring's user ids.
func UserIDs(kind keyring.Kind, row int64) string {
	return KeyRing(kind, row) + "/userids"
}

// UserID addresses one user id row of a ring.
func UserID(kind keyring.Kind, row, uid int64) string {
	return UserIDs(kind, row) + "/" + strconv.FormatInt(uid, 10)
}

// Blob addresses a file under the blob root.
func Blob(name string) string {
	return "data/" + name
}

// Consumers lists the crypto consumer allowlist.
func Consumers() string {
	return "consumers"
}

// Consumer addresses one allowlist entry by row id.
func Consumer(row int64) string {
	return "consumers/" + strconv.FormatInt(row, 10)
}

// ConsumerByPackage addresses one allowlist entry by package name.
func ConsumerByPackage(pkg string) string {
	return "consumers/by-package/" + pkg
}

// Parent returns the owning ring's address for child routes.
func (m Match) Parent() (string, bool) {
	if !m.Code.Child() {
		return "", false
	}
	return KeyRing(m.Kind, m.Row()), true
}
