package keyring

import (
	"fmt"
	"strconv"
	"strings"
)

// Physical table names.
const (
	TableKeyRings        = "key_rings"
	TableKeys            = "keys"
	TableUserIDs         = "user_ids"
	TableCryptoConsumers = "crypto_consumers"
)

// Column names. ColID is the row id of every table.
const (
	ColID = "id"

	// key_rings
	ColMasterKeyID = "master_key_id"
	ColKind        = "kind"
	ColKeyRingData = "key_ring_data"

	// keys
	ColKeyID        = "key_id"
	ColIsMasterKey  = "is_master_key"
	ColAlgorithm    = "algorithm"
	ColKeySize      = "key_size"
	ColCanCertify   = "can_certify"
	ColCanSign      = "can_sign"
	ColCanEncrypt   = "can_encrypt"
	ColIsRevoked    = "is_revoked"
	ColCreatedAt    = "created_at"
	ColExpiresAt    = "expires_at"
	ColKeyData      = "key_data"
	ColRank         = "rank"
	ColKeyRingRowID = "key_ring_row_id"

	// user_ids
	ColUserID = "user_id"

	// crypto_consumers
	ColPackageName = "package_name"

	// ColPrimaryUserID is the projected alias of the rank-0 user id in
	// ring-level listings.
	ColPrimaryUserID = "primary_user_id"
)

// KeyID is a 64-bit OpenPGP key id. It is persisted as a signed INTEGER;
// ids above MaxInt64 wrap to their two's-complement value.
type KeyID int64

// ParseKeyID accepts a signed decimal, an unsigned decimal up to
// MaxUint64, or a 0x-prefixed hexadecimal id of at most 16 digits.
func ParseKeyID(s string) (KeyID, error) {
	if hex, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		u, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			return 0, fmt.Errorf("parse key id %q: %w", s, err)
		}
		return KeyID(int64(u)), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return KeyID(n), nil
	}
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse key id %q: %w", s, err)
	}
	return KeyID(int64(u)), nil
}

// String renders the id as 16 upper-case hex digits.
func (id KeyID) String() string {
	return fmt.Sprintf("0x%016X", uint64(id))
}

// UnmarshalText implements encoding.TextUnmarshaler so fixtures may use
// either numeric or hex ids.
func (id *KeyID) UnmarshalText(text []byte) error {
	parsed, err := ParseKeyID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (id KeyID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// KeyRing is a collection of keys plus identities, imported as one unit.
type KeyRing struct {
	ID          int64    `yaml:"-" json:"id,omitempty"`
	Kind        Kind     `yaml:"kind" json:"kind"`
	MasterKeyID *KeyID   `yaml:"master_key_id,omitempty" json:"master_key_id,omitempty"`
	Data        []byte   `yaml:"data,omitempty" json:"data,omitempty"`
	Keys        []Key    `yaml:"keys" json:"keys"`
	UserIDs     []UserID `yaml:"user_ids" json:"user_ids"`
}

// Values encodes the ring row. Kind is included but is always overwritten
// by the route the payload is written through.
func (r KeyRing) Values() Values {
	v := Values{
		ColKind:        r.Kind.Value(),
		ColKeyRingData: Null{},
		ColMasterKeyID: Null{},
	}
	if r.Data != nil {
		v[ColKeyRingData] = Bytes(r.Data)
	}
	if r.MasterKeyID != nil {
		v[ColMasterKeyID] = Int(*r.MasterKeyID)
	}
	return v
}

// MasterKey returns the single key flagged as master, or false when the
// ring has none or more than one.
func (r KeyRing) MasterKey() (Key, bool) {
	var found Key
	n := 0
	for _, k := range r.Keys {
		if k.IsMasterKey {
			found = k
			n++
		}
	}
	return found, n == 1
}

// PrimaryUserID returns the rank-0 identity, or false when the ring has
// none or more than one.
func (r KeyRing) PrimaryUserID() (UserID, bool) {
	var found UserID
	n := 0
	for _, u := range r.UserIDs {
		if u.Rank == 0 {
			found = u
			n++
		}
	}
	return found, n == 1
}

// Key is a master key or subkey belonging to a ring.
type Key struct {
	ID           int64  `yaml:"-" json:"id,omitempty"`
	KeyID        KeyID  `yaml:"key_id" json:"key_id"`
	IsMasterKey  bool   `yaml:"is_master_key" json:"is_master_key"`
	Algorithm    int64  `yaml:"algorithm" json:"algorithm"`
	KeySize      int64  `yaml:"key_size" json:"key_size"`
	CanCertify   bool   `yaml:"can_certify" json:"can_certify"`
	CanSign      bool   `yaml:"can_sign" json:"can_sign"`
	CanEncrypt   bool   `yaml:"can_encrypt" json:"can_encrypt"`
	IsRevoked    bool   `yaml:"is_revoked" json:"is_revoked"`
	CreatedAt    int64  `yaml:"created_at" json:"created_at"`
	ExpiresAt    *int64 `yaml:"expires_at,omitempty" json:"expires_at,omitempty"`
	Data         []byte `yaml:"data,omitempty" json:"data,omitempty"`
	Rank         int64  `yaml:"rank" json:"rank"`
	KeyRingRowID int64  `yaml:"-" json:"key_ring_row_id,omitempty"`
}

// Values encodes the key row without id, kind or owning ring, which the
// address determines.
func (k Key) Values() Values {
	v := Values{
		ColKeyID:       Int(k.KeyID),
		ColIsMasterKey: Bool(k.IsMasterKey),
		ColAlgorithm:   Int(k.Algorithm),
		ColKeySize:     Int(k.KeySize),
		ColCanCertify:  Bool(k.CanCertify),
		ColCanSign:     Bool(k.CanSign),
		ColCanEncrypt:  Bool(k.CanEncrypt),
		ColIsRevoked:   Bool(k.IsRevoked),
		ColCreatedAt:   Int(k.CreatedAt),
		ColExpiresAt:   Null{},
		ColKeyData:     Null{},
		ColRank:        Int(k.Rank),
	}
	if k.ExpiresAt != nil {
		v[ColExpiresAt] = Int(*k.ExpiresAt)
	}
	if k.Data != nil {
		v[ColKeyData] = Bytes(k.Data)
	}
	return v
}

// UserID binds an identity string to a ring. The text carries the email
// as a trailing "<email>" token.
type UserID struct {
	ID           int64  `yaml:"-" json:"id,omitempty"`
	Text         string `yaml:"user_id" json:"user_id"`
	Rank         int64  `yaml:"rank" json:"rank"`
	KeyRingRowID int64  `yaml:"-" json:"key_ring_row_id,omitempty"`
}

// Values encodes the user id row without id or owning ring.
func (u UserID) Values() Values {
	return Values{
		ColUserID: String(u.Text),
		ColRank:   Int(u.Rank),
	}
}

// CryptoConsumer is an access-control allowlist entry.
type CryptoConsumer struct {
	ID          int64  `yaml:"-" json:"id,omitempty"`
	PackageName string `yaml:"package_name" json:"package_name"`
}

// Values encodes the consumer row.
func (c CryptoConsumer) Values() Values {
	return Values{ColPackageName: String(c.PackageName)}
}
