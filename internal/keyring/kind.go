package keyring

import "fmt"

// Kind discriminates the two logical key-ring kinds sharing one table.
// The integer values are persisted in the kind columns of key_rings and keys.
type Kind int64

const (
	KindPublic Kind = 0
	KindSecret Kind = 1
)

// Kinds lists every valid Kind in persisted order.
var Kinds = []Kind{KindPublic, KindSecret}

// String returns the address segment for the kind ("public" or "secret").
func (k Kind) String() string {
	switch k {
	case KindPublic:
		return "public"
	case KindSecret:
		return "secret"
	default:
		return fmt.Sprintf("kind(%d)", int64(k))
	}
}

// Valid reports whether k is one of the two defined kinds.
func (k Kind) Valid() bool {
	return k == KindPublic || k == KindSecret
}

// Value returns the persisted column value for k.
func (k Kind) Value() Int {
	return Int(k)
}

// ParseKind parses an address segment into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "public":
		return KindPublic, nil
	case "secret":
		return KindSecret, nil
	default:
		return 0, fmt.Errorf("unknown key ring kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid key ring kind %d", int64(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
