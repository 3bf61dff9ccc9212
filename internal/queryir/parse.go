package queryir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/keyringdb/internal/keyring"
)

// conditionOps is checked longest first so "<=" is not read as "<".
var conditionOps = []Op{OpLe, OpGe, OpNe, OpEq, OpLt, OpGt}

// ParseCondition parses a "column<op>value" filter as typed on a command
// line or in a query string, e.g. "rank>=1" or "user_id=Alice <a@x.org>".
// The column is unqualified. The value is parsed with ParseValue.
func ParseCondition(s string) (Predicate, error) {
	best, at := Op(""), -1
	for _, op := range conditionOps {
		i := strings.Index(s, string(op))
		if i < 0 {
			continue
		}
		if at < 0 || i < at || (i == at && len(op) > len(best)) {
			best, at = op, i
		}
	}
	if at < 0 {
		return nil, fmt.Errorf("condition %q: expected column<op>value", s)
	}

	name := strings.TrimSpace(s[:at])
	if !ValidIdentifier(name) {
		return nil, fmt.Errorf("condition %q: invalid column name %q", s, name)
	}
	value := ParseValue(s[at+len(best):])

	if best == OpEq {
		return Equals{Col: Col{Name: name}, Value: value}, nil
	}
	return Compare{Col: Col{Name: name}, Op: best, Value: value}, nil
}

// ParseValue types a literal: "null" is Null, "true"/"false" are Bool,
// anything strconv.ParseInt accepts is Int, everything else is String.
func ParseValue(s string) keyring.Value {
	switch s {
	case "null":
		return keyring.Null{}
	case "true":
		return keyring.Bool(true)
	case "false":
		return keyring.Bool(false)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return keyring.Int(n)
	}
	return keyring.String(s)
}

// ParseOrder parses "column" or "column:asc" / "column:desc".
func ParseOrder(s string) (Order, error) {
	name, dir, _ := strings.Cut(s, ":")
	if !ValidIdentifier(name) {
		return Order{}, fmt.Errorf("sort %q: invalid column name %q", s, name)
	}
	switch strings.ToLower(dir) {
	case "", "asc":
		return Order{Col: Col{Name: name}}, nil
	case "desc":
		return Order{Col: Col{Name: name}, Desc: true}, nil
	default:
		return Order{}, fmt.Errorf("sort %q: direction must be asc or desc", s)
	}
}
