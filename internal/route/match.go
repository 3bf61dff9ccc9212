// Package route classifies resource addresses into route codes.
//
// The route table is a trie built once at package initialisation and never
// mutated afterwards, so Resolve is safe for concurrent use. At each level a
// segment is tried against, in order: a literal child, the kind enum, an
// all-digit row id, and a wildcard. Resolution backtracks, so the most
// specific pattern that matches the whole address wins.
package route

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/keyringdb/internal/keyring"
)

// ErrRouteNotFound is returned when an address matches no pattern.
var ErrRouteNotFound = errors.New("route not found")

// Parameter names captured by the route table.
const (
	ParamKind        = "kind"
	ParamRow         = "row"
	ParamChild       = "child"
	ParamMasterKeyID = "master_key_id"
	ParamKeyID       = "key_id"
	ParamEmails      = "emails"
	ParamName        = "name"
	ParamPackage     = "package"
)

// Param is one captured segment.
type Param struct {
	Name  string
	Value string
}

// Params are the captured segments in address order.
type Params []Param

// Get returns the value captured under name.
func (ps Params) Get(name string) (string, bool) {
	for _, p := range ps {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Int returns a captured row id. Row segments only match when they parse,
// so a missing or malformed value indicates a programming error.
func (ps Params) Int(name string) (int64, error) {
	s, ok := ps.Get(name)
	if !ok {
		return 0, fmt.Errorf("route has no %q parameter", name)
	}
	return strconv.ParseInt(s, 10, 64)
}

// Match is the result of classifying an address.
type Match struct {
	Address string // without the leading slash
	Code    Code
	Kind    keyring.Kind // meaningful only when Code.Kinded()
	Params  Params
}

// Row returns the ring or consumer row id.
func (m Match) Row() int64 {
	v, _ := m.Params.Int(ParamRow)
	return v
}

// Child returns the key or user id row id of a child item route.
func (m Match) Child() int64 {
	v, _ := m.Params.Int(ParamChild)
	return v
}

type node struct {
	literals map[string]*node
	kind     *node
	number   *node
	wildcard *node
	param    string // name captured by the edge leading here
	code     Code   // Unknown if no pattern ends here
}

// patterns is the address grammar. {kind} is public|secret, #name is an
// all-digit row id and *name is any non-empty segment.
var patterns = []struct {
	pattern string
	code    Code
}{
	{"keyrings/{kind}", List},
	{"keyrings/{kind}/#row", GetByRow},
	{"keyrings/{kind}/by-master-key/*master_key_id", GetByMasterKey},
	{"keyrings/{kind}/by-key/*key_id", GetByKeyID},
	{"keyrings/{kind}/by-emails/*emails", GetByEmails},
	{"keyrings/{kind}/#row/keys", ListKeys},
	{"keyrings/{kind}/#row/keys/#child", GetKey},
	{"keyrings/{kind}/#row/userids", ListUserIDs},
	{"keyrings/{kind}/#row/userids/#child", GetUserID},
	{"data/*name", OpenBlob},
	{"consumers", ListConsumers},
	{"consumers/#row", GetConsumer},
	{"consumers/by-package/*package", GetConsumerByPackage},
}

var root = build()

func build() *node {
	r := &node{}
	for _, p := range patterns {
		n := r
		for _, seg := range strings.Split(p.pattern, "/") {
			n = n.child(seg)
		}
		if n.code != Unknown {
			panic(fmt.Sprintf("route: duplicate pattern %q", p.pattern))
		}
		n.code = p.code
	}
	return r
}

func (n *node) child(seg string) *node {
	next := func(slot **node, param string) *node {
		if *slot == nil {
			*slot = &node{param: param}
		}
		return *slot
	}

	switch {
	case seg == "{kind}":
		return next(&n.kind, ParamKind)
	case strings.HasPrefix(seg, "#"):
		return next(&n.number, seg[1:])
	case strings.HasPrefix(seg, "*"):
		return next(&n.wildcard, seg[1:])
	default:
		if n.literals == nil {
			n.literals = make(map[string]*node)
		}
		if n.literals[seg] == nil {
			n.literals[seg] = &node{}
		}
		return n.literals[seg]
	}
}

// Resolve classifies address. One leading slash is ignored; any empty
// segment fails the match. Captured values are the literal segments.
func Resolve(address string) (Match, error) {
	path := strings.TrimPrefix(address, "/")
	if path == "" {
		return Match{}, fmt.Errorf("%w: %q", ErrRouteNotFound, address)
	}

	segs := strings.Split(path, "/")
	for _, s := range segs {
		if s == "" {
			return Match{}, fmt.Errorf("%w: %q", ErrRouteNotFound, address)
		}
	}

	m := Match{Address: path}
	if !root.match(segs, &m) {
		return Match{}, fmt.Errorf("%w: %q", ErrRouteNotFound, address)
	}
	return m, nil
}

// MustResolve is Resolve for addresses built by this package's builders.
func MustResolve(address string) Match {
	m, err := Resolve(address)
	if err != nil {
		panic(err)
	}
	return m
}

func (n *node) match(segs []string, m *Match) bool {
	if len(segs) == 0 {
		if n.code == Unknown {
			return false
		}
		m.Code = n.code
		return true
	}

	seg, rest := segs[0], segs[1:]

	if next, ok := n.literals[seg]; ok && next.match(rest, m) {
		return true
	}

	if n.kind != nil {
		if k, err := keyring.ParseKind(seg); err == nil {
			if n.kind.capture(seg, rest, m) {
				m.Kind = k
				return true
			}
		}
	}

	if n.number != nil && isRowID(seg) && n.number.capture(seg, rest, m) {
		return true
	}

	if n.wildcard != nil && n.wildcard.capture(seg, rest, m) {
		return true
	}

	return false
}

// capture records seg under n's parameter name and continues matching,
// undoing the capture if the rest of the address does not match.
func (n *node) capture(seg string, rest []string, m *Match) bool {
	mark := len(m.Params)
	m.Params = append(m.Params, Param{Name: n.param, Value: seg})
	if n.match(rest, m) {
		return true
	}
	m.Params = m.Params[:mark]
	return false
}

// isRowID accepts all-digit segments that fit an int64.
func isRowID(seg string) bool {
	for i := 0; i < len(seg); i++ {
		if seg[i] < '0' || seg[i] > '9' {
			return false
		}
	}
	_, err := strconv.ParseInt(seg, 10, 64)
	return err == nil
}
