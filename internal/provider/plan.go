package provider

import (
	"fmt"

	"github.com/roach88/keyringdb/internal/catalog"
	"github.com/roach88/keyringdb/internal/keyring"
	"github.com/roach88/keyringdb/internal/queryir"
	"github.com/roach88/keyringdb/internal/route"
)

// plan is the route descriptor for one resolved address: the base read,
// the caller-visible columns, and for item routes the narrowing predicate
// shared by update and delete. Every mutation compiles to exactly one
// statement built from these parts.
type plan struct {
	match route.Match
	table string // table written by insert/update/delete

	// columns lists caller-visible names in projection order; colmap maps
	// each to the real column for filters and sorting.
	columns []string
	colmap  map[string]queryir.Col

	read  queryir.Select
	scope queryir.Predicate // nil unless match.Code.Item()
}

var (
	ringsT     = queryir.TableRef{Name: keyring.TableKeyRings}
	keysT      = queryir.TableRef{Name: keyring.TableKeys}
	userIDsT   = queryir.TableRef{Name: keyring.TableUserIDs}
	consumersT = queryir.TableRef{Name: keyring.TableCryptoConsumers}
)

func ringCol(name string) queryir.Col     { return queryir.C(keyring.TableKeyRings, name) }
func keyCol(name string) queryir.Col      { return queryir.C(keyring.TableKeys, name) }
func userIDCol(name string) queryir.Col   { return queryir.C(keyring.TableUserIDs, name) }
func consumerCol(name string) queryir.Col { return queryir.C(keyring.TableCryptoConsumers, name) }

func eq(c queryir.Col, v keyring.Value) queryir.Predicate {
	return queryir.Equals{Col: c, Value: v}
}

// ringColumns is the stable ring-level projection shared by every
// ring-level route.
var ringColumns = []queryir.Projection{
	{Col: ringCol(keyring.ColID), As: keyring.ColID},
	{Col: ringCol(keyring.ColMasterKeyID), As: keyring.ColMasterKeyID},
	{Col: userIDCol(keyring.ColUserID), As: keyring.ColPrimaryUserID},
}

// ringJoins attach the master key and the primary (rank 0) user id.
var ringJoins = []queryir.Join{
	{
		Table: keysT,
		On: queryir.AllOf(
			queryir.ColumnEquals{Left: ringCol(keyring.ColID), Right: keyCol(keyring.ColKeyRingRowID)},
			eq(keyCol(keyring.ColIsMasterKey), keyring.Int(1)),
		),
	},
	{
		Table: userIDsT,
		On: queryir.AllOf(
			queryir.ColumnEquals{Left: ringCol(keyring.ColID), Right: userIDCol(keyring.ColKeyRingRowID)},
			eq(userIDCol(keyring.ColRank), keyring.Int(0)),
		),
	},
}

// keyIDValue binds a captured key id. Ids that do not parse are bound as
// text, which no INTEGER column equals.
func keyIDValue(raw string) keyring.Value {
	id, err := keyring.ParseKeyID(raw)
	if err != nil {
		return keyring.String(raw)
	}
	return keyring.Int(id)
}

// ownerOfKind requires the owning ring of a user id row to have kind.
func ownerOfKind(kind keyring.Kind) queryir.Predicate {
	owner := queryir.TableRef{Name: keyring.TableKeyRings, Alias: "owner"}
	return queryir.Exists{Query: queryir.Select{
		From: owner,
		Where: queryir.AllOf(
			queryir.ColumnEquals{
				Left:  queryir.C(owner.Alias, keyring.ColID),
				Right: userIDCol(keyring.ColKeyRingRowID),
			},
			eq(queryir.C(owner.Alias, keyring.ColKind), kind.Value()),
		),
	}}
}

// tableProjection projects every catalog column of table under its own name.
func tableProjection(table string) ([]string, map[string]queryir.Col, []queryir.Projection) {
	t, ok := catalog.Default().Table(table)
	if !ok {
		panic(fmt.Sprintf("provider: table %q missing from catalog", table))
	}
	names := t.ColumnNames()
	colmap := make(map[string]queryir.Col, len(names))
	proj := make([]queryir.Projection, len(names))
	for i, name := range names {
		c := queryir.C(table, name)
		colmap[name] = c
		proj[i] = queryir.Projection{Col: c, As: name}
	}
	return names, colmap, proj
}

// planFor builds the descriptor for a resolved address.
func planFor(m route.Match) (plan, error) {
	p := plan{match: m}
	kind := m.Kind.Value()

	switch m.Code {
	case route.List, route.GetByRow, route.GetByMasterKey, route.GetByKeyID, route.GetByEmails:
		p.table = keyring.TableKeyRings
		p.columns = []string{keyring.ColID, keyring.ColMasterKeyID, keyring.ColPrimaryUserID}
		p.colmap = map[string]queryir.Col{}
		for _, c := range ringColumns {
			p.colmap[c.As] = c.Col
		}

		var narrow queryir.Predicate
		switch m.Code {
		case route.GetByRow:
			narrow = eq(ringCol(keyring.ColID), keyring.Int(m.Row()))
			p.scope = queryir.AllOf(narrow, eq(ringCol(keyring.ColKind), kind))
		case route.GetByMasterKey:
			raw, _ := m.Params.Get(route.ParamMasterKeyID)
			narrow = eq(ringCol(keyring.ColMasterKeyID), keyIDValue(raw))
		case route.GetByKeyID:
			raw, _ := m.Params.Get(route.ParamKeyID)
			narrow = keyOwnedBy(keyIDValue(raw))
		case route.GetByEmails:
			raw, _ := m.Params.Get(route.ParamEmails)
			narrow = emailPredicate(splitEmails(raw))
		}

		p.read = queryir.Select{
			From:    ringsT,
			Joins:   ringJoins,
			Columns: ringColumns,
			Where:   queryir.AllOf(eq(ringCol(keyring.ColKind), kind), narrow),
			OrderBy: []queryir.Order{{Col: userIDCol(keyring.ColUserID)}},
		}

	case route.ListKeys, route.GetKey:
		p.table = keyring.TableKeys
		var proj []queryir.Projection
		p.columns, p.colmap, proj = tableProjection(keyring.TableKeys)

		owned := queryir.AllOf(
			eq(keyCol(keyring.ColKeyRingRowID), keyring.Int(m.Row())),
			eq(keyCol(keyring.ColKind), kind),
		)
		if m.Code == route.GetKey {
			p.scope = queryir.AllOf(eq(keyCol(keyring.ColID), keyring.Int(m.Child())), owned)
			owned = p.scope
		}

		p.read = queryir.Select{
			From:    keysT,
			Columns: proj,
			Where:   owned,
			OrderBy: []queryir.Order{{Col: keyCol(keyring.ColRank)}},
		}

	case route.ListUserIDs, route.GetUserID:
		p.table = keyring.TableUserIDs
		var proj []queryir.Projection
		p.columns, p.colmap, proj = tableProjection(keyring.TableUserIDs)

		owned := queryir.AllOf(
			eq(userIDCol(keyring.ColKeyRingRowID), keyring.Int(m.Row())),
			ownerOfKind(m.Kind),
		)
		if m.Code == route.GetUserID {
			p.scope = queryir.AllOf(eq(userIDCol(keyring.ColID), keyring.Int(m.Child())), owned)
			owned = p.scope
		}

		p.read = queryir.Select{
			From:    userIDsT,
			Columns: proj,
			Where:   owned,
			OrderBy: []queryir.Order{{Col: userIDCol(keyring.ColRank)}},
		}

	case route.ListConsumers, route.GetConsumer, route.GetConsumerByPackage:
		p.table = keyring.TableCryptoConsumers
		var proj []queryir.Projection
		p.columns, p.colmap, proj = tableProjection(keyring.TableCryptoConsumers)

		switch m.Code {
		case route.GetConsumer:
			p.scope = eq(consumerCol(keyring.ColID), keyring.Int(m.Row()))
		case route.GetConsumerByPackage:
			pkg, _ := m.Params.Get(route.ParamPackage)
			p.scope = eq(consumerCol(keyring.ColPackageName), keyring.String(pkg))
		}

		p.read = queryir.Select{
			From:    consumersT,
			Columns: proj,
			Where:   p.scope,
			OrderBy: []queryir.Order{{Col: consumerCol(keyring.ColPackageName)}},
		}

	case route.OpenBlob:
		return plan{}, fmt.Errorf("%w: %s is a blob address", ErrUnsupported, m.Address)

	default:
		return plan{}, fmt.Errorf("%w: %s", ErrUnsupported, m.Code)
	}

	return p, nil
}

// keyOwnedBy resolves an arbitrary (sub)key id to its owning ring through
// a second reference to keys.
func keyOwnedBy(keyID keyring.Value) queryir.Predicate {
	sub := queryir.TableRef{Name: keyring.TableKeys, Alias: "sub"}
	return queryir.Exists{Query: queryir.Select{
		From: sub,
		Where: queryir.AllOf(
			queryir.ColumnEquals{
				Left:  queryir.C(sub.Alias, keyring.ColKeyRingRowID),
				Right: ringCol(keyring.ColID),
			},
			eq(queryir.C(sub.Alias, keyring.ColKeyID), keyID),
		),
	}}
}

// mapColumn resolves a caller-visible column for this plan.
func (p plan) mapColumn(c queryir.Col) (queryir.Col, error) {
	if c.Table != "" {
		return queryir.Col{}, invalidPayload("column %s.%s: filters use unqualified names", c.Table, c.Name)
	}
	mapped, ok := p.colmap[c.Name]
	if !ok {
		return queryir.Col{}, invalidPayload("unknown column %q for %s", c.Name, p.match.Code)
	}
	return mapped, nil
}

// scopeWith ANDs a caller filter into the item narrowing used by update
// and delete. The filter may only name columns of the written table.
func (p plan) scopeWith(where queryir.Predicate) (queryir.Predicate, error) {
	if where == nil {
		return p.scope, nil
	}
	mapped, err := queryir.MapColumns(where, func(c queryir.Col) (queryir.Col, error) {
		col, err := p.mapColumn(c)
		if err != nil {
			return queryir.Col{}, err
		}
		if col.Table != p.table {
			return queryir.Col{}, invalidPayload("column %q cannot filter a write to %s", c.Name, p.table)
		}
		return col, nil
	})
	if err != nil {
		return nil, err
	}
	return queryir.AllOf(p.scope, mapped), nil
}

// selectFor applies caller options to the base read.
func (p plan) selectFor(opts QueryOptions) (queryir.Select, []string, error) {
	sel := p.read
	names := p.columns

	if len(opts.Columns) > 0 {
		byName := make(map[string]queryir.Projection, len(sel.Columns))
		for i, name := range p.columns {
			byName[name] = sel.Columns[i]
		}
		proj := make([]queryir.Projection, 0, len(opts.Columns))
		for _, name := range opts.Columns {
			pr, ok := byName[name]
			if !ok {
				return queryir.Select{}, nil, invalidPayload("unknown column %q for %s", name, p.match.Code)
			}
			proj = append(proj, pr)
		}
		sel.Columns = proj
		names = opts.Columns
	}

	if opts.Where != nil {
		where, err := queryir.MapColumns(opts.Where, p.mapColumn)
		if err != nil {
			return queryir.Select{}, nil, err
		}
		sel.Where = queryir.AllOf(sel.Where, where)
	}

	if len(opts.OrderBy) > 0 {
		order, err := queryir.MapOrder(opts.OrderBy, p.mapColumn)
		if err != nil {
			return queryir.Select{}, nil, err
		}
		sel.OrderBy = order
	}

	if opts.Limit < 0 {
		return queryir.Select{}, nil, invalidPayload("negative limit %d", opts.Limit)
	}
	sel.Limit = opts.Limit

	return sel, names, nil
}
