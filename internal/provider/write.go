package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/keyringdb/internal/keyring"
	"github.com/roach88/keyringdb/internal/metrics"
	"github.com/roach88/keyringdb/internal/queryir"
	"github.com/roach88/keyringdb/internal/route"
	"github.com/roach88/keyringdb/internal/store"
)

// legacyKindColumn is the pre-rename name of the kind discriminator.
// Payloads may still carry it; it is overwritten like kind.
const legacyKindColumn = "type"

// Insert adds one row through a collection address (keyrings/<kind>,
// .../keys, .../userids, consumers) and returns the new row's address.
//
// The kind column is forced to the address's kind and, for keys and user
// ids, key_ring_row_id is forced to the ring in the address; payload values
// for those columns are silently replaced. A uniqueness or foreign key
// violation returns an empty address and a *ConstraintError.
func (p *Provider) Insert(ctx context.Context, address string, values keyring.Values) (string, error) {
	m, err := route.Resolve(address)
	if err != nil {
		return "", err
	}

	addr, err := p.insert(ctx, m, values)
	p.record(m, opInsert, err)
	return addr, err
}

func (p *Provider) insert(ctx context.Context, m route.Match, values keyring.Values) (string, error) {
	switch m.Code {
	case route.List, route.ListKeys, route.ListUserIDs, route.ListConsumers:
	default:
		return "", fmt.Errorf("%w: insert via %s", ErrUnsupported, m.Code)
	}

	pl, err := planFor(m)
	if err != nil {
		return "", err
	}
	if p.store.ReadOnly() {
		return "", store.ErrReadOnly
	}

	payload, err := p.preparePayload(pl, values, false)
	if err != nil {
		return "", err
	}

	var id int64
	err = p.inTx(ctx, func(tx *sql.Tx) error {
		if m.Code.Child() {
			if err := p.checkOwner(ctx, tx, m); err != nil {
				return err
			}
		}

		res, err := p.execStatement(ctx, tx, opInsert, queryir.Insert{Table: pl.table, Values: payload})
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return "", p.writeError(m, pl.table, opInsert, err)
	}

	addr := itemAddress(m, id)
	p.notify(ctx, changed(m, addr)...)
	return addr, nil
}

// Update applies values to the row an item address denotes and returns the
// number of rows changed (0 or 1). The row is narrowed exactly as Delete
// narrows it; a non-nil where is ANDed into that narrowing.
func (p *Provider) Update(ctx context.Context, address string, values keyring.Values, where queryir.Predicate) (int64, error) {
	m, err := route.Resolve(address)
	if err != nil {
		return 0, err
	}

	n, err := p.update(ctx, m, values, where)
	p.record(m, opUpdate, err)
	return n, err
}

func (p *Provider) update(ctx context.Context, m route.Match, values keyring.Values, where queryir.Predicate) (int64, error) {
	pl, err := p.itemPlan(m, opUpdate)
	if err != nil {
		return 0, err
	}
	scope, err := pl.scopeWith(where)
	if err != nil {
		return 0, err
	}

	if len(values) == 0 {
		return 0, invalidPayload("update of %s sets no columns", m.Address)
	}
	for _, fixed := range []string{keyring.ColID, keyring.ColKeyRingRowID} {
		if _, ok := values[fixed]; ok {
			return 0, invalidPayload("column %q cannot be updated through an address", fixed)
		}
	}

	payload, err := p.preparePayload(pl, values, true)
	if err != nil {
		return 0, err
	}

	var n int64
	err = p.inTx(ctx, func(tx *sql.Tx) error {
		res, err := p.execStatement(ctx, tx, opUpdate, queryir.Update{Table: pl.table, Set: payload, Where: scope})
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, p.writeError(m, pl.table, opUpdate, err)
	}

	if n > 0 {
		p.notify(ctx, changed(m, "")...)
	}
	return n, nil
}

// Delete removes the row an item address denotes and returns the number of
// rows removed (0 or 1). Exactly one DELETE runs, inside a transaction;
// deleting a key ring removes its keys and user ids through the schema's
// cascade in the same transaction. A non-nil where is ANDed into the
// address's narrowing.
func (p *Provider) Delete(ctx context.Context, address string, where queryir.Predicate) (int64, error) {
	m, err := route.Resolve(address)
	if err != nil {
		return 0, err
	}

	n, err := p.delete(ctx, m, where)
	p.record(m, opDelete, err)
	return n, err
}

func (p *Provider) delete(ctx context.Context, m route.Match, where queryir.Predicate) (int64, error) {
	pl, err := p.itemPlan(m, opDelete)
	if err != nil {
		return 0, err
	}
	scope, err := pl.scopeWith(where)
	if err != nil {
		return 0, err
	}

	var n int64
	err = p.inTx(ctx, func(tx *sql.Tx) error {
		res, err := p.execStatement(ctx, tx, opDelete, queryir.Delete{Table: pl.table, Where: scope})
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, p.writeError(m, pl.table, opDelete, err)
	}

	if n > 0 {
		p.notify(ctx, changed(m, "")...)
	}
	return n, nil
}

// itemPlan returns the plan of an item route, the only routes update and
// delete accept.
func (p *Provider) itemPlan(m route.Match, op string) (plan, error) {
	if !m.Code.Item() {
		return plan{}, fmt.Errorf("%w: %s via %s", ErrUnsupported, op, m.Code)
	}
	pl, err := planFor(m)
	if err != nil {
		return plan{}, err
	}
	if p.store.ReadOnly() {
		return plan{}, store.ErrReadOnly
	}
	return pl, nil
}

// preparePayload copies values and applies the address-derived columns,
// then checks every column against the catalog.
func (p *Provider) preparePayload(pl plan, values keyring.Values, update bool) (keyring.Values, error) {
	payload := values.Clone()
	if payload == nil {
		payload = keyring.Values{}
	}
	delete(payload, legacyKindColumn)

	table, _ := p.catalog.Table(pl.table)
	if _, hasKind := table.Column(keyring.ColKind); hasKind {
		payload[keyring.ColKind] = pl.match.Kind.Value()
	} else {
		delete(payload, keyring.ColKind)
	}

	if pl.match.Code.Child() && !update {
		payload[keyring.ColKeyRingRowID] = keyring.Int(pl.match.Row())
	}
	if pl.table == keyring.TableUserIDs {
		normalizeUserID(payload)
	}

	if len(payload) == 0 {
		return nil, invalidPayload("no columns to write into %s", pl.table)
	}
	if err := p.catalog.ValidatePayload(pl.table, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return payload, nil
}

// checkOwner rejects child writes whose owning ring has the other kind.
// A missing ring is left to the foreign key.
func (p *Provider) checkOwner(ctx context.Context, tx *sql.Tx, m route.Match) error {
	recs, err := p.selectRecords(ctx, tx, queryir.Select{
		From:    ringsT,
		Columns: []queryir.Projection{{Col: ringCol(keyring.ColKind), As: keyring.ColKind}},
		Where:   eq(ringCol(keyring.ColID), keyring.Int(m.Row())),
	})
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	if kind, _ := recs[0].Int(keyring.ColKind); keyring.Kind(kind) != m.Kind {
		return &ConstraintError{Address: m.Address, Table: keyring.TableKeyRings, Err: errOwnerKind}
	}
	return nil
}

func (p *Provider) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return p.store.WithSession(ctx, func(ss *store.Session) error {
		return ss.InTx(ctx, fn)
	})
}

// writeError turns constraint failures into a logged *ConstraintError and
// wraps everything else.
func (p *Provider) writeError(m route.Match, table, op string, err error) error {
	var ce *ConstraintError
	if !errors.As(err, &ce) && store.IsConstraint(err) {
		ce = &ConstraintError{Address: m.Address, Table: table, Err: err}
	}
	if ce != nil {
		p.log.Warn("write rejected by constraint",
			"op", op,
			"address", m.Address,
			"table", ce.Table,
			"error", ce.Err)
		p.metrics.ConstraintViolation(ce.Table)
		return ce
	}
	return fmt.Errorf("%s %s: %w", op, m.Address, err)
}

// record counts a finished request.
func (p *Provider) record(m route.Match, op string, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case IsConstraintViolation(err):
		outcome = metrics.OutcomeConstraint
	case err != nil:
		outcome = metrics.OutcomeError
	}
	p.metrics.Request(m.Code.String(), op, outcome)
}

// itemAddress is the address of a row inserted through collection m.
func itemAddress(m route.Match, id int64) string {
	switch m.Code {
	case route.List:
		return route.KeyRing(m.Kind, id)
	case route.ListKeys:
		return route.Key(m.Kind, m.Row(), id)
	case route.ListUserIDs:
		return route.UserID(m.Kind, m.Row(), id)
	case route.ListConsumers:
		return route.Consumer(id)
	}
	return ""
}

// changed lists the addresses to notify for a committed write on m:
// the new row (inserts only), the request address, and the owning ring
// for child routes.
func changed(m route.Match, created string) []string {
	var addrs []string
	if created != "" {
		addrs = append(addrs, created)
	}
	addrs = append(addrs, m.Address)
	if parent, ok := m.Parent(); ok {
		addrs = append(addrs, parent)
	}
	return addrs
}
