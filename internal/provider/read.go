package provider

import (
	"context"

	"github.com/roach88/keyringdb/internal/keyring"
	"github.com/roach88/keyringdb/internal/metrics"
	"github.com/roach88/keyringdb/internal/queryir"
	"github.com/roach88/keyringdb/internal/route"
	"github.com/roach88/keyringdb/internal/store"
)

// QueryOptions narrows and orders a read. Column names are the ones the
// route projects (for ring-level routes: id, master_key_id,
// primary_user_id; otherwise the table's columns).
type QueryOptions struct {
	// Columns restricts the projection; empty means every column.
	Columns []string

	// Where is ANDed with the route's own predicate. Columns must be
	// unqualified.
	Where queryir.Predicate

	// OrderBy replaces the route's default order. The row id is always
	// appended as a final tiebreak.
	OrderBy []queryir.Order

	// Limit caps the number of rows; 0 means no cap.
	Limit int
}

// Result is the outcome of a read.
type Result struct {
	Match   route.Match
	Columns []string
	Records []keyring.Record
}

// Query reads the rows an address denotes. A ring-level route returns
// one row per matching ring projected as {id, master_key_id,
// primary_user_id}, ordered by primary user id unless opts says otherwise.
// An empty result is not an error.
func (p *Provider) Query(ctx context.Context, address string, opts QueryOptions) (*Result, error) {
	m, err := route.Resolve(address)
	if err != nil {
		return nil, err
	}
	p.log.Debug("resolved address", "address", address, "route", m.Code.String())

	res, err := p.query(ctx, m, opts)
	if err != nil {
		p.metrics.Request(m.Code.String(), opQuery, metrics.OutcomeError)
		return nil, err
	}
	p.metrics.Request(m.Code.String(), opQuery, metrics.OutcomeOK)
	return res, nil
}

func (p *Provider) query(ctx context.Context, m route.Match, opts QueryOptions) (*Result, error) {
	pl, err := planFor(m)
	if err != nil {
		return nil, err
	}

	sel, names, err := pl.selectFor(opts)
	if err != nil {
		return nil, err
	}

	var records []keyring.Record
	err = p.store.WithSession(ctx, func(ss *store.Session) error {
		records, err = p.selectRecords(ctx, ss, sel)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Result{Match: m, Columns: names, Records: records}, nil
}
