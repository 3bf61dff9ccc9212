// Package provider executes address-based reads and writes against the
// key ring store.
//
// An address is resolved by the route package, turned into a statement by
// the route's descriptor (plan.go), compiled by querysql and executed on a
// store.Session. Mutations run inside one transaction and issue exactly
// one statement; the change notifier hears about them after commit.
package provider

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/keyringdb/internal/catalog"
	"github.com/roach88/keyringdb/internal/keyring"
	"github.com/roach88/keyringdb/internal/metrics"
	"github.com/roach88/keyringdb/internal/notify"
	"github.com/roach88/keyringdb/internal/queryir"
	"github.com/roach88/keyringdb/internal/querysql"
	"github.com/roach88/keyringdb/internal/store"
)

// Operation names used in logs and metrics.
const (
	opQuery    = "query"
	opInsert   = "insert"
	opUpdate   = "update"
	opDelete   = "delete"
	opOpenBlob = "open_blob"
	opImport   = "import"
)

// Provider serves the address grammar over a Store.
type Provider struct {
	store    *store.Store
	compiler *querysql.SQLCompiler
	catalog  *catalog.Catalog
	notifier notify.Notifier
	metrics  *metrics.Metrics
	blobRoot string
	log      *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithNotifier sets the change notifier. The default discards changes.
func WithNotifier(n notify.Notifier) Option {
	return func(p *Provider) { p.notifier = n }
}

// WithMetrics enables instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Provider) { p.metrics = m }
}

// WithBlobRoot sets the directory data/<name> addresses are served from.
func WithBlobRoot(dir string) Option {
	return func(p *Provider) { p.blobRoot = dir }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.log = l }
}

// New creates a Provider over s.
func New(s *store.Store, opts ...Option) *Provider {
	p := &Provider{
		store:    s,
		compiler: querysql.NewSQLCompiler(),
		catalog:  catalog.Default(),
		notifier: notify.Nop{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With("component", "provider")
	return p
}

// Store returns the underlying store.
func (p *Provider) Store() *store.Store { return p.store }

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// compile turns a statement into SQL, logging it at DEBUG.
func (p *Provider) compile(stmt queryir.Statement) (string, []any, error) {
	query, params, err := p.compiler.Compile(stmt)
	if err != nil {
		return "", nil, fmt.Errorf("compile: %w", err)
	}
	p.log.Debug("compiled statement", "sql", query, "params", len(params))
	return query, params, nil
}

// selectRecords runs a Select and scans every row into a Record keyed by
// the projected column names.
func (p *Provider) selectRecords(ctx context.Context, q queryer, sel queryir.Select) ([]keyring.Record, error) {
	query, params, err := p.compile(sel)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := q.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	records := []keyring.Record{}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		rec := make(keyring.Record, len(cols))
		for i, name := range cols {
			v, err := keyring.FromDriver(raw[i])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", name, err)
			}
			rec[name] = v
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	p.metrics.Statement("select", time.Since(start))
	return records, nil
}

// execStatement runs one mutation statement.
func (p *Provider) execStatement(ctx context.Context, ex execer, op string, stmt queryir.Statement) (sql.Result, error) {
	query, params, err := p.compile(stmt)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := ex.ExecContext(ctx, query, params...)
	p.metrics.Statement(op, time.Since(start))
	if err != nil {
		return nil, err
	}
	return res, nil
}

// notify reports committed changes. Notifier failures are not observable
// here by construction.
func (p *Provider) notify(ctx context.Context, addresses ...string) {
	p.notifier.Notify(ctx, addresses...)
}
