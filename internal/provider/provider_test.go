package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/keyringdb/internal/keyring"
	"github.com/roach88/keyringdb/internal/route"
	"github.com/roach88/keyringdb/internal/store"
	"github.com/roach88/keyringdb/internal/testutil"
)

// newProvider returns a provider over s whose notifications are recorded.
func newProvider(t *testing.T, s *store.Store, opts ...Option) (*Provider, *testutil.Recorder) {
	t.Helper()

	rec := &testutil.Recorder{}
	opts = append([]Option{WithNotifier(rec)}, opts...)
	return New(s, opts...), rec
}

// importRing imports ring and returns its row id.
func importRing(t *testing.T, p *Provider, ring keyring.KeyRing) int64 {
	t.Helper()

	addr, err := p.ImportKeyRing(context.Background(), ring)
	require.NoError(t, err)
	return route.MustResolve(addr).Row()
}

// query runs an unfiltered read and returns the records.
func query(t *testing.T, p *Provider, address string) []keyring.Record {
	t.Helper()

	res, err := p.Query(context.Background(), address, QueryOptions{})
	require.NoError(t, err)
	return res.Records
}

func countRows(t *testing.T, s *store.Store, q string, args ...any) int {
	t.Helper()

	var n int
	require.NoError(t, s.DB().QueryRow(q, args...).Scan(&n))
	return n
}

func ringIDs(records []keyring.Record) []int64 {
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		id, _ := r.Int(keyring.ColID)
		ids = append(ids, id)
	}
	return ids
}
