package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/keyringdb/internal/store"
)

// Drivers lists every supported store driver. Tests that touch SQL
// behaviour run once per driver.
var Drivers = []string{store.DriverSQLite3, store.DriverSQLite}

// OpenStore opens a fresh store at the current schema version in a
// temporary directory. It is closed when the test ends.
func OpenStore(t testing.TB, driver string) *store.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "keyring.db")
	s, err := store.Open(context.Background(), path, store.Options{Driver: driver})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// ReopenReadOnly opens a second, read-only handle on s's database file.
func ReopenReadOnly(t testing.TB, s *store.Store) *store.Store {
	t.Helper()

	ro, err := store.Open(context.Background(), s.Path(), store.Options{Driver: s.Driver(), ReadOnly: true})
	require.NoError(t, err)
	t.Cleanup(func() { ro.Close() })
	return ro
}

// ForEachDriver runs fn as a subtest per driver, each with its own store.
func ForEachDriver(t *testing.T, fn func(t *testing.T, s *store.Store)) {
	t.Helper()

	for _, driver := range Drivers {
		t.Run(driver, func(t *testing.T) {
			fn(t, OpenStore(t, driver))
		})
	}
}
