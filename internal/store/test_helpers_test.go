package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var drivers = []string{DriverSQLite3, DriverSQLite}

// setupTestStore opens a fresh store in a temp dir.
func setupTestStore(t *testing.T, driver string) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "keyring.db")
	s, err := Open(context.Background(), path, Options{Driver: driver})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// legacyKeysDDL is the keys table before can_certify existed.
const legacyKeysDDL = `
	CREATE TABLE keys (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key_id INTEGER, kind INTEGER NOT NULL, is_master_key INTEGER,
		algorithm INTEGER, key_size INTEGER, can_sign INTEGER, can_encrypt INTEGER,
		is_revoked INTEGER, created_at INTEGER, expires_at INTEGER, key_data BLOB,
		rank INTEGER, key_ring_row_id INTEGER NOT NULL,
		FOREIGN KEY (key_ring_row_id) REFERENCES key_rings(id) ON DELETE CASCADE
	)`

const legacyRingsDDL = `
	CREATE TABLE key_rings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		master_key_id INTEGER, kind INTEGER NOT NULL, key_ring_data BLOB
	)`

const legacyUserIDsDDL = `
	CREATE TABLE user_ids (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT, rank INTEGER, key_ring_row_id INTEGER NOT NULL,
		FOREIGN KEY (key_ring_row_id) REFERENCES key_rings(id) ON DELETE CASCADE
	)`

// createLegacyDB writes a database at the given schema version using the
// raw driver, bypassing Open. stmts run after the DDL.
func createLegacyDB(t *testing.T, version int, keysDDL string, stmts ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	all := []string{legacyRingsDDL, keysDDL, legacyUserIDsDDL}
	all = append(all, stmts...)
	all = append(all, fmt.Sprintf("PRAGMA user_version = %d", version))
	for _, stmt := range all {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return path
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()

	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()

	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

// openRaw opens path with the plain driver, without schema handling.
func openRaw(t *testing.T, path string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
