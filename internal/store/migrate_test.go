package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyKeysV4DDL = `
	CREATE TABLE keys (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key_id INTEGER, kind INTEGER NOT NULL, is_master_key INTEGER,
		algorithm INTEGER, key_size INTEGER, can_sign INTEGER, can_encrypt INTEGER,
		is_revoked INTEGER, created_at INTEGER, expires_at INTEGER, key_data BLOB,
		rank INTEGER, key_ring_row_id INTEGER NOT NULL, can_certify INTEGER DEFAULT 0,
		FOREIGN KEY (key_ring_row_id) REFERENCES key_rings(id) ON DELETE CASCADE
	)`

var legacyRows = []string{
	`INSERT INTO key_rings (id, master_key_id, kind) VALUES (1, 100, 0)`,
	`INSERT INTO keys (key_id, kind, is_master_key, rank, key_ring_row_id) VALUES (100, 0, 1, 0, 1)`,
	`INSERT INTO keys (key_id, kind, is_master_key, rank, key_ring_row_id) VALUES (101, 0, 0, 1, 1)`,
	`INSERT INTO user_ids (user_id, rank, key_ring_row_id) VALUES ('A <a@x.com>', 0, 1)`,
}

func TestMigrate_ToCurrent(t *testing.T) {
	tests := []struct {
		name    string
		version int
		keysDDL string
		rows    []string
	}{
		{"from v3", 3, legacyKeysDDL, legacyRows},
		{
			"from v4", 4, legacyKeysV4DDL,
			append(append([]string{}, legacyRows...), `UPDATE keys SET can_certify = 1 WHERE is_master_key = 1`),
		},
		{"from v1", 1, legacyKeysDDL, legacyRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			path := createLegacyDB(t, tt.version, tt.keysDDL, tt.rows...)

			s, err := Open(ctx, path, Options{})
			require.NoError(t, err)
			defer s.Close()

			version, err := s.Version(ctx)
			require.NoError(t, err)
			assert.Equal(t, CurrentVersion, version)

			db := s.DB()
			assert.True(t, tableExists(t, db, "crypto_consumers"))
			assert.Equal(t, 1, countRows(t, db, `SELECT COUNT(*) FROM keys WHERE can_certify = 1 AND is_master_key = 1`))
			assert.Equal(t, 0, countRows(t, db, `SELECT COUNT(*) FROM keys WHERE can_certify = 1 AND is_master_key = 0`))
			assert.Equal(t, 1, countRows(t, db, `SELECT COUNT(*) FROM user_ids`))
			assert.Equal(t, 2, countRows(t, db,
				`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name IN ('idx_keys_one_master', 'idx_user_ids_one_primary')`))
		})
	}
}

func TestMigrate_DuplicateMasterKeyIsSchemaError(t *testing.T) {
	ctx := context.Background()
	rows := append(append([]string{}, legacyRows...),
		`CREATE TABLE crypto_consumers (id INTEGER PRIMARY KEY AUTOINCREMENT, package_name TEXT UNIQUE)`,
		`INSERT INTO keys (key_id, kind, is_master_key, rank, key_ring_row_id) VALUES (102, 0, 1, 2, 1)`,
	)
	path := createLegacyDB(t, 5, legacyKeysV4DDL, rows...)

	_, err := Open(ctx, path, Options{})
	require.Error(t, err)

	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 5, se.Version)
	assert.True(t, IsConstraint(err))

	db := openRaw(t, path)
	assert.Equal(t, 5, countRows(t, db, `PRAGMA user_version`))
}

func TestMigrate_MissingColumnIsSchemaError(t *testing.T) {
	ctx := context.Background()
	keysWithoutMasterFlag := `
		CREATE TABLE keys (
			id INTEGER PRIMARY KEY AUTOINCREMENT, key_id INTEGER, kind INTEGER NOT NULL,
			key_ring_row_id INTEGER NOT NULL
		)`
	path := createLegacyDB(t, 3, keysWithoutMasterFlag)

	_, err := Open(ctx, path, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))
	assert.True(t, errors.Is(err, ErrMissingColumn))

	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 3, se.Version)

	// The failed step did not commit: the store is still at version 3 and
	// keys has not gained can_certify.
	db := openRaw(t, path)
	assert.Equal(t, 3, countRows(t, db, `PRAGMA user_version`))
	ok, err := columnExists(ctx, db, "keys", "can_certify")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMigrate_StepsAreRerunnable(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, DriverSQLite3)

	// Re-running the steps over a current schema is harmless.
	_, err := s.DB().ExecContext(ctx, `PRAGMA user_version = 3`)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx, 3, CurrentVersion))

	version, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, version)
}

func TestMigrate_SkipsAppliedSteps(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, DriverSQLite3)

	_, err := s.DB().ExecContext(ctx, `INSERT INTO key_rings (id, master_key_id, kind) VALUES (1, 100, 0)`)
	require.NoError(t, err)
	_, err = s.DB().ExecContext(ctx,
		`INSERT INTO keys (key_id, kind, is_master_key, can_certify, rank, key_ring_row_id) VALUES (100, 0, 1, 0, 0, 1)`)
	require.NoError(t, err)

	// The store already records CurrentVersion, as if another process had
	// migrated it after this one read the old version. The v4 backfill
	// must not run again.
	require.NoError(t, s.Migrate(ctx, 3, CurrentVersion))

	assert.Equal(t, 0, countRows(t, s.DB(), `SELECT COUNT(*) FROM keys WHERE can_certify = 1`))
	version, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, version)
}

func TestMigrate_InvalidRange(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, DriverSQLite3)

	assert.True(t, IsSchemaError(s.Migrate(ctx, 0, 5)))
	assert.True(t, IsSchemaError(s.Migrate(ctx, 4, 3)))
	assert.True(t, IsSchemaError(s.Migrate(ctx, 3, CurrentVersion+1)))
}

func TestMigrate_Modernc(t *testing.T) {
	ctx := context.Background()
	path := createLegacyDB(t, 3, legacyKeysDDL, legacyRows...)

	s, err := Open(ctx, path, Options{Driver: DriverSQLite})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 1, countRows(t, s.DB(), `SELECT COUNT(*) FROM keys WHERE can_certify = 1`))
	assert.True(t, tableExists(t, s.DB(), "crypto_consumers"))
}
