package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migrationStep upgrades the schema from version v to v+1. Steps run
// inside the transaction that also records v+1, so a failed step leaves
// the store at v.
type migrationStep func(ctx context.Context, tx *sql.Tx) error

// migrations maps a version to the step that leaves it. Versions without
// an entry upgrade without schema changes.
var migrations = map[int]migrationStep{
	3: migrateToV4,
	4: migrateToV5,
	5: migrateToV6,
}

// Migrate applies the step for every version in [oldVersion, newVersion)
// in ascending order. Each step commits together with the new
// user_version, so the store is always at the last fully applied version.
// Only one migration runs against a Store at a time; a step another
// process already applied is skipped.
func (s *Store) Migrate(ctx context.Context, oldVersion, newVersion int) error {
	if s.readOnly {
		return &SchemaError{Version: oldVersion, Op: "migrate", Err: ErrReadOnly}
	}
	if oldVersion < 1 || newVersion > CurrentVersion || oldVersion > newVersion {
		return &SchemaError{
			Version: oldVersion,
			Op:      "migrate",
			Err:     fmt.Errorf("invalid migration range [%d, %d), supported up to %d", oldVersion, newVersion, CurrentVersion),
		}
	}

	s.migrateMu.Lock()
	defer s.migrateMu.Unlock()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer conn.Close()

	for version := oldVersion; version < newVersion; version++ {
		s.log.Info("upgrading schema", "path", s.path, "from", version, "to", version+1)

		if err := s.migrateStep(ctx, conn, version); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) migrateStep(ctx context.Context, conn *sql.Conn, version int) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate to v%d: begin tx: %w", version+1, err)
	}
	defer tx.Rollback()

	// The write lock is held from BEGIN IMMEDIATE on, so this read is
	// current for the rest of the step.
	var current int
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("migrate to v%d: get user_version: %w", version+1, err)
	}
	if current > version {
		s.log.Info("schema step already applied", "path", s.path, "version", current, "step", version+1)
		return nil
	}

	if step, ok := migrations[version]; ok {
		if err := step(ctx, tx); err != nil {
			return &SchemaError{Version: version, Op: fmt.Sprintf("migrate to v%d", version+1), Err: err}
		}
	}

	if err := setVersion(ctx, tx, version+1); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate to v%d: commit: %w", version+1, err)
	}
	return nil
}

// migrateToV4 introduces keys.can_certify and backfills it for master keys.
// The backfill depends on keys.is_master_key; a store that skipped the
// versions which created it cannot be migrated.
func migrateToV4(ctx context.Context, tx *sql.Tx) error {
	if err := requireColumn(ctx, tx, "keys", "is_master_key"); err != nil {
		return err
	}

	exists, err := columnExists(ctx, tx, "keys", "can_certify")
	if err != nil {
		return err
	}
	if !exists {
		if _, err := tx.ExecContext(ctx, `ALTER TABLE keys ADD COLUMN can_certify INTEGER DEFAULT 0`); err != nil {
			return fmt.Errorf("add keys.can_certify: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE keys SET can_certify = 1 WHERE is_master_key = 1`); err != nil {
		return fmt.Errorf("backfill keys.can_certify: %w", err)
	}
	return nil
}

// migrateToV5 adds the crypto consumer allowlist.
func migrateToV5(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS crypto_consumers (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			package_name TEXT UNIQUE
		)
	`)
	if err != nil {
		return fmt.Errorf("create crypto_consumers: %w", err)
	}
	return nil
}

// migrateToV6 enforces one master key and one primary user id per ring.
// A store that already holds a ring breaking either rule cannot be
// migrated; the index creation fails with a constraint error.
func migrateToV6(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_keys_one_master
			ON keys(key_ring_row_id) WHERE is_master_key = 1
	`); err != nil {
		return fmt.Errorf("create idx_keys_one_master: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_user_ids_one_primary
			ON user_ids(key_ring_row_id) WHERE rank = 0
	`); err != nil {
		return fmt.Errorf("create idx_user_ids_one_primary: %w", err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// columnExists checks pragma_table_info for a column.
func columnExists(ctx context.Context, q querier, table, column string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("inspect %s.%s: %w", table, column, err)
	}
	return count > 0, nil
}

func requireColumn(ctx context.Context, q querier, table, column string) error {
	ok, err := columnExists(ctx, q, table, column)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: column %s.%s does not exist", ErrMissingColumn, table, column)
	}
	return nil
}
