package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1, 2 - key_rings, keys, user_ids
// 3    - same tables; keys has no can_certify column yet
// 4    - keys.can_certify, backfilled from is_master_key
// 5    - crypto_consumers
// 6    - unique master key and primary user id per ring
const CurrentVersion = 6

// Driver names accepted by Open.
const (
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3 (cgo)
	DriverSQLite  = "sqlite"  // modernc.org/sqlite (pure Go)
)

const (
	defaultBusyTimeout  = 5 * time.Second
	defaultMaxOpenConns = 4
)

// Options configures Open. The zero value opens a writable store with the
// mattn driver.
type Options struct {
	Driver       string
	ReadOnly     bool
	MaxOpenConns int
	BusyTimeout  time.Duration
}

// Store is a key ring database. It is safe for concurrent use; every
// logical unit of work should run on its own Session.
type Store struct {
	db       *sql.DB
	path     string
	driver   string
	readOnly bool
	log      *slog.Logger

	migrateMu sync.Mutex
}

// Open creates or opens a SQLite database at the given path, checks its
// schema version and migrates it forward to CurrentVersion.
//
// Each pooled connection is configured with:
//   - WAL mode for concurrent reads during writes
//   - a busy timeout for lock contention
//   - foreign key enforcement (writable stores only)
//   - BEGIN IMMEDIATE for write transactions
//
// A read-only store must already be at CurrentVersion.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if opts.Driver == "" {
		opts.Driver = DriverSQLite3
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = defaultBusyTimeout
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = defaultMaxOpenConns
	}

	dsn, err := buildDSN(path, opts)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxOpenConns)

	s := &Store{
		db:       db,
		path:     path,
		driver:   opts.Driver,
		readOnly: opts.ReadOnly,
		log:      slog.Default().With("component", "store"),
	}

	if err := s.applySchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// buildDSN renders the driver-specific connection string. Both drivers
// accept a file: URI; only the pragma syntax differs.
func buildDSN(path string, opts Options) (string, error) {
	if path == "" {
		return "", errors.New("database path is empty")
	}

	q := url.Values{}
	ms := opts.BusyTimeout.Milliseconds()

	switch opts.Driver {
	case DriverSQLite3:
		q.Set("_busy_timeout", fmt.Sprint(ms))
		if !opts.ReadOnly {
			q.Set("_foreign_keys", "on")
			q.Set("_journal_mode", "WAL")
			q.Set("_txlock", "immediate")
		}
	case DriverSQLite:
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", ms))
		if !opts.ReadOnly {
			q.Add("_pragma", "foreign_keys(1)")
			q.Add("_pragma", "journal_mode(WAL)")
			q.Set("_txlock", "immediate")
		}
	default:
		return "", fmt.Errorf("unsupported driver %q (want %q or %q)", opts.Driver, DriverSQLite3, DriverSQLite)
	}

	if opts.ReadOnly {
		q.Set("mode", "ro")
	}

	// url.Values.Encode escapes the parentheses in _pragma values; both
	// drivers unescape query values before use.
	return "file:" + strings.ReplaceAll(path, "?", "%3f") + "?" + q.Encode(), nil
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB.
// Prefer Session; connections taken directly from the pool do not carry
// the session settings.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string { return s.driver }

// ReadOnly reports whether the store was opened read-only.
func (s *Store) ReadOnly() bool { return s.readOnly }

// Version returns the persisted schema version.
func (s *Store) Version(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

// applySchema creates a fresh database or migrates an existing one.
func (s *Store) applySchema(ctx context.Context) error {
	version, err := s.Version(ctx)
	if err != nil {
		return err
	}

	switch {
	case version > CurrentVersion:
		return &SchemaError{
			Version: version,
			Op:      "open",
			Err:     fmt.Errorf("schema version %d is newer than supported version %d", version, CurrentVersion),
		}
	case version == CurrentVersion:
		return nil
	case s.readOnly:
		return &SchemaError{
			Version: version,
			Op:      "open",
			Err:     fmt.Errorf("read-only store is at version %d, need %d", version, CurrentVersion),
		}
	case version == 0:
		return s.create(ctx)
	default:
		return s.Migrate(ctx, version, CurrentVersion)
	}
}

// create installs the current schema on an empty database.
func (s *Store) create(ctx context.Context) error {
	s.migrateMu.Lock()
	defer s.migrateMu.Unlock()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create schema: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return &SchemaError{Version: 0, Op: "create", Err: err}
	}
	if err := setVersion(ctx, tx, CurrentVersion); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create schema: commit: %w", err)
	}

	s.log.Info("created schema", "path", s.path, "version", CurrentVersion)
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setVersion(ctx context.Context, ex execer, version int) error {
	// PRAGMA does not take bound parameters; version is always a local int.
	if _, err := ex.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma reads back the expected value on the
// given session. Used for testing.
func (ss *Session) verifyPragma(ctx context.Context, name, expected string) error {
	var value string
	if err := ss.conn.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if !strings.EqualFold(value, expected) {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
