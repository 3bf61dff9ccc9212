package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Session is one logical unit of work on a dedicated connection.
// Acquiring a session re-asserts the per-connection settings the schema
// relies on; closing it returns the connection to the pool.
type Session struct {
	ID   uuid.UUID
	conn *sql.Conn
	ro   bool
	log  *slog.Logger
}

// Session acquires a connection and applies session settings.
// Callers must Close the session; WithSession does that for them.
func (s *Store) Session(ctx context.Context) (*Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if !s.readOnly {
		// foreign_keys is connection state and is off by default in SQLite.
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	id := uuid.Must(uuid.NewV7())
	return &Session{
		ID:   id,
		conn: conn,
		ro:   s.readOnly,
		log:  s.log.With("session", id.String()),
	}, nil
}

// WithSession runs fn on a fresh session and releases it afterwards.
func (s *Store) WithSession(ctx context.Context, fn func(*Session) error) error {
	ss, err := s.Session(ctx)
	if err != nil {
		return err
	}
	defer ss.Close()
	return fn(ss)
}

// Close releases the session's connection.
func (ss *Session) Close() error {
	return ss.conn.Close()
}

// Logger returns a logger tagged with the session id.
func (ss *Session) Logger() *slog.Logger { return ss.log }

// ReadOnly reports whether the session belongs to a read-only store.
func (ss *Session) ReadOnly() bool { return ss.ro }

// QueryContext runs a query outside any explicit transaction.
func (ss *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return ss.conn.QueryContext(ctx, query, args...)
}

// InTx runs fn inside a transaction on the session's connection. The
// transaction commits if fn returns nil and rolls back otherwise, so a
// cascade delete and its triggering statement land as one unit.
func (ss *Session) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if ss.ro {
		return ErrReadOnly
	}

	tx, err := ss.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
