// Package store owns the physical SQLite schema for key rings: table
// creation, versioned forward-only migrations, and scoped sessions.
//
// # Tables
//
//   - key_rings: one row per ring; kind discriminates public from secret
//   - keys: master key and subkeys, ON DELETE CASCADE from key_rings
//   - user_ids: identities, rank 0 is primary, ON DELETE CASCADE from key_rings
//   - crypto_consumers: package allowlist, independent of the rings
//
// # Versions
//
// The schema version lives in PRAGMA user_version and is checked on every
// Open. A fresh database gets schema.sql directly; older databases are
// migrated one version at a time, each step in its own transaction.
// Databases newer than CurrentVersion are refused with a SchemaError.
//
// # Connections
//
// Foreign key enforcement is per-connection state in SQLite. It is set in
// the DSN for every pooled connection and set again when a Session is
// acquired. Writes go through Session.InTx so that a cascade delete and the
// statement that triggered it commit or roll back together.
//
// Two drivers are supported: github.com/mattn/go-sqlite3 ("sqlite3") and
// modernc.org/sqlite ("sqlite").
package store
