// Package sqlite provides the default chunk store and failure log.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. One database file holds:
//
//   - chunks: every stored chunk, keyed by (namespace, collection)
//   - failures: the append-only failure log
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql
// files; applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.sentinel/data/sentinel.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. The store relies on SQLite's
// WAL mode and busy timeout for locking.
package sqlite
