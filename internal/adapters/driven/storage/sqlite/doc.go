// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - FileStore: Discovered files
//   - SearchHitStore: Append-only search audit trail
//   - ScanProgressStore: Resumable scan checkpoints
//   - ContentStatusStore: Terminal content fetch outcomes
//   - MetadataStore: Repository metadata
//   - HistoryStore: File commit history
//
// # Schema
//
// The database schema is managed by golang-migrate from versioned migrations
// embedded from the migrations/ directory. Each migration is a pair of .up.sql
// and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at results/files.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode. Batch writes run in a single transaction each.
package sqlite
