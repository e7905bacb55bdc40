// Package store provides SQLite-backed durable storage for Pending Exports.
//
// A Pending Export and its attribute changes are persisted as one unit:
// every write replaces the parent row and its full change collection inside
// a single transaction, so readers never observe a half-applied update.
//
// # Invariants
//
//   - UNIQUE(connected_system_object_id): at most one Pending Export per CSO.
//     CreatePendingExport returns ErrPendingExportExists on violation.
//   - Attribute changes keep their collection order via a position column.
//   - Intended values live in one typed column per data type; data_type
//     records which one (0 for a clearing change with no value).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - A single open connection: SQLite has one writer, and ":memory:"
//     databases are per-connection
package store
