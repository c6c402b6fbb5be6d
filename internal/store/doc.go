// Package store provides SQLite-backed storage for synchronized records,
// the buddy links that pair them, and per-organization feature switches.
//
// # Tables
//
//   - records: one row per (type, id), fields stored as canonical JSON
//   - buddy_links: one-to-one pairing between two records, unique on each end
//   - switches: feature gates keyed by (organization, feature)
//
// # Transactions
//
// RunInTx opens one transaction on a dedicated connection and carries it in
// the context. Every Store method called with that context runs inside the
// transaction; nested RunInTx calls join it. Savepoint nests a rollback
// point inside the current transaction.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Links are removed with either of their records
//
// Records are ordered by id COLLATE BINARY in every listing.
package store
