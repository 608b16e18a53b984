// Package store persists Jobs and Titles in a single-file SQLite database.
//
// It owns the schema (idempotent additive migrations applied at startup),
// WAL journaling, and a busy-retry wrapper around every write: a write that
// hits SQLITE_BUSY is retried a few times with backoff, and the last error
// is returned to the caller if every attempt is busy. Mutation methods are the only place job/title
// state is persisted; everything above this package (the job state machine,
// the matcher, the organizer) goes through these methods rather than
// touching SQL directly.
package store
