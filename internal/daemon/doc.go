// Package daemon coordinates the long-running engramd process.
//
// It wires configuration, the SQLite-backed store, the drive monitor, and
// the job manager into a single lifecycle guarded by flock-based locking so
// only one daemon instance runs against a given data directory at a time.
// Disc insertion events from the monitor are translated into new jobs;
// everything else about how a job progresses lives in internal/jobs and the
// stage packages it dispatches to.
package daemon
