// Package ripcoord wraps the external rip tool (MakeMKV) as a service with
// two operations: scan, which reads a disc's title list in info mode, and
// rip, which extracts selected titles and streams progress events.
//
// The package also owns the file-readiness protocol that runs after each
// title finishes: MakeMKV's own exit code isn't a reliable signal that the
// output file is done being flushed to disk, so the coordinator polls the
// file's size until it's stable.
package ripcoord
