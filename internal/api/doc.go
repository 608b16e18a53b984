// Package api exposes the REST and push surfaces named in the external
// interfaces section: job and title CRUD, cancellation, review resolution,
// a simulated-insert testing hook, rip-tool preflight checks, and a
// websocket feed mirroring the event broadcaster. None of it is on the
// critical path of a rip: every handler either reads the store directly or
// delegates a decision to internal/jobs, so the daemon keeps working with
// this surface turned off.
package api
