// Package jobs owns the job and title state machines and the manager that
// drives jobs through their stages: identify, rip, match, organize.
//
// Unlike a polling pipeline keyed only on "what status is next", this
// package validates every transition against an explicit table before
// persisting it, so a caller requesting an illegal move (e.g. idle straight
// to organizing) gets an error instead of silently corrupting state.
package jobs
