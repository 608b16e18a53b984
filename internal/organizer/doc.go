// Package organizer files matched titles into the movies or TV library.
//
// It derives filesystem destinations from a job's detected metadata, applies
// a configurable naming conflict policy (overwrite, skip, rename, or leave
// for manual placement), and performs the move atomically, falling back to
// copy-then-delete across devices. Progress and failures are reported the
// same way as the other stage handlers so the job manager can react
// uniformly.
package organizer
