// Package matcher identifies which canonical episode (or movie) a ripped
// title actually contains. It extracts short audio chunks from each title,
// transcribes them with an external speech-to-text tool, and scores the
// transcripts against a reference subtitle corpus built from a local cache
// and, when that's incomplete, remote subtitle providers.
//
// Matching runs during a job's JobMatching state. A title that scores above
// the confidence floor is marked matched; everything else is left for
// review rather than guessed at.
package matcher
