// Package textutil provides the text processing shared by the disc
// analyst, matcher, and organizer: media-name title casing, filename
// sanitization, and the fingerprint/similarity machinery episode matching
// scores with.
//
// Fingerprints are term-frequency vectors with precomputed norms.
// Tokenization lowercases text, splits on non-alphanumeric runs, and drops
// tokens shorter than three characters. A Corpus derives an
// inverse-document-frequency table across reference transcripts so scoring
// favors the terms that distinguish episodes over the vocabulary a show
// repeats everywhere.
package textutil
