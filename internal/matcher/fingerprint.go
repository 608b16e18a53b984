package matcher

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"engram/internal/textutil"
)

// CommandRunner executes an external tool; production code shells out to
// ffmpeg, tests substitute a fake.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// ChunkConfig controls how many audio samples are pulled from a title and
// where.
type ChunkConfig struct {
	ChunkSeconds    float64
	OffsetFractions []float64 // fraction of title duration, e.g. 0.1 = 10% in
}

// DefaultChunkConfig samples five 30-second windows spread across the
// title, avoiding the very start/end where cold opens and credits skew the
// transcript away from dialogue.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkSeconds:    30,
		OffsetFractions: []float64{0.15, 0.35, 0.5, 0.65, 0.85},
	}
}

// AudioChunk is one extracted sample awaiting transcription.
type AudioChunk struct {
	Path         string
	StartSeconds float64
}

// ExtractChunks pulls ChunkConfig's sample windows from sourcePath's primary
// audio track via ffmpeg. A chunk that fails to extract is skipped rather
// than failing the whole title.
func ExtractChunks(ctx context.Context, run CommandRunner, sourcePath string, durationSeconds int, cfg ChunkConfig, workDir string) ([]AudioChunk, []error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, []error{fmt.Errorf("create chunk workdir: %w", err)}
	}
	var chunks []AudioChunk
	var errs []error
	for i, fraction := range cfg.OffsetFractions {
		start := fraction * float64(durationSeconds)
		if start+cfg.ChunkSeconds > float64(durationSeconds) {
			start = math.Max(0, float64(durationSeconds)-cfg.ChunkSeconds)
		}
		dest := filepath.Join(workDir, fmt.Sprintf("chunk_%d.wav", i))
		if err := extractChunk(ctx, run, sourcePath, start, cfg.ChunkSeconds, dest); err != nil {
			errs = append(errs, fmt.Errorf("chunk %d: %w", i, err))
			continue
		}
		chunks = append(chunks, AudioChunk{Path: dest, StartSeconds: start})
	}
	return chunks, errs
}

func extractChunk(ctx context.Context, run CommandRunner, source string, startSeconds, durationSeconds float64, dest string) error {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", startSeconds),
		"-t", fmt.Sprintf("%.3f", durationSeconds),
		"-i", source,
		"-vn", "-sn", "-dn",
		"-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le",
		dest,
	}
	return run(ctx, "ffmpeg", args...)
}

// Transcriber turns an audio file into plain text. It's treated as an
// external collaborator: a blocking CPU/GPU call that returns
// plain text, with no assumptions made about its internals. WhisperX fills
// this role in production.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// referenceSet is the precomputed scoring material for one season: an
// IDF-weighted fingerprint per episode plus the IDF table itself, applied
// to each chunk transcript so shared show vocabulary (character names,
// places) doesn't drown out the terms that separate episodes.
type referenceSet struct {
	vectors map[string]*textutil.Fingerprint
	idf     map[string]float64
}

// scoreTranscript compares a chunk transcript against every episode in the
// reference set and returns the best-scoring match, or ("", 0) if the set
// is empty or nothing scores above zero.
func scoreTranscript(transcript string, refs referenceSet) (string, float64) {
	vec := textutil.NewFingerprint(transcript).WithIDF(refs.idf)
	if vec == nil {
		return "", 0
	}
	bestCode, bestScore := "", 0.0
	for code, refVec := range refs.vectors {
		score := textutil.CosineSimilarity(vec, refVec)
		if score > bestScore {
			bestCode, bestScore = code, score
		}
	}
	return bestCode, bestScore
}

// buildReferenceVectors precomputes one IDF-weighted fingerprint per
// episode so scoring a chunk against the whole corpus is O(episodes) dot
// products, not O(episodes) tokenizations.
func buildReferenceVectors(corpus *Corpus) referenceSet {
	raw := make(map[string]*textutil.Fingerprint, len(corpus.Episodes))
	tc := textutil.NewCorpus()
	for code, text := range corpus.Episodes {
		if vec := textutil.NewFingerprint(text); vec != nil {
			raw[code] = vec
			tc.Add(vec)
		}
	}
	idf := tc.IDF()
	vectors := make(map[string]*textutil.Fingerprint, len(raw))
	for code, vec := range raw {
		if weighted := vec.WithIDF(idf); weighted != nil {
			vectors[code] = weighted
		}
	}
	return referenceSet{vectors: vectors, idf: idf}
}
