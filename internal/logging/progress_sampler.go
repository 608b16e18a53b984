package logging

import "strings"

// ProgressSampler suppresses repetitive progress logs, emitting only when
// the stage changes or the percentage crosses into a new bucket.
type ProgressSampler struct {
	bucketSize float64
	lastStage  string
	lastBucket int
}

// NewProgressSampler constructs a sampler with the given bucket width in
// percentage points (default 5).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// bucketFor maps a percent to its bucket index, clamping at 100 so values
// past completion share one final bucket.
func (s *ProgressSampler) bucketFor(percent float64) int {
	if percent >= 100 {
		percent = 100
	}
	return int(percent / s.bucketSize)
}

// ShouldLog reports whether a progress event is worth a log line. A
// negative percent means "unknown" and only stage changes count. The
// message parameter is accepted for call-site symmetry but ignored, since
// messages carry volatile fields like ETA that would defeat deduplication.
func (s *ProgressSampler) ShouldLog(percent float64, stage, message string) bool {
	if s == nil {
		return true
	}
	emit := false
	if stage = strings.TrimSpace(stage); stage != "" && stage != s.lastStage {
		s.lastStage = stage
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		if bucket := s.bucketFor(percent); bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// Reset clears the sampler state, e.g. when a new job starts.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastStage = ""
	s.lastBucket = -1
}
