// Package services holds small cross-cutting helpers shared by the job
// pipeline packages: context-carried identifiers that internal/logging
// reads back out to stamp every log line with the job/drive/stage a
// goroutine is working on, without threading those values through every
// function signature.
package services

import "context"

type contextKey string

const (
	jobIDKey     contextKey = "job_id"
	driveIDKey   contextKey = "drive_id"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

// WithJobID annotates ctx with the job identifier a goroutine is driving.
func WithJobID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the job identifier if present.
func JobIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(jobIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithDriveID annotates ctx with the optical drive a job is running
// against (e.g. "E:").
func WithDriveID(ctx context.Context, driveID string) context.Context {
	if driveID == "" {
		return ctx
	}
	return context.WithValue(ctx, driveIDKey, driveID)
}

// DriveIDFromContext returns the drive identifier if present.
func DriveIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(driveIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates ctx with the job-pipeline stage name (identify, rip,
// match, organize) currently executing.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates ctx with a correlation identifier for an inbound
// REST/WebSocket request, so logs emitted while servicing it can be
// grepped together.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
