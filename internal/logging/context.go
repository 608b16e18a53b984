package logging

import (
	"context"
	"log/slog"

	"engram/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for job identifiers.
	FieldJobID = "job_id"
	// FieldStage is the standardized structured logging key for pipeline stage names
	// (identify, rip, match, organize).
	FieldStage = "stage"
	// FieldDriveID is the standardized structured logging key for optical drive
	// identifiers (e.g. "E:").
	FieldDriveID = "drive_id"
	// FieldTitleID is the standardized structured logging key for ripped title
	// identifiers within a job.
	FieldTitleID = "title_id"
	// FieldContentType is the standardized structured logging key for the
	// analyst's TV/MOVIE/UNKNOWN classification.
	FieldContentType = "content_type"
	// FieldEpisodeCode is the standardized structured logging key for a
	// canonical SxxEyy episode code.
	FieldEpisodeCode = "episode_code"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
	// FieldProgressStage is the standardized key for progress stage labels.
	FieldProgressStage = "progress_stage"
	// FieldProgressPercent is the standardized key for progress percent (0-100).
	FieldProgressPercent = "progress_percent"
	// FieldProgressMessage is the standardized key for progress messages.
	FieldProgressMessage = "progress_message"
	// FieldProgressETA is the standardized key for progress ETA.
	FieldProgressETA = "progress_eta"
	// FieldDecisionType categorizes decision logs for filtering (classification,
	// matcher ranking, conflict resolution).
	FieldDecisionType = "decision_type"
	// FieldDecisionResult records a decision log's outcome.
	FieldDecisionResult = "decision_result"
	// FieldDecisionReason records why a decision went the way it did.
	FieldDecisionReason = "decision_reason"
	// FieldDecisionOptions records the candidates a decision chose among.
	FieldDecisionOptions = "decision_options"
	// FieldDecisionSelected records which candidate a decision selected.
	FieldDecisionSelected = "decision_selected"
	// FieldEventType categorizes lifecycle events (stage_start, stage_complete, status, etc.).
	FieldEventType = "event_type"
	// FieldErrorKind captures the error taxonomy (validation/config/external/etc.).
	FieldErrorKind = "error_kind"
	// FieldErrorOperation captures the failing operation name.
	FieldErrorOperation = "error_operation"
	// FieldErrorDetailPath points to additional diagnostics for an error.
	FieldErrorDetailPath = "error_detail_path"
	// FieldErrorCode captures stable error codes.
	FieldErrorCode = "error_code"
	// FieldErrorHint provides a short hint for recovery.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldJobID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if driveID, ok := services.DriveIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDriveID, driveID))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
