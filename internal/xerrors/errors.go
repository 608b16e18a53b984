// Package xerrors provides the typed error taxonomy shared across Engram's
// components. Every failure that crosses a component boundary is wrapped as
// a *ServiceError tagged with one of the seven sentinel markers below, so
// callers can classify failures with errors.Is without string matching.
package xerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers, one per taxonomy member in the error handling design.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrMatching      = errors.New("matching error")
	ErrConfiguration = errors.New("configuration error")
	ErrOrganization  = errors.New("organization error")
	ErrSubtitle      = errors.New("subtitle error")
	ErrStore         = errors.New("store error")
	ErrCancelled     = errors.New("cancelled")
)

// Kind captures the taxonomy of service errors.
type Kind string

const (
	KindExternalTool  Kind = "external_tool"
	KindMatching      Kind = "matching"
	KindConfiguration Kind = "configuration"
	KindOrganization  Kind = "organization"
	KindSubtitle      Kind = "subtitle"
	KindStore         Kind = "store"
	KindCancelled     Kind = "cancelled"
)

// ServiceError provides structured error context for component failures.
type ServiceError struct {
	Marker     error
	Kind       Kind
	Stage      string
	Operation  string
	Message    string
	Code       string
	Hint       string
	DetailPath string
	Cause      error
}

func (e *ServiceError) Error() string {
	if e == nil {
		return ""
	}
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if detail == "" {
		detail = "service failure"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", detail, e.Cause)
	}
	return detail
}

func (e *ServiceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *ServiceError) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	if e.Marker != nil && errors.Is(e.Marker, target) {
		return true
	}
	return errors.Is(e.Cause, target)
}

// Details exposes a snapshot of a ServiceError for structured logging.
type Details struct {
	Kind       Kind
	Stage      string
	Operation  string
	Message    string
	Code       string
	Hint       string
	DetailPath string
	Cause      error
}

// Inspect extracts structured error information when available.
func Inspect(err error) Details {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr != nil {
		return Details{
			Kind:       svcErr.Kind,
			Stage:      svcErr.Stage,
			Operation:  svcErr.Operation,
			Message:    strings.TrimSpace(svcErr.Message),
			Code:       strings.TrimSpace(svcErr.Code),
			Hint:       strings.TrimSpace(svcErr.Hint),
			DetailPath: strings.TrimSpace(svcErr.DetailPath),
			Cause:      svcErr.Cause,
		}
	}
	return Details{
		Kind:    KindStore,
		Message: strings.TrimSpace(errorMessage(err)),
		Cause:   err,
	}
}

// Wrap builds an error that carries stage/operation context while tagging it
// with the provided marker for later classification. marker should be one of
// the exported sentinels above.
func Wrap(marker error, stage, operation, message string, err error) error {
	return wrapWithOptions(marker, stage, operation, message, err)
}

// WrapDetail attaches a detail path (e.g. a path to captured tool output).
func WrapDetail(marker error, stage, operation, message string, err error, detailPath string) error {
	return wrapWithOptions(marker, stage, operation, message, err, withDetailPath(detailPath))
}

// WrapHint attaches a stable error code and a recovery hint.
func WrapHint(marker error, stage, operation, message, code, hint string, err error) error {
	return wrapWithOptions(marker, stage, operation, message, err, withCode(code), withHint(hint))
}

type wrapOption func(*ServiceError)

func withDetailPath(path string) wrapOption {
	return func(e *ServiceError) {
		if e != nil {
			e.DetailPath = strings.TrimSpace(path)
		}
	}
}

func withCode(code string) wrapOption {
	return func(e *ServiceError) {
		if e != nil {
			e.Code = strings.TrimSpace(code)
		}
	}
}

func withHint(hint string) wrapOption {
	return func(e *ServiceError) {
		if e != nil {
			e.Hint = strings.TrimSpace(hint)
		}
	}
}

func wrapWithOptions(marker error, stage, operation, message string, err error, opts ...wrapOption) error {
	if marker == nil {
		marker = ErrStore
	}
	kind, code := classifyMarker(marker)
	serviceErr := &ServiceError{
		Marker:    marker,
		Kind:      kind,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Code:      code,
		Cause:     err,
	}
	if err != nil {
		var nested *ServiceError
		if errors.As(err, &nested) && nested != nil {
			if strings.TrimSpace(serviceErr.DetailPath) == "" {
				serviceErr.DetailPath = nested.DetailPath
			}
			if strings.TrimSpace(serviceErr.Hint) == "" {
				serviceErr.Hint = nested.Hint
			}
		}
	}
	for _, opt := range opts {
		opt(serviceErr)
	}
	if serviceErr.Hint == "" && serviceErr.DetailPath != "" {
		serviceErr.Hint = "see error_detail_path for tool output"
	}
	return serviceErr
}

// IsRetryable reports whether a failure is transient and safe to retry
// automatically (as opposed to requiring user review or being fatal).
func IsRetryable(err error) bool {
	d := Inspect(err)
	switch d.Kind {
	case KindExternalTool, KindStore:
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

func classifyMarker(marker error) (Kind, string) {
	switch {
	case errors.Is(marker, ErrExternalTool):
		return KindExternalTool, "E_EXTERNAL_TOOL"
	case errors.Is(marker, ErrMatching):
		return KindMatching, "E_MATCHING"
	case errors.Is(marker, ErrConfiguration):
		return KindConfiguration, "E_CONFIGURATION"
	case errors.Is(marker, ErrOrganization):
		return KindOrganization, "E_ORGANIZATION"
	case errors.Is(marker, ErrSubtitle):
		return KindSubtitle, "E_SUBTITLE"
	case errors.Is(marker, ErrCancelled):
		return KindCancelled, "E_CANCELLED"
	default:
		return KindStore, "E_STORE"
	}
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
