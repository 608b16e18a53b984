package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func sessionLogger(t *testing.T, sessionID string) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return slog.New(newSessionIDHandler(slog.NewJSONHandler(&buf, nil), sessionID)), &buf
}

func TestSessionIDHandlerStampsEveryRecord(t *testing.T) {
	logger, buf := sessionLogger(t, "run-20260801-a")
	logger.Info("daemon started")

	if got := buf.String(); !strings.Contains(got, `"session_id":"run-20260801-a"`) {
		t.Errorf("expected session_id in output, got: %s", got)
	}
}

func TestSessionIDHandlerSurvivesWith(t *testing.T) {
	logger, buf := sessionLogger(t, "run-20260801-b")
	logger.With("drive_id", "/dev/sr0").Info("disc inserted")

	got := buf.String()
	if !strings.Contains(got, `"session_id":"run-20260801-b"`) {
		t.Errorf("expected session_id to survive With, got: %s", got)
	}
	if !strings.Contains(got, `"drive_id":"/dev/sr0"`) {
		t.Errorf("expected the With attribute in output, got: %s", got)
	}
}

func TestSessionIDHandlerNilBase(t *testing.T) {
	handler := newSessionIDHandler(nil, "run-x")
	if _, ok := handler.(NoopHandler); !ok {
		t.Errorf("expected NoopHandler when base is nil, got: %T", handler)
	}
}
