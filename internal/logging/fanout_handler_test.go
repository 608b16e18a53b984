package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func jsonBuf(level slog.Level) (slog.Handler, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level}), &buf
}

func TestNewFanoutHandlerEdgeCases(t *testing.T) {
	t.Run("all nil collapses to NoopHandler", func(t *testing.T) {
		h := newFanoutHandler(nil, nil, nil)
		if _, ok := h.(NoopHandler); !ok {
			t.Errorf("expected NoopHandler, got %T", h)
		}
	})

	t.Run("single handler returned unwrapped", func(t *testing.T) {
		inner, _ := jsonBuf(slog.LevelInfo)
		if h := newFanoutHandler(inner); h != inner {
			t.Error("expected single handler to be returned unwrapped")
		}
	})

	t.Run("nil entries are filtered out", func(t *testing.T) {
		inner, _ := jsonBuf(slog.LevelInfo)
		if h := newFanoutHandler(nil, inner, nil); h != inner {
			t.Error("expected single non-nil handler to be returned unwrapped")
		}
	})
}

func TestFanoutHandlerEnabled(t *testing.T) {
	t.Run("enabled when any member accepts the level", func(t *testing.T) {
		info, _ := jsonBuf(slog.LevelInfo)
		debug, _ := jsonBuf(slog.LevelDebug)
		h := newFanoutHandler(info, debug)

		if !h.Enabled(context.Background(), slog.LevelDebug) {
			t.Error("expected enabled for debug (one member accepts it)")
		}
		if !h.Enabled(context.Background(), slog.LevelInfo) {
			t.Error("expected enabled for info (both accept it)")
		}
	})

	t.Run("disabled when no member accepts the level", func(t *testing.T) {
		warn, _ := jsonBuf(slog.LevelWarn)
		errh, _ := jsonBuf(slog.LevelError)
		if newFanoutHandler(warn, errh).Enabled(context.Background(), slog.LevelDebug) {
			t.Error("expected not enabled for debug")
		}
	})
}

func TestFanoutHandlerHandle(t *testing.T) {
	t.Run("writes to every member", func(t *testing.T) {
		h1, buf1 := jsonBuf(slog.LevelInfo)
		h2, buf2 := jsonBuf(slog.LevelInfo)

		slog.New(newFanoutHandler(h1, h2)).Info("rip started")

		if buf1.Len() == 0 || buf2.Len() == 0 {
			t.Error("expected output in both buffers")
		}
	})

	t.Run("each member keeps its own level filter", func(t *testing.T) {
		info, infoBuf := jsonBuf(slog.LevelInfo)
		warn, warnBuf := jsonBuf(slog.LevelWarn)

		slog.New(newFanoutHandler(info, warn)).Info("info only")

		if infoBuf.Len() == 0 {
			t.Error("expected output for the info-level member")
		}
		if warnBuf.Len() != 0 {
			t.Error("expected the warn-level member to stay silent")
		}
	})
}

func TestFanoutHandlerWithAttrsAndGroup(t *testing.T) {
	t.Run("WithAttrs reaches every member", func(t *testing.T) {
		h1, buf1 := jsonBuf(slog.LevelInfo)
		h2, buf2 := jsonBuf(slog.LevelInfo)
		logger := slog.New(newFanoutHandler(h1, h2).WithAttrs([]slog.Attr{slog.String("job_id", "7")}))
		logger.Info("tick")

		if !bytes.Contains(buf1.Bytes(), []byte(`"job_id"`)) || !bytes.Contains(buf2.Bytes(), []byte(`"job_id"`)) {
			t.Error("expected job_id attribute in both buffers")
		}
	})

	t.Run("WithGroup reaches every member", func(t *testing.T) {
		h1, buf1 := jsonBuf(slog.LevelInfo)
		h2, buf2 := jsonBuf(slog.LevelInfo)
		logger := slog.New(newFanoutHandler(h1, h2).WithGroup("progress"))
		logger.Info("tick", slog.String("pct", "40"))

		if !bytes.Contains(buf1.Bytes(), []byte(`"progress"`)) || !bytes.Contains(buf2.Bytes(), []byte(`"progress"`)) {
			t.Error("expected group in both buffers")
		}
	})
}

func TestTeeLogger(t *testing.T) {
	t.Run("writes to both base and tee", func(t *testing.T) {
		base, baseBuf := jsonBuf(slog.LevelInfo)
		tee, teeBuf := jsonBuf(slog.LevelInfo)
		TeeLogger(slog.New(base), tee).Info("teed message")

		if baseBuf.Len() == 0 || teeBuf.Len() == 0 {
			t.Error("expected output in both buffers")
		}
	})

	t.Run("nil base still feeds the tee", func(t *testing.T) {
		tee, teeBuf := jsonBuf(slog.LevelInfo)
		TeeLogger(nil, tee).Info("no base")

		if teeBuf.Len() == 0 {
			t.Error("expected output in tee buffer")
		}
	})
}

func TestTeeHandler(t *testing.T) {
	h1, buf1 := jsonBuf(slog.LevelInfo)
	h2, buf2 := jsonBuf(slog.LevelInfo)
	slog.New(TeeHandler(h1, h2)).Info("tee handler test")

	if buf1.Len() == 0 || buf2.Len() == 0 {
		t.Error("expected output in both buffers")
	}
}

func TestFanoutHandlerDebugFiltering(t *testing.T) {
	info, infoBuf := jsonBuf(slog.LevelInfo)
	debug, debugBuf := jsonBuf(slog.LevelDebug)

	slog.New(newFanoutHandler(info, debug)).Debug("debug only message")

	if infoBuf.Len() != 0 {
		t.Error("info-level member should not receive debug messages")
	}
	if debugBuf.Len() == 0 {
		t.Error("debug-level member should receive debug messages")
	}
}

func TestFanoutHandlerPreservesRecordForAllHandlers(t *testing.T) {
	h1, buf1 := jsonBuf(slog.LevelInfo)
	h2, buf2 := jsonBuf(slog.LevelInfo)
	slog.New(newFanoutHandler(h1, h2)).Info("test", slog.String("attr", "value"))

	if !bytes.Contains(buf1.Bytes(), []byte(`"attr"`)) || !bytes.Contains(buf2.Bytes(), []byte(`"attr"`)) {
		t.Error("expected attr in both buffers")
	}
}
