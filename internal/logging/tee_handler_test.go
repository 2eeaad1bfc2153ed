package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestTeeHandlerNilHandlers(t *testing.T) {
	h := TeeHandler(nil, nil)
	if _, ok := h.(NoopHandler); !ok {
		t.Errorf("expected NoopHandler for all nil handlers, got %T", h)
	}
}

func TestTeeHandlerSingleHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := TeeHandler(nil, inner); h != inner {
		t.Error("expected single non-nil handler to be returned unwrapped")
	}
}

func TestTeeHandlerRespectsPerHandlerLevel(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	info := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debug := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})

	h := TeeHandler(info, debug)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected tee to be enabled for debug")
	}

	logger := slog.New(h).With("device", "10.0.0.5")
	logger.Debug("command sent")

	if infoBuf.Len() != 0 {
		t.Errorf("info handler received debug record: %s", infoBuf.String())
	}
	if !strings.Contains(debugBuf.String(), `"device":"10.0.0.5"`) {
		t.Errorf("expected attrs in debug output, got %s", debugBuf.String())
	}
}

func TestWithLevelOverrideDropsBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger := WithLevelOverride(base, "warn")
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected info record to be dropped, got %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("expected warn record, got %s", out)
	}
	if WithLevelOverride(base, "") != base {
		t.Error("expected empty level to return the logger unchanged")
	}
}
