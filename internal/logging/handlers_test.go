package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestFanoutHandlerDropsNilAndSkipsDisabled(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}

	var infoBuf, errBuf bytes.Buffer
	info := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	errOnly := slog.NewJSONHandler(&errBuf, &slog.HandlerOptions{Level: slog.LevelError})
	if got := newFanoutHandler(nil, info); got != info {
		t.Fatal("expected single handler to be returned unwrapped")
	}

	logger := slog.New(newFanoutHandler(info, errOnly)).With("extra", "value")
	logger.Info("hello")
	if !strings.Contains(infoBuf.String(), `"extra":"value"`) {
		t.Fatalf("expected info handler to receive record with attrs, got %q", infoBuf.String())
	}
	if errBuf.Len() != 0 {
		t.Fatalf("expected error-level handler to skip info record, got %q", errBuf.String())
	}
}

func TestSessionIDHandlerStampsRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newSessionIDHandler(slog.NewJSONHandler(&buf, nil), "session-abc")).With("extra", "value")
	logger.Info("test message")

	out := buf.String()
	if !strings.Contains(out, `"session_id":"session-abc"`) {
		t.Fatalf("expected session_id in output, got: %s", out)
	}
	if !strings.Contains(out, `"extra":"value"`) {
		t.Fatalf("expected extra attr in output, got: %s", out)
	}
}

func TestPrettyHandlerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))
	logger = logger.With(String(FieldComponent, "provision"))
	logger.InfoContext(context.Background(), "archive extracted", String(FieldResource, "mongodb"), String("path", "has space"))

	line := buf.String()
	if !strings.Contains(line, "INFO provision: archive extracted") {
		t.Fatalf("unexpected console line %q", line)
	}
	if !strings.Contains(line, "resource=mongodb") {
		t.Fatalf("expected resource field in %q", line)
	}
	if !strings.Contains(line, `path="has space"`) {
		t.Fatalf("expected quoted value in %q", line)
	}

	buf.Reset()
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be filtered at info level, got %q", buf.String())
	}
}
