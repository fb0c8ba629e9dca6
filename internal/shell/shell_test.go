package shell

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tessera/internal/config"
	"tessera/internal/testsupport"
)

func TestHeadlessReveal(t *testing.T) {
	s := New(config.Frontend{}, nil, nil)
	if !s.Headless() {
		t.Fatal("empty command should be headless")
	}
	if s.Running() {
		t.Fatal("not revealed yet")
	}
	if err := s.Reveal(context.Background()); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if !s.Running() {
		t.Fatal("headless shell should report revealed")
	}
	select {
	case <-s.Closed():
		t.Fatal("headless shell never closes on its own")
	default:
	}
}

func TestRevealSpawnsFrontendWithEventsURL(t *testing.T) {
	testsupport.RequireShell(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "url.txt")
	frontend := filepath.Join(dir, "frontend")
	testsupport.WriteStubExecutable(t, frontend, `echo "$TESSERA_EVENTS_URL $1" > `+out)

	s := New(config.Frontend{Command: frontend, Args: []string{"--main"}}, nil, nil)
	s.SetEventsURL("ws://127.0.0.1:40480/events")
	if err := s.Reveal(context.Background()); err != nil {
		t.Fatalf("reveal: %v", err)
	}

	select {
	case <-s.Closed():
	case <-time.After(5 * time.Second):
		t.Fatal("frontend exit not observed")
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "ws://127.0.0.1:40480/events --main" {
		t.Fatalf("frontend saw %q", got)
	}
	if s.Running() {
		t.Fatal("exited frontend reported as running")
	}
}

func TestCloseStopsFrontend(t *testing.T) {
	testsupport.RequireShell(t)
	frontend := filepath.Join(t.TempDir(), "frontend")
	testsupport.WriteStubExecutable(t, frontend, "exec sleep 30")

	s := New(config.Frontend{Command: frontend}, nil, nil)
	if err := s.Reveal(context.Background()); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if !s.Running() {
		t.Fatal("frontend should be running")
	}
	if err := s.Close(context.Background(), time.Second); err != nil {
		t.Fatalf("close: %v", err)
	}
	if s.Running() {
		t.Fatal("frontend still running after close")
	}
	select {
	case <-s.Closed():
		t.Fatal("requested close should not look like the user closing the window")
	default:
	}
}
