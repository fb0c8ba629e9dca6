package proctree

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"tessera/internal/faults"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestStartMissingBinary(t *testing.T) {
	_, err := Start(exec.Command("/nonexistent/mongod"), "mongod", nil)
	if !errors.Is(err, faults.ErrProcessSpawn) {
		t.Fatalf("expected ErrProcessSpawn, got %v", err)
	}
}

func TestHandleReportsUnexpectedExit(t *testing.T) {
	requireShell(t)
	exits := make(chan error, 1)
	h, err := Start(exec.Command("sh", "-c", "exit 3"), "mongod", func(err error) { exits <- err })
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case err := <-exits:
		if !errors.Is(err, faults.ErrProcessExit) {
			t.Fatalf("expected ErrProcessExit, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("exit callback not invoked")
	}
	if h.Running() {
		t.Fatal("handle still running after exit")
	}
	if !errors.Is(h.Err(), faults.ErrProcessExit) {
		t.Fatalf("Err() = %v", h.Err())
	}
}

func TestHandleStopSuppressesCallback(t *testing.T) {
	requireShell(t)
	called := make(chan struct{}, 1)
	h, err := Start(exec.Command("sh", "-c", "exec sleep 30"), "worker", func(error) { called <- struct{}{} })
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if h.PID() <= 0 {
		t.Fatalf("pid = %d", h.PID())
	}
	if err := h.Stop(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	select {
	case <-called:
		t.Fatal("exit callback fired for requested stop")
	case <-time.After(50 * time.Millisecond):
	}
	if h.Err() != nil {
		t.Fatalf("Err() = %v after requested stop", h.Err())
	}
}
