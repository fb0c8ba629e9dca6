package proctree

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"tessera/internal/faults"
)

// Handle tracks one spawned child process.
type Handle struct {
	name string
	cmd  *exec.Cmd
	pid  int
	done chan struct{}

	mu       sync.Mutex
	err      error
	stopping bool
}

// Start launches cmd and watches it. onExit runs once if the process exits
// before MarkStopping or Stop was called; the error carries ErrProcessExit.
func Start(cmd *exec.Cmd, name string, onExit func(error)) (*Handle, error) {
	if cmd == nil {
		return nil, faults.Wrap(faults.ErrProcessSpawn, name, "start", "no command", nil)
	}
	if err := cmd.Start(); err != nil {
		return nil, faults.Wrap(faults.ErrProcessSpawn, name, "start", fmt.Sprintf("%s refused to start", name), err)
	}
	h := &Handle{
		name: name,
		cmd:  cmd,
		pid:  cmd.Process.Pid,
		done: make(chan struct{}),
	}
	go h.wait(onExit)
	return h, nil
}

func (h *Handle) wait(onExit func(error)) {
	waitErr := h.cmd.Wait()
	h.mu.Lock()
	stopping := h.stopping
	if !stopping {
		h.err = faults.Wrap(faults.ErrProcessExit, h.name, "run", exitMessage(h.name, h.cmd), waitErr)
	}
	exitErr := h.err
	h.mu.Unlock()
	close(h.done)
	if !stopping && onExit != nil {
		onExit(exitErr)
	}
}

func exitMessage(name string, cmd *exec.Cmd) string {
	if cmd.ProcessState != nil {
		return fmt.Sprintf("%s exited unexpectedly (code %d)", name, cmd.ProcessState.ExitCode())
	}
	return fmt.Sprintf("%s exited unexpectedly", name)
}

// Name returns the label used in errors and logs.
func (h *Handle) Name() string { return h.name }

// PID returns the OS process id.
func (h *Handle) PID() int { return h.pid }

// Done is closed once the process has been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the unexpected-exit error, if any.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Running reports whether the process has not exited yet.
func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// MarkStopping suppresses the exit callback for a shutdown driven elsewhere,
// such as the tree reaper.
func (h *Handle) MarkStopping() {
	h.mu.Lock()
	h.stopping = true
	h.mu.Unlock()
}

// Stop asks the process to exit and kills it if it is still alive after grace.
func (h *Handle) Stop(ctx context.Context, grace time.Duration) error {
	h.MarkStopping()
	if !h.Running() {
		return nil
	}
	signaler := SystemSignaler()
	if err := signaler.Terminate(h.pid); err != nil && !errors.Is(err, ErrNoProcess) {
		return fmt.Errorf("terminate %s (pid %d): %w", h.name, h.pid, err)
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
	case <-timer.C:
	}
	if err := signaler.Kill(h.pid); err != nil && !errors.Is(err, ErrNoProcess) {
		return fmt.Errorf("kill %s (pid %d): %w", h.name, h.pid, err)
	}
	select {
	case <-h.done:
	case <-time.After(time.Second):
	}
	return nil
}
