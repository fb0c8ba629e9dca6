package worker

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"tessera/internal/logging"
	"tessera/internal/proctree"
)

// Launcher owns the worker process for one session.
type Launcher struct {
	plan   Plan
	env    []string
	output io.Writer
	logger *slog.Logger

	mu     sync.Mutex
	handle *proctree.Handle
}

// NewLauncher builds a Launcher. env is appended to the inherited environment.
func NewLauncher(plan Plan, env []string, output io.Writer, logger *slog.Logger) *Launcher {
	if output == nil {
		output = io.Discard
	}
	return &Launcher{
		plan:   plan,
		env:    env,
		output: output,
		logger: logging.NewComponentLogger(logger, "worker"),
	}
}

// Env returns the variables the worker expects for an application home.
func Env(home string) []string {
	return []string{
		"TESSERA_HOME=" + home,
		"ADMIN_INSTANCE=true",
	}
}

// Plan returns the resolved invocation.
func (l *Launcher) Plan() Plan { return l.plan }

// Launch spawns the worker unless one is already running.
func (l *Launcher) Launch(ctx context.Context) (*proctree.Handle, error) {
	logger := logging.WithContext(ctx, l.logger)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle != nil && l.handle.Running() {
		return l.handle, nil
	}

	cmd := exec.Command(l.plan.Program, l.plan.Args()...)
	cmd.Dir = l.plan.Dir
	cmd.Env = append(os.Environ(), l.env...)
	cmd.Stdout = l.output
	cmd.Stderr = l.output

	handle, err := proctree.Start(cmd, "worker", func(exitErr error) {
		logging.WarnWithContext(logger, "worker exited", "worker_exited",
			append(logging.Fault(exitErr), logging.String(logging.FieldErrorHint, "activate the app again to relaunch the worker"))...,
		)
	})
	if err != nil {
		return nil, err
	}
	l.handle = handle
	logger.Info("worker launched",
		logging.Int("pid", handle.PID()),
		logging.String("mode", string(l.plan.Mode)),
		logging.String("program", l.plan.Program),
		logging.String(logging.FieldEventType, "worker_launched"),
	)
	return handle, nil
}

// Running reports whether a launched worker is still alive.
func (l *Launcher) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle != nil && l.handle.Running()
}

// PID returns the running worker's pid, or 0.
func (l *Launcher) PID() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle == nil || !l.handle.Running() {
		return 0
	}
	return l.handle.PID()
}

// MarkStopping suppresses exit reporting ahead of a tree reap.
func (l *Launcher) MarkStopping() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle != nil {
		l.handle.MarkStopping()
	}
}

// Stop terminates the worker directly.
func (l *Launcher) Stop(ctx context.Context, grace time.Duration) error {
	l.mu.Lock()
	handle := l.handle
	l.mu.Unlock()
	if handle == nil {
		return nil
	}
	return handle.Stop(ctx, grace)
}
