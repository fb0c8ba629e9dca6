package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"tessera/internal/config"
	"tessera/internal/faults"
	"tessera/internal/logging"
	"tessera/internal/proctree"
)

// Options tunes the supervisor. Zero values mean a single immediate check.
type Options struct {
	Name     string
	Attempts int
	Interval time.Duration
	Timeout  time.Duration
	// Output receives the engine's stdout and stderr; nil discards them.
	Output io.Writer
}

// OptionsFromConfig maps the [service] section onto Options.
func OptionsFromConfig(cfg config.Service) Options {
	return Options{
		Name:     cfg.Name,
		Attempts: cfg.VerifyAttempts,
		Interval: time.Duration(cfg.VerifyIntervalMS) * time.Millisecond,
		Timeout:  time.Duration(cfg.VerifyTimeoutMS) * time.Millisecond,
	}
}

// Supervisor owns the database engine process for one session.
type Supervisor struct {
	opts   Options
	prober Prober
	logger *slog.Logger

	mu     sync.Mutex
	handle *proctree.Handle
}

// New builds a Supervisor. A nil prober uses MongoProber.
func New(opts Options, prober Prober, logger *slog.Logger) *Supervisor {
	if opts.Name == "" {
		opts.Name = "service"
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if prober == nil {
		prober = MongoProber{}
	}
	return &Supervisor{
		opts:   opts,
		prober: prober,
		logger: logging.NewComponentLogger(logger, "service"),
	}
}

// Start creates the data directory and spawns the engine. It returns once the
// process exists; onExit receives an unexpected exit.
func (s *Supervisor) Start(ctx context.Context, sc config.ServiceConfig, onExit func(error)) (*proctree.Handle, error) {
	logger := logging.WithContext(ctx, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil && s.handle.Running() {
		return s.handle, nil
	}

	if err := os.MkdirAll(sc.DataDir, 0o755); err != nil {
		return nil, faults.Wrap(faults.ErrFilesystem, s.opts.Name, "create data dir", sc.DataDir, err)
	}

	cmd := exec.Command(sc.Executable, "--port", sc.Port(), "--dbpath", sc.DataDir)
	output := s.opts.Output
	if output == nil {
		output = io.Discard
	}
	cmd.Stdout = output
	cmd.Stderr = output

	handle, err := proctree.Start(cmd, s.opts.Name, func(exitErr error) {
		logging.ErrorWithContext(logger, "service exited", "service_exited",
			append(logging.Fault(exitErr), logging.String("executable", sc.Executable))...,
		)
		if onExit != nil {
			onExit(exitErr)
		}
	})
	if err != nil {
		return nil, err
	}
	s.handle = handle
	logger.Info("service started",
		logging.Int("pid", handle.PID()),
		logging.String("port", sc.Port()),
		logging.String("data_dir", sc.DataDir),
		logging.String(logging.FieldEventType, "service_started"),
	)
	return handle, nil
}

// Verify resolves once the service answers on its port.
func (s *Supervisor) Verify(ctx context.Context, sc config.ServiceConfig) error {
	logger := logging.WithContext(ctx, s.logger)
	port := sc.Port()

	var lastErr error
	for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
		if handle := s.Handle(); handle != nil && !handle.Running() {
			return faults.Wrap(faults.ErrServiceUnreachable, s.opts.Name, "verify", "process exited before accepting connections", handle.Err())
		}
		probeCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		lastErr = s.prober.Probe(probeCtx, port)
		cancel()
		if lastErr == nil {
			logger.Info("service reachable",
				logging.String("port", port),
				logging.Int("attempt", attempt),
				logging.String(logging.FieldEventType, "service_verified"),
			)
			return nil
		}
		logger.Debug("service probe failed", logging.Int("attempt", attempt), logging.Error(lastErr))
		if attempt == s.opts.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return faults.Wrap(faults.ErrServiceUnreachable, s.opts.Name, "verify", "canceled", ctx.Err())
		case <-time.After(s.opts.Interval):
		}
	}
	return faults.Wrap(faults.ErrServiceUnreachable, s.opts.Name, "verify",
		fmt.Sprintf("no response on port %s after %d attempt(s)", port, s.opts.Attempts), lastErr)
}

// Handle returns the running process handle, if any.
func (s *Supervisor) Handle() *proctree.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// MarkStopping suppresses exit reporting ahead of a tree reap.
func (s *Supervisor) MarkStopping() {
	if handle := s.Handle(); handle != nil {
		handle.MarkStopping()
	}
}

// Stop terminates the engine directly.
func (s *Supervisor) Stop(ctx context.Context, grace time.Duration) error {
	handle := s.Handle()
	if handle == nil {
		return nil
	}
	return handle.Stop(ctx, grace)
}
