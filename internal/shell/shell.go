// Package shell reveals the main interface.
//
// With a frontend command configured, Reveal spawns it with the progress
// stream address in TESSERA_EVENTS_URL and Closed fires when that process
// exits, which the launcher treats as all windows being closed. Without a
// command the shell is headless: Reveal only records that the interface is
// up and Closed never fires.
package shell

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"tessera/internal/config"
	"tessera/internal/logging"
	"tessera/internal/proctree"
)

// EnvEventsURL carries the websocket progress address to the frontend.
const EnvEventsURL = "TESSERA_EVENTS_URL"

// Shell owns the main interface process.
type Shell struct {
	command string
	args    []string
	output  io.Writer
	logger  *slog.Logger
	closed  chan struct{}

	mu        sync.Mutex
	eventsURL string
	handle    *proctree.Handle
	revealed  bool
	closeOnce sync.Once
}

// New builds a Shell from the [frontend] section.
func New(cfg config.Frontend, output io.Writer, logger *slog.Logger) *Shell {
	if output == nil {
		output = io.Discard
	}
	return &Shell{
		command: strings.TrimSpace(cfg.Command),
		args:    append([]string(nil), cfg.Args...),
		output:  output,
		logger:  logging.NewComponentLogger(logger, "shell"),
		closed:  make(chan struct{}),
	}
}

// SetEventsURL sets the address exported to the frontend.
func (s *Shell) SetEventsURL(url string) {
	s.mu.Lock()
	s.eventsURL = url
	s.mu.Unlock()
}

// Headless reports whether no frontend command is configured.
func (s *Shell) Headless() bool { return s.command == "" }

// Reveal shows the main interface unless it is already up.
func (s *Shell) Reveal(ctx context.Context) error {
	logger := logging.WithContext(ctx, s.logger)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Headless() {
		if !s.revealed {
			logger.Info("main interface ready (headless)", logging.String(logging.FieldEventType, "shell_revealed"))
		}
		s.revealed = true
		return nil
	}
	if s.handle != nil && s.handle.Running() {
		return nil
	}

	cmd := exec.Command(s.command, s.args...)
	cmd.Env = os.Environ()
	if s.eventsURL != "" {
		cmd.Env = append(cmd.Env, EnvEventsURL+"="+s.eventsURL)
	}
	cmd.Stdout = s.output
	cmd.Stderr = s.output

	handle, err := proctree.Start(cmd, "frontend", func(error) {
		logger.Info("main interface closed", logging.String(logging.FieldEventType, "shell_closed"))
		s.closeOnce.Do(func() { close(s.closed) })
	})
	if err != nil {
		return err
	}
	s.handle = handle
	s.revealed = true
	logger.Info("main interface revealed",
		logging.Int("pid", handle.PID()),
		logging.String("command", s.command),
		logging.String(logging.FieldEventType, "shell_revealed"),
	)
	return nil
}

// Running reports whether the interface is currently shown.
func (s *Shell) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Headless() {
		return s.revealed
	}
	return s.handle != nil && s.handle.Running()
}

// Closed fires the first time the frontend exits on its own.
func (s *Shell) Closed() <-chan struct{} { return s.closed }

// Close stops the frontend if it is still running.
func (s *Shell) Close(ctx context.Context, grace time.Duration) error {
	s.mu.Lock()
	handle := s.handle
	s.mu.Unlock()
	if handle == nil {
		return nil
	}
	return handle.Stop(ctx, grace)
}
