package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"tessera/internal/config"
	"tessera/internal/control"
	"tessera/internal/logging"
	"tessera/internal/progress"
)

const activateTimeout = 5 * time.Second

type launchOptions struct {
	verbose bool
	linger  string
}

func newLaunchOptions() *launchOptions {
	return &launchOptions{linger: lingerAuto}
}

// Values for --linger.
const (
	lingerAuto   = "auto"
	lingerAlways = "always"
	lingerNever  = "never"
)

func (o *launchOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "Mirror launcher logs to stderr")
	cmd.Flags().StringVar(&o.linger, "linger", lingerAuto, "Keep the failure message up until interrupted: auto (on a terminal), always or never")
}

func newLaunchCommand(ctx *commandContext) *cobra.Command {
	opts := newLaunchOptions()
	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Start the application (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(cmd, ctx, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runLaunch(cmd *cobra.Command, cc *commandContext, opts *launchOptions) error {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return err
	}
	switch opts.linger {
	case lingerAuto, lingerAlways, lingerNever:
	default:
		return fmt.Errorf("invalid --linger %q (want auto, always or never)", opts.linger)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire launcher lock: %w", err)
	}
	if !locked {
		return activateRunning(cmd, cfg)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	console := "none"
	if opts.verbose {
		console = "stderr"
	}
	rotated, rotateErr := rotateLogs(cfg)
	logger, sessionID, err := cc.newLogger(console)
	if err != nil {
		return err
	}
	if rotateErr != nil {
		logging.WarnWithContext(logger, "log rotation failed", "log_rotate_failed", logging.Error(rotateErr))
	}
	for _, path := range rotated {
		logger.Info("log rotated", logging.String("path", path), logging.String(logging.FieldEventType, "log_rotated"))
	}
	logging.PruneRotated(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, time.Now())

	signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := openSession(cfg, sessionID, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	out := cmd.OutOrStdout()
	term := progress.NewTerminal(out)
	defer term.Close()
	defer sess.channel.Attach(term)()
	defer sess.channel.Attach(sess.hub)()

	server := control.NewServer(cfg.Surface.Bind, sess.hub, sess.controller(), logger)
	if err := server.Start(signalCtx); err != nil {
		logging.WarnWithContext(logger, "control server unavailable; activation requests will fail", "control_unavailable",
			logging.Error(err),
			logging.String("bind", cfg.Surface.Bind),
			logging.String(logging.FieldErrorHint, "set surface.bind to a free address or leave it empty"),
		)
	} else {
		defer server.Stop()
		sess.shell.SetEventsURL(server.EventsURL())
	}

	logger.Info("launcher starting",
		logging.String("home", cfg.Paths.Home),
		logging.String("config", cc.configPath),
		logging.Int("pid", os.Getpid()),
		logging.String(logging.FieldEventType, "launcher_start"),
	)

	runDone := make(chan error, 1)
	go func() {
		runDone <- sess.orch.Run(signalCtx)
	}()

	var runErr error
	select {
	case runErr = <-runDone:
	case <-signalCtx.Done():
		// Stages honor ctx; wait for the current one so nothing spawns after the reap.
		<-runDone
		sess.shutdown(context.Background())
		return nil
	}
	if runErr != nil {
		if signalCtx.Err() != nil {
			logger.Info("interrupt received during startup; shutting down")
			sess.shutdown(context.Background())
			return nil
		}
		return sess.failed(signalCtx, runErr, shouldLinger(opts.linger, out))
	}

	select {
	case <-signalCtx.Done():
		logger.Info("interrupt received; shutting down")
	case <-sess.shell.Closed():
		logger.Info("main interface closed; shutting down")
	case <-sess.orch.Failed():
		return sess.failed(signalCtx, sess.orch.Err(), shouldLinger(opts.linger, out))
	}
	sess.shutdown(context.Background())
	return nil
}

// failed keeps the failure visible until interrupted when linger is set, then
// reports err. The orchestrator has already torn the tree down.
func (s *session) failed(ctx context.Context, err error, linger bool) error {
	if linger {
		<-ctx.Done()
	}
	s.shutdown(context.Background())
	return fmt.Errorf("startup failed: %w", err)
}

func shouldLinger(mode string, out any) bool {
	switch mode {
	case lingerAlways:
		return true
	case lingerNever:
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// activateRunning hands off to the launcher that holds the lock.
func activateRunning(cmd *cobra.Command, cfg *config.Config) error {
	client, err := control.NewClient(cfg.Surface.Bind, activateTimeout)
	if err != nil {
		return fmt.Errorf("tessera is already running (lock %s held) and surface.bind is empty", cfg.LockPath())
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), activateTimeout)
	defer cancel()
	resp, err := client.Activate(ctx)
	if err != nil {
		if errors.Is(err, control.ErrUnavailable) {
			return fmt.Errorf("tessera is already running (lock %s held) but did not answer on %s: %w", cfg.LockPath(), cfg.Surface.Bind, err)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "tessera is already running; activated (state: %s)\n", resp.State)
	return nil
}
