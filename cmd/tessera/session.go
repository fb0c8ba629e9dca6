package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tessera/internal/archive"
	"tessera/internal/config"
	"tessera/internal/control"
	"tessera/internal/download"
	"tessera/internal/faults"
	"tessera/internal/ledger"
	"tessera/internal/logging"
	"tessera/internal/proctree"
	"tessera/internal/progress"
	"tessera/internal/provision"
	"tessera/internal/service"
	"tessera/internal/shell"
	"tessera/internal/startup"
	"tessera/internal/worker"
)

const hubCapacity = 256

// session holds every component of one launch.
type session struct {
	cfg    *config.Config
	id     string
	logger *slog.Logger

	ledger      *ledger.Store
	provisioner *provision.Provisioner
	supervisor  *service.Supervisor
	launcher    *worker.Launcher
	shell       *shell.Shell
	channel     *progress.Channel
	hub         *progress.Hub
	reaper      *proctree.Reaper
	matcher     proctree.Matcher
	orch        *startup.Orchestrator

	logs []io.Closer
}

func openSession(cfg *config.Config, sessionID string, logger *slog.Logger) (*session, error) {
	store, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, id: sessionID, logger: logger, ledger: store}

	outputs := make([]io.Writer, 0, 3)
	for _, name := range processLogNames(cfg) {
		file, err := s.openProcessLog(name)
		if err != nil {
			s.Close()
			return nil, err
		}
		outputs = append(outputs, file)
	}
	serviceLog, workerLog, frontendLog := outputs[0], outputs[1], outputs[2]

	s.provisioner = newProvisioner(cfg, store, logger)

	svcOpts := service.OptionsFromConfig(cfg.Service)
	svcOpts.Output = serviceLog
	s.supervisor = service.New(svcOpts, service.NewProber(cfg.Service.Probe), logger)

	plan := worker.Resolve(cfg, config.HostOS())
	s.launcher = worker.NewLauncher(plan, worker.Env(cfg.Paths.Home), workerLog, logger)
	s.shell = shell.New(cfg.Frontend, frontendLog, logger)
	s.channel = progress.NewChannel(cfg.Surface.AppName, logger)
	s.hub = progress.NewHub(hubCapacity)
	s.matcher = plan.Matcher(cfg.Service.Name)
	s.reaper = newReaper(cfg, logger)

	s.orch = startup.New(startup.Deps{
		Config:      cfg,
		Provisioner: s.provisioner,
		Service:     s.supervisor,
		Worker:      s.launcher,
		Shell:       s.shell,
		Reaper:      s.reaper,
		Progress:    s.channel,
		Matcher:     s.matcher,
		Logger:      logger,
	})
	return s, nil
}

// processLogNames are the per-child log files opened by a session.
func processLogNames(cfg *config.Config) []string {
	return []string{cfg.Service.Name, "worker", "frontend"}
}

// rotateLogs rotates oversized logs. It runs before anything opens them.
func rotateLogs(cfg *config.Config) ([]string, error) {
	now := time.Now()
	maxBytes := int64(cfg.Logging.MaxSizeMB) * 1024 * 1024
	paths := []string{cfg.LogPath()}
	for _, name := range processLogNames(cfg) {
		paths = append(paths, filepath.Join(cfg.Paths.LogDir, name+".log"))
	}
	var rotated []string
	var errs []error
	for _, path := range paths {
		name, err := logging.RotateIfLarger(path, maxBytes, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if name != "" {
			rotated = append(rotated, name)
		}
	}
	return rotated, errors.Join(errs...)
}

func newProvisioner(cfg *config.Config, recorder provision.Recorder, logger *slog.Logger) *provision.Provisioner {
	fetcher := download.New(download.OptionsFromConfig(cfg.Download), logger)
	return provision.New(fetcher, archive.NewExtractor(logger), recorder, logger)
}

func newReaper(cfg *config.Config, logger *slog.Logger) *proctree.Reaper {
	return proctree.NewSystemReaper(pollInterval(cfg), graceWindow(cfg), logger)
}

func pollInterval(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Shutdown.PollIntervalMS) * time.Millisecond
}

func graceWindow(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Shutdown.GraceMS) * time.Millisecond
}

// openProcessLog opens <log_dir>/<name>.log for a child's output.
func (s *session) openProcessLog(name string) (*os.File, error) {
	path := filepath.Join(s.cfg.Paths.LogDir, name+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s log: %w", name, err)
	}
	s.logs = append(s.logs, file)
	return file, nil
}

// shutdown reaps the process tree and closes the frontend.
func (s *session) shutdown(ctx context.Context) proctree.Report {
	report := s.orch.Shutdown(ctx)
	if err := s.shell.Close(ctx, graceWindow(s.cfg)); err != nil {
		s.logger.Warn("frontend did not stop cleanly", logging.Error(err))
	}
	s.logger.Info("launcher stopped",
		logging.Int("matched", len(report.Matched)),
		logging.Int("killed", len(report.Killed)),
		logging.Int("remaining", len(report.Remaining)),
		logging.String(logging.FieldEventType, "launcher_stopped"),
	)
	return report
}

func (s *session) Close() {
	for _, c := range s.logs {
		_ = c.Close()
	}
	if s.ledger != nil {
		_ = s.ledger.Close()
	}
}

// controller exposes the session to the control server.
func (s *session) controller() control.Controller {
	return sessionController{s: s}
}

type sessionController struct {
	s *session
}

func (c sessionController) Activate(ctx context.Context) error {
	return c.s.orch.Activate(ctx)
}

func (c sessionController) Status() control.Status {
	snap := c.s.orch.Snapshot()
	status := control.Status{
		State:         snap.State.String(),
		SessionID:     c.s.id,
		Home:          c.s.cfg.Paths.Home,
		ServicePID:    snap.ServicePID,
		WorkerPID:     c.s.launcher.PID(),
		WorkerRunning: snap.WorkerRunning,
		ShellRunning:  snap.ShellRunning,
	}
	if snap.Err != nil {
		status.Error = faults.Describe(snap.Err).Summary()
	}
	return status
}
