package startup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"tessera/internal/config"
	"tessera/internal/faults"
	"tessera/internal/logging"
	"tessera/internal/proctree"
	"tessera/internal/provision"
)

var (
	// ErrAlreadyStarted is returned by a second Run.
	ErrAlreadyStarted = errors.New("startup already ran")
	// ErrNotReady is returned by Activate before the launcher is ready.
	ErrNotReady = errors.New("launcher not ready")
)

// Provisioner installs targets.
type Provisioner interface {
	Ensure(ctx context.Context, t provision.Target) (provision.Outcome, error)
}

// ServiceSupervisor starts and checks the database engine.
type ServiceSupervisor interface {
	Start(ctx context.Context, sc config.ServiceConfig, onExit func(error)) (*proctree.Handle, error)
	Verify(ctx context.Context, sc config.ServiceConfig) error
	MarkStopping()
}

// WorkerLauncher spawns the worker.
type WorkerLauncher interface {
	Launch(ctx context.Context) (*proctree.Handle, error)
	Running() bool
	MarkStopping()
}

// Shell reveals the main interface.
type Shell interface {
	Reveal(ctx context.Context) error
	Running() bool
}

// Reaper tears down the process tree.
type Reaper interface {
	ReapTree(ctx context.Context, root int, m proctree.Matcher) proctree.Report
}

// Progress receives status lines and the terminal error.
type Progress interface {
	Update(text string)
	Error(text, detail string) bool
}

// Deps wires an Orchestrator.
type Deps struct {
	Config      *config.Config
	GOOS        string
	Provisioner Provisioner
	Service     ServiceSupervisor
	Worker      WorkerLauncher
	Shell       Shell
	Reaper      Reaper
	Progress    Progress
	// Matcher selects the processes reaped at teardown.
	Matcher proctree.Matcher
	// RootPID is the launcher's own pid.
	RootPID int
	Logger  *slog.Logger
}

// Snapshot is a point-in-time view of the orchestrator.
type Snapshot struct {
	State         State
	Bundle        int
	Bundles       int
	ServicePID    int
	WorkerRunning bool
	ShellRunning  bool
	Err           error
}

// Orchestrator runs one launch.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	bundle  int
	err     error
	started bool
	service *proctree.Handle
	sc      config.ServiceConfig

	activateMu   sync.Mutex
	failOnce     sync.Once
	teardownOnce sync.Once
	failed       chan struct{}
	report       proctree.Report
}

// New builds an Orchestrator in StateInit.
func New(deps Deps) *Orchestrator {
	if deps.GOOS == "" {
		deps.GOOS = config.HostOS()
	}
	if deps.RootPID == 0 {
		deps.RootPID = os.Getpid()
	}
	return &Orchestrator{
		deps:   deps,
		logger: logging.NewComponentLogger(deps.Logger, "startup"),
		failed: make(chan struct{}),
	}
}

type stage struct {
	state State
	run   func(context.Context) error
}

// Run executes the stages once. It returns the error that moved the machine to
// StateFailed, or nil once ready. When ctx is canceled mid-stage the tree is
// reaped without reporting a failure and ctx's error is returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return ErrAlreadyStarted
	}
	o.started = true
	o.mu.Unlock()

	stages := []stage{
		{StateEnsuringHome, o.ensureHome},
		{StateEnsuringService, o.ensureService},
		{StateStartingService, o.startService},
		{StateVerifyingService, o.verifyService},
		{StateEnsuringData, o.ensureData},
		{StateReady, o.reveal},
	}
	for _, st := range stages {
		if !o.advance(st.state) {
			return o.Err()
		}
		stageCtx := logging.WithStage(ctx, st.state.String())
		if err := st.run(stageCtx); err != nil {
			if ctx.Err() != nil {
				o.interrupt(stageCtx, err)
				return ctx.Err()
			}
			o.fail(stageCtx, err)
			return o.Err()
		}
	}
	o.logger.Info("startup complete", logging.String(logging.FieldEventType, "startup_ready"))
	return nil
}

// advance moves to next unless the machine already failed.
func (o *Orchestrator) advance(next State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateFailed {
		return false
	}
	o.state = next
	return true
}

func (o *Orchestrator) ensureHome(ctx context.Context) error {
	home := o.deps.Config.Paths.Home
	o.deps.Progress.Update(fmt.Sprintf("Ensure application directory exists (%s)", home))
	info, err := os.Stat(home)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return faults.Wrap(faults.ErrFilesystem, "home", "ensure", fmt.Sprintf("%s is not a directory", home), nil)
	case !errors.Is(err, fs.ErrNotExist):
		return faults.Wrap(faults.ErrFilesystem, "home", "stat", home, err)
	}
	o.deps.Progress.Update(fmt.Sprintf("Application directory did not exist; creating %s", home))
	if err := os.MkdirAll(home, 0o755); err != nil {
		return faults.Wrap(faults.ErrFilesystem, "home", "create", home, err)
	}
	return nil
}

func (o *Orchestrator) ensureService(ctx context.Context) error {
	name := o.deps.Config.Service.Name
	o.deps.Progress.Update(fmt.Sprintf("Ensure %s is installed", name))
	target, err := provision.ServiceTarget(o.deps.Config, o.deps.GOOS)
	if err != nil {
		return err
	}
	return o.provision(ctx, target, name)
}

func (o *Orchestrator) startService(ctx context.Context) error {
	sc, err := o.deps.Config.BuildServiceConfig(o.deps.GOOS)
	if err != nil {
		return faults.Wrap(faults.ErrConfiguration, o.deps.Config.Service.Name, "load config", "", err)
	}
	o.deps.Progress.Update(fmt.Sprintf("Launch %s in the background", o.deps.Config.Service.Name))
	handle, err := o.deps.Service.Start(ctx, sc, func(exitErr error) {
		if ctx.Err() != nil {
			// The interrupt reached the service too; shutdown is already under way.
			o.logger.Info("service exited after interrupt", logging.Error(exitErr))
			return
		}
		o.fail(context.WithoutCancel(ctx), exitErr)
	})
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.sc = sc
	o.service = handle
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) verifyService(ctx context.Context) error {
	o.deps.Progress.Update(fmt.Sprintf("Check %s connection", o.deps.Config.Service.Name))
	o.mu.Lock()
	sc := o.sc
	o.mu.Unlock()
	return o.deps.Service.Verify(ctx, sc)
}

func (o *Orchestrator) ensureData(ctx context.Context) error {
	for i, b := range o.deps.Config.Bundles {
		o.mu.Lock()
		o.bundle = i + 1
		o.mu.Unlock()
		bundleCtx := logging.WithResource(ctx, b.ID)
		o.deps.Progress.Update(fmt.Sprintf("Ensure %s data is installed", b.ID))
		target, err := provision.BundleTarget(o.deps.Config, b)
		if err != nil {
			return err
		}
		if err := o.provision(bundleCtx, target, b.ID+" data"); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) provision(ctx context.Context, target provision.Target, label string) error {
	ctx = logging.WithResource(ctx, target.ID)
	if ok, _ := provision.Satisfied(target); !ok {
		o.deps.Progress.Update(fmt.Sprintf("%s not installed; downloading %s", label, target.URL))
	}
	outcome, err := o.deps.Provisioner.Ensure(ctx, target)
	if err != nil {
		return err
	}
	if !outcome.AlreadyPresent {
		o.deps.Progress.Update(fmt.Sprintf("%s installed (%s)", label, target.CheckPath))
	}
	return nil
}

func (o *Orchestrator) reveal(ctx context.Context) error {
	if _, err := o.deps.Worker.Launch(ctx); err != nil {
		return err
	}
	return o.deps.Shell.Reveal(ctx)
}

// Activate relaunches the worker or the main interface if either is missing.
func (o *Orchestrator) Activate(ctx context.Context) error {
	o.activateMu.Lock()
	defer o.activateMu.Unlock()

	if state := o.State(); state != StateReady {
		return fmt.Errorf("%w (%s)", ErrNotReady, state)
	}
	ctx = logging.WithStage(ctx, StateReady.String())
	if !o.deps.Worker.Running() {
		o.logger.Info("relaunching worker", logging.String(logging.FieldEventType, "worker_relaunch"))
		if _, err := o.deps.Worker.Launch(ctx); err != nil {
			return err
		}
	}
	if !o.deps.Shell.Running() {
		if err := o.deps.Shell.Reveal(ctx); err != nil {
			return err
		}
	}
	return nil
}

// fail moves to StateFailed once, reports err and tears down.
func (o *Orchestrator) fail(ctx context.Context, err error) {
	o.failOnce.Do(func() {
		o.mu.Lock()
		from := o.state
		o.state = StateFailed
		o.err = err
		o.mu.Unlock()

		logger := logging.WithContext(ctx, o.logger)
		d := faults.Describe(err)
		attrs := append(logging.Fault(err), logging.String("from_state", from.String()))
		logging.ErrorWithContext(logger, "startup failed", "startup_failed", attrs...)
		o.deps.Progress.Error(d.Summary(), d.Message)
		o.teardown(ctx)
		close(o.failed)
	})
}

// interrupt tears down after the caller canceled a stage. Nothing is reported
// on the progress channel.
func (o *Orchestrator) interrupt(ctx context.Context, err error) {
	logging.WithContext(ctx, o.logger).Info("startup interrupted",
		logging.Error(err),
		logging.String(logging.FieldEventType, "startup_interrupted"),
	)
	o.teardown(context.WithoutCancel(ctx))
}

// Shutdown reaps the process tree. It is safe to call more than once.
func (o *Orchestrator) Shutdown(ctx context.Context) proctree.Report {
	o.teardown(ctx)
	return o.report
}

func (o *Orchestrator) teardown(ctx context.Context) {
	o.teardownOnce.Do(func() {
		o.deps.Service.MarkStopping()
		o.deps.Worker.MarkStopping()
		o.report = o.deps.Reaper.ReapTree(ctx, o.deps.RootPID, o.deps.Matcher)
	})
}

// Failed is closed once the machine reaches StateFailed.
func (o *Orchestrator) Failed() <-chan struct{} { return o.failed }

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Err returns the error that failed the run.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Snapshot reports the current state and owned processes.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	snap := Snapshot{
		State:   o.state,
		Bundle:  o.bundle,
		Bundles: len(o.deps.Config.Bundles),
		Err:     o.err,
	}
	if o.service != nil && o.service.Running() {
		snap.ServicePID = o.service.PID()
	}
	o.mu.Unlock()
	snap.WorkerRunning = o.deps.Worker.Running()
	snap.ShellRunning = o.deps.Shell.Running()
	return snap
}
