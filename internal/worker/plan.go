package worker

import (
	"os"
	"path/filepath"

	"tessera/internal/config"
	"tessera/internal/proctree"
)

// Mode is how the worker is run.
type Mode string

const (
	ModePackaged Mode = "packaged"
	ModeSource   Mode = "source"
)

// Plan is a resolved worker invocation.
type Plan struct {
	Mode Mode
	// Program is the executable spawned: the worker binary or the interpreter.
	Program string
	// Script is the worker script in source mode.
	Script string
	Dir    string
}

// Resolve selects packaged mode when the dist directory exists under the app
// directory, source mode otherwise.
func Resolve(cfg *config.Config, goos string) Plan {
	dist := filepath.Join(cfg.Paths.AppDir, cfg.Worker.DistDir)
	if info, err := os.Stat(dist); err == nil && info.IsDir() {
		return Plan{
			Mode:    ModePackaged,
			Program: filepath.Join(dist, config.ExecutableName(goos, cfg.Worker.Module)),
			Dir:     dist,
		}
	}
	return Plan{
		Mode:    ModeSource,
		Program: cfg.Worker.Interpreter,
		Script:  filepath.Join(cfg.Paths.AppDir, cfg.Worker.SrcDir, cfg.Worker.Module+".py"),
		Dir:     cfg.Paths.AppDir,
	}
}

// Args returns the spawn arguments.
func (p Plan) Args() []string {
	if p.Mode == ModeSource {
		return []string{p.Script}
	}
	return nil
}

// CommandName is the process name the worker shows in the process table.
func (p Plan) CommandName() string {
	return filepath.Base(p.Program)
}

// Matcher builds the reaper signature for this plan.
func (p Plan) Matcher(serviceName string) proctree.Matcher {
	return proctree.Matcher{
		ServiceName: serviceName,
		WorkerName:  p.CommandName(),
		Interpreted: p.Mode == ModeSource,
	}
}
