package preflight

import (
	"context"
	"fmt"

	"tessera/internal/config"
	"tessera/internal/deps"
	"tessera/internal/service"
	"tessera/internal/worker"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options adjusts RunAll for the caller's situation.
type Options struct {
	GOOS string
	// Prober checks service reachability; nil skips the check.
	Prober service.Prober
	// Running means a launcher already owns the service, so a busy port is expected.
	Running bool
}

// RunAll executes every check for cfg.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}
	goos := opts.GOOS
	if goos == "" {
		goos = config.HostOS()
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Application home", cfg.Paths.Home))

	for _, status := range deps.CheckBinaries(Requirements(cfg, goos)) {
		results = append(results, fromDependency(status))
	}
	for _, b := range cfg.Bundles {
		results = append(results, CheckBundle(cfg, b))
	}

	sc, err := cfg.BuildServiceConfig(goos)
	if err != nil {
		results = append(results, Result{Name: "Service config", Detail: err.Error()})
		return results
	}
	results = append(results, CheckPort(sc.Port(), opts.Running))
	if opts.Prober != nil {
		results = append(results, CheckService(ctx, opts.Prober, sc.Port()))
	}
	return results
}

// Requirements lists the executables a launch needs.
func Requirements(cfg *config.Config, goos string) []deps.Requirement {
	plan := worker.Resolve(cfg, goos)
	reqs := []deps.Requirement{
		{
			Name:        cfg.Service.Name,
			Command:     cfg.ServiceBinaryPath(goos),
			Description: "Database engine, installed on first launch",
		},
		{
			Name:        "Worker (" + string(plan.Mode) + ")",
			Command:     plan.Program,
			Description: "Backend worker",
		},
	}
	if cfg.Frontend.Command != "" {
		reqs = append(reqs, deps.Requirement{
			Name:        "Frontend",
			Command:     cfg.Frontend.Command,
			Description: "Main interface",
			Optional:    true,
		})
	}
	return reqs
}

func fromDependency(status deps.Status) Result {
	detail := status.Command
	if status.Detail != "" {
		detail = fmt.Sprintf("%s (%s)", status.Command, status.Detail)
	}
	return Result{Name: status.Name, Passed: status.Available, Detail: detail}
}
