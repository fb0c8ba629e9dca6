package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tessera/internal/config"
	"tessera/internal/control"
	"tessera/internal/ledger"
	"tessera/internal/preflight"
	"tessera/internal/service"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show launcher state, readiness checks and install history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			status, running := queryLauncher(cmd.Context(), cfg)
			printLauncherStatus(out, status, running)

			opts := preflight.Options{Running: running}
			if probe {
				opts.Prober = service.NewProber(cfg.Service.Probe)
			}
			results := preflight.RunAll(cmd.Context(), cfg, opts)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, passLabel(r.Passed), r.Detail})
			}
			fmt.Fprintln(out, renderTable("Checks", []string{"Check", "Status", "Detail"}, rows, nil))

			return printInstallHistory(cmd.Context(), out, cfg)
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "Also check that the database engine answers on its port")
	return cmd
}

// queryLauncher asks a running launcher for its state. Any failure reads as
// not running.
func queryLauncher(ctx context.Context, cfg *config.Config) (control.Status, bool) {
	client, err := control.NewClient(cfg.Surface.Bind, 2*time.Second)
	if err != nil {
		return control.Status{}, false
	}
	status, err := client.Status(ctx)
	if err != nil {
		return control.Status{}, false
	}
	return status, true
}

func printLauncherStatus(out io.Writer, status control.Status, running bool) {
	if !running {
		fmt.Fprintln(out, "Launcher: not running")
		return
	}
	rows := [][]string{
		{"State", stateLabel(status.State)},
		{"Session", status.SessionID},
		{"Home", status.Home},
		{"Service pid", pidLabel(status.ServicePID)},
		{"Worker pid", pidLabel(status.WorkerPID)},
		{"Worker running", yesNo(status.WorkerRunning)},
		{"Interface shown", yesNo(status.ShellRunning)},
	}
	if status.Error != "" {
		rows = append(rows, []string{"Error", status.Error})
	}
	fmt.Fprintln(out, renderTable("Launcher", []string{"Field", "Value"}, rows, nil))
}

func printInstallHistory(ctx context.Context, out io.Writer, cfg *config.Config) error {
	store, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return fmt.Errorf("open install ledger: %w", err)
	}
	defer store.Close()

	installs, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(installs) == 0 {
		fmt.Fprintln(out, "No installs recorded")
		return nil
	}
	rows := make([][]string, 0, len(installs))
	for _, in := range installs {
		rows = append(rows, []string{
			in.Resource,
			humanize.Bytes(uint64(in.ArchiveBytes)),
			in.InstallPath,
			humanize.Time(in.InstalledAt),
		})
	}
	fmt.Fprintln(out, renderTable("Installs", []string{"Resource", "Archive", "Path", "Installed"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft}))
	return nil
}

// stateLabel turns "verifying_service" into "Verifying Service".
func stateLabel(state string) string {
	if state == "" {
		return "Unknown"
	}
	return cases.Title(language.English).String(strings.ReplaceAll(state, "_", " "))
}

func passLabel(passed bool) string {
	if passed {
		return "ok"
	}
	return "FAIL"
}

func pidLabel(pid int) string {
	if pid <= 0 {
		return "-"
	}
	return strconv.Itoa(pid)
}
