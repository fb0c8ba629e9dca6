package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"tessera/internal/config"
	"tessera/internal/proctree"
	"tessera/internal/worker"
)

func newReapCommand(ctx *commandContext) *cobra.Command {
	var root int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Terminate the database engine and worker left under a launcher pid",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if root <= 0 {
				return fmt.Errorf("--root must be a process id")
			}
			matcher := worker.Resolve(cfg, config.HostOS()).Matcher(cfg.Service.Name)
			out := cmd.OutOrStdout()

			if dryRun {
				records, err := proctree.SystemLister().List(cmd.Context())
				if err != nil {
					return fmt.Errorf("list processes: %w", err)
				}
				printRecords(out, proctree.Select(records, root, matcher))
				return nil
			}

			logger, _, err := ctx.newLogger("none")
			if err != nil {
				return err
			}
			report := newReaper(cfg, logger).ReapTree(cmd.Context(), root, matcher)
			printRecords(out, report.Matched)
			fmt.Fprintf(out, "Matched %d, force-killed %d, remaining %d\n", len(report.Matched), len(report.Killed), len(report.Remaining))
			if len(report.Remaining) > 0 {
				return fmt.Errorf("processes survived the reap: %v", report.Remaining)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&root, "root", 0, "Launcher process id whose descendants are reaped")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List matching processes without signalling them")
	_ = cmd.MarkFlagRequired("root")
	return cmd
}

func printRecords(out io.Writer, records []proctree.Record) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No matching processes")
		return
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{strconv.Itoa(rec.PID), strconv.Itoa(rec.PPID), rec.Command})
	}
	fmt.Fprintln(out, renderTable("Processes", []string{"PID", "PPID", "Command"}, rows,
		[]columnAlignment{alignRight, alignRight, alignLeft}))
}
