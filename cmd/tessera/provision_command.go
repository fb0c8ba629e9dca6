package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"tessera/internal/config"
	"tessera/internal/faults"
	"tessera/internal/ledger"
	"tessera/internal/logging"
	"tessera/internal/progress"
	"tessera/internal/provision"
)

func newProvisionCommand(ctx *commandContext) *cobra.Command {
	var bundles []string
	var skipService bool

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Install the database engine and data bundles without starting anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire launcher lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("tessera is running; stop it before provisioning")
			}
			defer func() {
				_ = lock.Unlock()
			}()

			targets, err := provisionTargets(cfg, skipService, bundles)
			if err != nil {
				return err
			}

			logger, _, err := ctx.newLogger("none")
			if err != nil {
				return err
			}
			store, err := ledger.Open(cfg.LedgerPath())
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			term := progress.NewTerminal(out)
			defer term.Close()
			channel := progress.NewChannel(cfg.Surface.AppName, logger)
			defer channel.Attach(term)()

			if err := os.MkdirAll(cfg.Paths.Home, 0o755); err != nil {
				return fmt.Errorf("create application directory: %w", err)
			}

			p := newProvisioner(cfg, store, logger)
			rows := make([][]string, 0, len(targets))
			for _, target := range targets {
				channel.Update(fmt.Sprintf("Ensure %s is installed", target.ID))
				outcome, err := p.Ensure(logging.WithResource(cmd.Context(), target.ID), target)
				if err != nil {
					d := faults.Describe(err)
					channel.Error(d.Summary(), d.Message)
					return err
				}
				rows = append(rows, outcomeRow(target, outcome))
			}
			term.Close()
			fmt.Fprintln(out, renderTable("Provisioned", []string{"Resource", "Result", "Downloaded", "Files", "Path"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft}))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&bundles, "bundle", nil, "Only provision these bundle ids (repeatable)")
	cmd.Flags().BoolVar(&skipService, "skip-service", false, "Do not provision the database engine")
	return cmd
}

// provisionTargets lists the service target followed by the selected bundles.
func provisionTargets(cfg *config.Config, skipService bool, only []string) ([]provision.Target, error) {
	var targets []provision.Target
	if !skipService {
		t, err := provision.ServiceTarget(cfg, config.HostOS())
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	wanted := make(map[string]bool, len(only))
	for _, id := range only {
		wanted[strings.TrimSpace(id)] = true
	}
	for _, b := range cfg.Bundles {
		if len(wanted) > 0 && !wanted[b.ID] {
			continue
		}
		delete(wanted, b.ID)
		t, err := provision.BundleTarget(cfg, b)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	if len(wanted) > 0 {
		unknown := make([]string, 0, len(wanted))
		for id := range wanted {
			unknown = append(unknown, fmt.Sprintf("%q", id))
		}
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown bundle %s", strings.Join(unknown, ", "))
	}
	return targets, nil
}

func outcomeRow(t provision.Target, o provision.Outcome) []string {
	result := "installed"
	size := "-"
	if o.AlreadyPresent {
		result = "present"
	} else if o.Downloaded {
		size = humanize.Bytes(uint64(o.Bytes))
	}
	return []string{t.ID, result, size, strconv.Itoa(o.Files), t.CheckPath}
}
