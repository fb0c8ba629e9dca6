package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"tessera/internal/config"
	"tessera/internal/worker"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if _, err := os.Stat(ctx.configPath); err != nil {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show resolved paths and the effective service settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			goos := config.HostOS()
			plan := worker.Resolve(cfg, goos)
			out := cmd.OutOrStdout()

			rows := [][]string{
				{"Config", ctx.configPath},
				{"Home", cfg.Paths.Home},
				{"App dir", cfg.Paths.AppDir},
				{"State dir", cfg.Paths.StateDir},
				{"Log file", cfg.LogPath()},
				{"Service binary", cfg.ServiceBinaryPath(goos)},
				{"Service override", cfg.ServiceFilePath()},
				{"Worker mode", string(plan.Mode)},
				{"Worker command", strings.TrimSpace(plan.Program + " " + strings.Join(plan.Args(), " "))},
				{"Control bind", emptyDash(cfg.Surface.Bind)},
				{"Frontend", emptyDash(cfg.Frontend.Command)},
			}
			for _, b := range cfg.Bundles {
				rows = append(rows, []string{"Bundle " + b.ID, filepath.Clean(cfg.BundleCheckPath(b))})
			}
			fmt.Fprintln(out, renderTable("Paths", []string{"Setting", "Value"}, rows, nil))

			sc, err := cfg.BuildServiceConfig(goos)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(sc.Values))
			for k := range sc.Values {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			serviceRows := make([][]string, 0, len(keys))
			for _, k := range keys {
				value := sc.Values[k]
				if k == "password" && value != "" {
					value = "********"
				}
				serviceRows = append(serviceRows, []string{k, value})
			}
			fmt.Fprintln(out, renderTable("Service ["+cfg.Service.Section+"]", []string{"Key", "Value"}, serviceRows, nil))
			return nil
		},
	}
}

func emptyDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
