package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tessera/internal/config"
	"tessera/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var source string
	var lines int
	var follow bool
	var session string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the launcher log or a child process log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := logSourcePath(cfg, source)
			if err != nil {
				return err
			}
			keep := logs.SessionFilter(strings.TrimSpace(session))
			out := cmd.OutOrStdout()
			emit := func(line string) {
				if keep(line) {
					fmt.Fprintln(out, line)
				}
			}

			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				emit(line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, 250*time.Millisecond, emit)
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "launcher", "Log to read: launcher, worker, frontend or the service name")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&session, "session", "", "Only launcher records from this session id")
	return cmd
}

// logSourcePath maps a source name to its file under the log directory.
func logSourcePath(cfg *config.Config, source string) (string, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	files := map[string]string{
		"launcher":       cfg.LogPath(),
		"worker":         filepath.Join(cfg.Paths.LogDir, "worker.log"),
		"frontend":       filepath.Join(cfg.Paths.LogDir, "frontend.log"),
		cfg.Service.Name: filepath.Join(cfg.Paths.LogDir, cfg.Service.Name+".log"),
	}
	if path, ok := files[source]; ok {
		return path, nil
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return "", fmt.Errorf("unknown log source %q (want one of %s)", source, strings.Join(names, ", "))
}
