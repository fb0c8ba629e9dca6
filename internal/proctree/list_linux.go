//go:build linux

package proctree

import (
	"context"
	"fmt"

	"github.com/prometheus/procfs"
)

type procfsLister struct{}

// SystemLister enumerates processes from /proc.
func SystemLister() Lister { return procfsLister{} }

func (procfsLister) List(ctx context.Context) ([]Record, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	procs, err := fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	records := make([]Record, 0, len(procs))
	for _, proc := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stat, err := proc.Stat()
		if err != nil {
			// Exited between listing and reading.
			continue
		}
		records = append(records, Record{
			PID:     stat.PID,
			PPID:    stat.PPID,
			Command: stat.Comm,
			Zombie:  stat.State == "Z",
		})
	}
	return records, nil
}
