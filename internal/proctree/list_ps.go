//go:build !linux && !windows

package proctree

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type psLister struct{}

// SystemLister enumerates processes through ps(1).
func SystemLister() Lister { return psLister{} }

func (psLister) List(ctx context.Context) ([]Record, error) {
	out, err := exec.CommandContext(ctx, "ps", "-axo", "pid=,ppid=,stat=,comm=").Output()
	if err != nil {
		return nil, fmt.Errorf("run ps: %w", err)
	}
	return parsePS(out), nil
}

// parsePS reads "pid ppid stat comm" rows; comm may contain spaces.
func parsePS(out []byte) []Record {
	var records []Record
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		ppid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		records = append(records, Record{
			PID:     pid,
			PPID:    ppid,
			Command: strings.Join(fields[3:], " "),
			Zombie:  strings.HasPrefix(fields[2], "Z"),
		})
	}
	return records
}
