package proctree

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// ErrNoProcess is returned by a Signaler when the pid is already gone.
var ErrNoProcess = errors.New("no such process")

// Record is one row of the OS process table.
type Record struct {
	PID     int
	PPID    int
	Command string
	Zombie  bool
}

// Lister enumerates live processes.
type Lister interface {
	List(ctx context.Context) ([]Record, error)
}

// Signaler delivers termination requests.
type Signaler interface {
	Terminate(pid int) error
	Kill(pid int) error
}

// Matcher selects which descendants belong to the launcher.
type Matcher struct {
	// ServiceName matches any descendant whose command contains it.
	ServiceName string
	// WorkerName is the worker's command; in interpreted mode it is the interpreter.
	WorkerName string
	// Interpreted restricts worker matches to direct children of the root.
	Interpreted bool
}

// Match reports whether rec belongs to the launcher given the tree root.
func (m Matcher) Match(rec Record, root int) bool {
	command := normalizeCommand(rec.Command)
	if service := normalizeCommand(m.ServiceName); service != "" && strings.Contains(command, service) {
		return true
	}
	worker := normalizeCommand(m.WorkerName)
	if worker == "" || command != worker {
		return false
	}
	if m.Interpreted {
		return rec.PPID == root
	}
	return true
}

// normalizeCommand lowercases the base name and strips a Windows .exe suffix.
func normalizeCommand(command string) string {
	command = strings.TrimSpace(command)
	if command == "" {
		return ""
	}
	base := strings.ToLower(filepath.Base(strings.ReplaceAll(command, "\\", "/")))
	return strings.TrimSuffix(base, ".exe")
}

// Descendants returns every record below root, excluding root itself.
func Descendants(records []Record, root int) []Record {
	children := make(map[int][]Record, len(records))
	for _, rec := range records {
		if rec.PID == rec.PPID {
			continue
		}
		children[rec.PPID] = append(children[rec.PPID], rec)
	}
	var out []Record
	seen := map[int]bool{root: true}
	queue := []int{root}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		for _, child := range children[pid] {
			if seen[child.PID] {
				continue
			}
			seen[child.PID] = true
			out = append(out, child)
			queue = append(queue, child.PID)
		}
	}
	return out
}

// Select returns the live descendants of root accepted by m.
func Select(records []Record, root int, m Matcher) []Record {
	var out []Record
	for _, rec := range Descendants(records, root) {
		if rec.Zombie {
			continue
		}
		if m.Match(rec, root) {
			out = append(out, rec)
		}
	}
	return out
}
