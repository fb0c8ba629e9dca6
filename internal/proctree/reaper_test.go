package proctree

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"
)

type fakeTable struct {
	mu      sync.Mutex
	records map[int]Record
	// stubborn pids ignore Terminate.
	stubborn   map[int]bool
	terminated []int
	killed     []int
}

func newFakeTable(records ...Record) *fakeTable {
	table := &fakeTable{records: map[int]Record{}, stubborn: map[int]bool{}}
	for _, rec := range records {
		table.records[rec.PID] = rec
	}
	return table
}

func (f *fakeTable) List(context.Context) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Record, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeTable) Terminate(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[pid]; !ok {
		return ErrNoProcess
	}
	f.terminated = append(f.terminated, pid)
	if !f.stubborn[pid] {
		delete(f.records, pid)
	}
	return nil
}

func (f *fakeTable) Kill(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[pid]; !ok {
		return ErrNoProcess
	}
	f.killed = append(f.killed, pid)
	delete(f.records, pid)
	return nil
}

func syntheticTree() []Record {
	return []Record{
		{PID: 100, PPID: 1, Command: "tessera"},
		{PID: 101, PPID: 100, Command: "mongod"},
		{PID: 102, PPID: 100, Command: "python"},
		{PID: 103, PPID: 100, Command: "sh"},
		{PID: 104, PPID: 103, Command: "mongod"},
		{PID: 105, PPID: 103, Command: "python"},
		{PID: 200, PPID: 1, Command: "python"},
		{PID: 201, PPID: 1, Command: "mongod"},
		{PID: 202, PPID: 200, Command: "mongod"},
	}
}

func pids(records []Record) []int {
	out := make([]int, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.PID)
	}
	slices.Sort(out)
	return out
}

func TestSelectInterpretedWorker(t *testing.T) {
	m := Matcher{ServiceName: "mongod", WorkerName: "python", Interpreted: true}
	got := pids(Select(syntheticTree(), 100, m))
	want := []int{101, 102, 104}
	if !slices.Equal(got, want) {
		t.Fatalf("selected %v, want %v", got, want)
	}
}

func TestSelectPackagedWorker(t *testing.T) {
	records := []Record{
		{PID: 10, PPID: 1, Command: "tessera"},
		{PID: 11, PPID: 10, Command: "mongod.exe"},
		{PID: 12, PPID: 10, Command: "RUN_APP.EXE"},
		{PID: 13, PPID: 12, Command: "run_app"},
		{PID: 14, PPID: 10, Command: "run_app_helper"},
		{PID: 15, PPID: 1, Command: "run_app"},
	}
	m := Matcher{ServiceName: "mongod", WorkerName: "run_app"}
	got := pids(Select(records, 10, m))
	want := []int{11, 12, 13}
	if !slices.Equal(got, want) {
		t.Fatalf("selected %v, want %v", got, want)
	}
}

func TestSelectSkipsZombiesAndCycles(t *testing.T) {
	records := []Record{
		{PID: 1, PPID: 1, Command: "init"},
		{PID: 10, PPID: 1, Command: "tessera"},
		{PID: 11, PPID: 10, Command: "mongod", Zombie: true},
		{PID: 12, PPID: 10, Command: "mongod"},
	}
	got := pids(Select(records, 10, Matcher{ServiceName: "mongod"}))
	if !slices.Equal(got, []int{12}) {
		t.Fatalf("selected %v, want [12]", got)
	}
}

func TestReapTreeTerminatesMatches(t *testing.T) {
	table := newFakeTable(syntheticTree()...)
	reaper := NewReaper(table, table, time.Millisecond, 50*time.Millisecond, nil)

	report := reaper.ReapTree(context.Background(), 100, Matcher{ServiceName: "mongod", WorkerName: "python", Interpreted: true})

	if got := pids(report.Matched); !slices.Equal(got, []int{101, 102, 104}) {
		t.Fatalf("matched %v", got)
	}
	terminated := slices.Clone(table.terminated)
	slices.Sort(terminated)
	if !slices.Equal(terminated, []int{101, 102, 104}) {
		t.Fatalf("terminated %v", terminated)
	}
	if len(table.killed) != 0 || len(report.Remaining) != 0 {
		t.Fatalf("expected clean exit, killed=%v remaining=%v", table.killed, report.Remaining)
	}
	for _, pid := range []int{100, 103, 105, 200, 201, 202} {
		if _, ok := table.records[pid]; !ok {
			t.Fatalf("pid %d should not have been touched", pid)
		}
	}
}

func TestReapTreeEscalatesAfterGrace(t *testing.T) {
	table := newFakeTable(syntheticTree()...)
	table.stubborn[101] = true
	reaper := NewReaper(table, table, time.Millisecond, 20*time.Millisecond, nil)

	start := time.Now()
	report := reaper.ReapTree(context.Background(), 100, Matcher{ServiceName: "mongod"})
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("escalated before grace elapsed: %v", elapsed)
	}
	if !slices.Equal(report.Killed, []int{101}) {
		t.Fatalf("killed %v, want [101]", report.Killed)
	}
	if len(report.Remaining) != 0 {
		t.Fatalf("remaining %v", report.Remaining)
	}
}

func TestReapTreeNothingToDo(t *testing.T) {
	table := newFakeTable(Record{PID: 100, PPID: 1, Command: "tessera"})
	reaper := NewReaper(table, table, time.Millisecond, time.Millisecond, nil)
	report := reaper.ReapTree(context.Background(), 100, Matcher{ServiceName: "mongod"})
	if len(report.Matched) != 0 || len(table.terminated) != 0 {
		t.Fatalf("unexpected reap: %+v", report)
	}
}

func TestMatcherIgnoresEmptyNames(t *testing.T) {
	m := Matcher{}
	if m.Match(Record{PID: 2, PPID: 1, Command: "mongod"}, 1) {
		t.Fatal("empty matcher matched")
	}
}
