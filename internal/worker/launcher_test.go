package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tessera/internal/faults"
	"tessera/internal/testsupport"
)

func waitForFile(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			return string(data)
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s never written", path)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestResolveSourceMode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	plan := Resolve(cfg, "linux")
	if plan.Mode != ModeSource {
		t.Fatalf("mode = %s, want source", plan.Mode)
	}
	if plan.Program != "python" {
		t.Fatalf("program = %q", plan.Program)
	}
	wantScript := filepath.Join(cfg.Paths.AppDir, "tisapi", "run_app.py")
	if plan.Script != wantScript || len(plan.Args()) != 1 || plan.Args()[0] != wantScript {
		t.Fatalf("script = %q args = %v", plan.Script, plan.Args())
	}
	m := plan.Matcher("mongod")
	if !m.Interpreted || m.WorkerName != "python" || m.ServiceName != "mongod" {
		t.Fatalf("unexpected matcher %+v", m)
	}
}

func TestResolvePackagedMode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(filepath.Join(cfg.Paths.AppDir, "dist-python"), 0o755); err != nil {
		t.Fatal(err)
	}
	plan := Resolve(cfg, "windows")
	if plan.Mode != ModePackaged {
		t.Fatalf("mode = %s, want packaged", plan.Mode)
	}
	if filepath.Base(plan.Program) != "run_app.exe" {
		t.Fatalf("program = %q", plan.Program)
	}
	if len(plan.Args()) != 0 {
		t.Fatalf("packaged worker takes no args, got %v", plan.Args())
	}
	m := plan.Matcher("mongod")
	if m.Interpreted || m.WorkerName != "run_app.exe" {
		t.Fatalf("unexpected matcher %+v", m)
	}
}

func TestLaunchPackagedWorker(t *testing.T) {
	testsupport.RequireShell(t)
	out := filepath.Join(t.TempDir(), "env.txt")
	cfg := testsupport.NewConfig(t, testsupport.WithPackagedWorker(`echo "$TESSERA_HOME $ADMIN_INSTANCE $#" > `+out+`
exec sleep 30`))

	launcher := NewLauncher(Resolve(cfg, "linux"), Env(cfg.Paths.Home), nil, nil)
	handle, err := launcher.Launch(context.Background())
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	t.Cleanup(func() { _ = launcher.Stop(context.Background(), time.Second) })

	got := strings.TrimSpace(waitForFile(t, out))
	if want := cfg.Paths.Home + " true 0"; got != want {
		t.Fatalf("worker saw %q, want %q", got, want)
	}
	if !launcher.Running() {
		t.Fatal("worker should be running")
	}
	again, err := launcher.Launch(context.Background())
	if err != nil || again != handle {
		t.Fatalf("relaunch of a live worker should be a no-op, got %v, %v", again, err)
	}
}

func TestLaunchSourceWorker(t *testing.T) {
	testsupport.RequireShell(t)
	cfg := testsupport.NewConfig(t)
	cfg.Worker.Interpreter = "sh"
	out := filepath.Join(t.TempDir(), "ran.txt")
	script := filepath.Join(cfg.Paths.AppDir, "tisapi", "run_app.py")
	testsupport.WriteStubExecutable(t, script, `pwd > `+out)

	launcher := NewLauncher(Resolve(cfg, "linux"), nil, nil, nil)
	handle, err := launcher.Launch(context.Background())
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if got := strings.TrimSpace(waitForFile(t, out)); got != cfg.Paths.AppDir {
		resolved, _ := filepath.EvalSymlinks(cfg.Paths.AppDir)
		if got != resolved {
			t.Fatalf("worker ran in %q, want %q", got, cfg.Paths.AppDir)
		}
	}
	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit")
	}
	if launcher.Running() {
		t.Fatal("exited worker reported as running")
	}
}

func TestLaunchMissingInterpreter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Worker.Interpreter = filepath.Join(t.TempDir(), "no-python")
	launcher := NewLauncher(Resolve(cfg, "linux"), nil, nil, nil)
	if _, err := launcher.Launch(context.Background()); !errors.Is(err, faults.ErrProcessSpawn) {
		t.Fatalf("expected ErrProcessSpawn, got %v", err)
	}
}
