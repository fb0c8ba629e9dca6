package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"

	"tessera/internal/control"
	"tessera/internal/testsupport"
)

type cliEnv struct {
	base       string
	home       string
	stateDir   string
	configPath string
}

// newCLIEnv writes a config under a temp HOME. overrides are merged into the
// top-level tables.
func newCLIEnv(t *testing.T, overrides map[string]any) *cliEnv {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "user"))
	t.Setenv("USERPROFILE", filepath.Join(base, "user"))

	env := &cliEnv{
		base:       base,
		home:       filepath.Join(base, "home"),
		stateDir:   filepath.Join(base, "state"),
		configPath: filepath.Join(base, "config.toml"),
	}
	doc := map[string]any{
		"paths": map[string]any{
			"home":      env.home,
			"app_dir":   filepath.Join(base, "app"),
			"state_dir": env.stateDir,
		},
		"surface": map[string]any{"bind": "", "app_name": "Tesserae"},
		"shutdown": map[string]any{"poll_interval_ms": 10, "grace_ms": 200},
	}
	for k, v := range overrides {
		if table, ok := v.(map[string]any); ok {
			if existing, ok := doc[k].(map[string]any); ok {
				for kk, vv := range table {
					existing[kk] = vv
				}
				continue
			}
		}
		doc[k] = v
	}
	data, err := toml.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(env.configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}

func serveBundle(t *testing.T, name string, entries []testsupport.ArchiveEntry) string {
	t.Helper()
	archivePath := filepath.Join(t.TempDir(), name)
	testsupport.WriteTarGz(t, archivePath, entries)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, archivePath)
	}))
	t.Cleanup(server.Close)
	return server.URL + "/" + name
}

func TestProvisionInstallsBundleOnce(t *testing.T) {
	url := serveBundle(t, "master.tar.gz", []testsupport.ArchiveEntry{
		{Name: "lat_models_cltk-master/README.md", Body: "latin"},
		{Name: "lat_models_cltk-master/lemmata/lat.txt", Body: "amo"},
	})
	env := newCLIEnv(t, map[string]any{
		"bundles": []map[string]any{
			{"id": "lat", "suffix": "models_cltk", "url": url, "root": "{id}_{suffix}-master"},
		},
	})

	out, _, err := runCLI(t, []string{"provision", "--skip-service"}, env.configPath)
	if err != nil {
		t.Fatalf("provision: %v\n%s", err, out)
	}
	requireContains(t, out, "Ensure lat is installed")
	requireContains(t, out, "installed")
	installed := filepath.Join(env.home, "lat", "model", "lat_models_cltk", "lemmata", "lat.txt")
	if _, err := os.Stat(installed); err != nil {
		t.Fatalf("bundle not installed: %v", err)
	}

	out, _, err = runCLI(t, []string{"provision", "--skip-service"}, env.configPath)
	if err != nil {
		t.Fatalf("second provision: %v", err)
	}
	requireContains(t, out, "present")

	out, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Launcher: not running")
	requireContains(t, out, "Data: lat")
	requireContains(t, out, "Installs")
}

func TestProvisionRejectsUnknownBundle(t *testing.T) {
	env := newCLIEnv(t, nil)
	_, _, err := runCLI(t, []string{"provision", "--skip-service", "--bundle", "xx"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), `unknown bundle "xx"`) {
		t.Fatalf("expected unknown bundle error, got %v", err)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := newCLIEnv(t, nil)
	target := filepath.Join(env.base, "fresh", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestConfigShowMasksPassword(t *testing.T) {
	env := newCLIEnv(t, nil)
	if err := os.MkdirAll(env.home, 0o755); err != nil {
		t.Fatal(err)
	}
	override := "[MONGO]\nport = 40500\npassword = hunter2\n"
	if err := os.WriteFile(filepath.Join(env.home, "tesserae.cfg"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "40500")
	requireContains(t, out, "********")
	if strings.Contains(out, "hunter2") {
		t.Fatalf("password leaked:\n%s", out)
	}
}

func TestReapDryRunWithoutDescendants(t *testing.T) {
	env := newCLIEnv(t, nil)
	out, _, err := runCLI(t, []string{"reap", "--root", "999999999", "--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	requireContains(t, out, "No matching processes")
}

func TestLaunchFailureReportsOnce(t *testing.T) {
	env := newCLIEnv(t, nil)
	if err := os.WriteFile(env.home, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"launch", "--linger", "never"}, env.configPath)
	if err == nil {
		t.Fatal("expected launch to fail")
	}
	requireContains(t, out, "Ensure application directory exists")
	requireContains(t, out, "Tesserae failed to initialize")
	requireContains(t, out, "You may close this window to end Tesserae")
	if strings.Count(out, "failed to initialize") != 1 {
		t.Fatalf("failure reported more than once:\n%s", out)
	}
}

type readyController struct {
	mu        sync.Mutex
	activated int
}

func (c *readyController) Activate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activated++
	return nil
}

func (c *readyController) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activated
}

func (c *readyController) Status() control.Status {
	return control.Status{State: "ready"}
}

func TestSecondLaunchActivatesRunningInstance(t *testing.T) {
	ctrl := &readyController{}
	server := control.NewServer("127.0.0.1:0", nil, ctrl, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := server.Start(ctx); err != nil {
		t.Fatalf("start control server: %v", err)
	}
	defer server.Stop()

	env := newCLIEnv(t, map[string]any{
		"surface": map[string]any{"bind": server.Addr()},
	})
	if err := os.MkdirAll(env.stateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	held := flock.New(filepath.Join(env.stateDir, "tessera.lock"))
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("hold lock: locked=%v err=%v", locked, err)
	}
	defer held.Unlock()

	out, _, err := runCLI(t, nil, env.configPath)
	if err != nil {
		t.Fatalf("second launch: %v", err)
	}
	requireContains(t, out, "already running; activated (state: ready)")
	if ctrl.calls() != 1 {
		t.Fatalf("activate calls = %d", ctrl.calls())
	}
}

func TestStateLabel(t *testing.T) {
	if got := stateLabel("verifying_service"); got != "Verifying Service" {
		t.Fatalf("stateLabel = %q", got)
	}
	if got := stateLabel(""); got != "Unknown" {
		t.Fatalf("stateLabel empty = %q", got)
	}
}

func TestLogsFiltersBySession(t *testing.T) {
	env := newCLIEnv(t, nil)
	logDir := filepath.Join(env.stateDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := `{"msg":"first","session_id":"aaa"}` + "\n" +
		`{"msg":"second","session_id":"bbb"}` + "\n"
	if err := os.WriteFile(filepath.Join(logDir, "tessera.log"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"logs", "--session", "bbb"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Fatalf("unexpected logs output:\n%s", out)
	}

	if _, _, err := runCLI(t, []string{"logs", "--source", "nope"}, env.configPath); err == nil {
		t.Fatal("expected unknown source error")
	}
}
