package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"tessera/internal/config"
	"tessera/internal/faults"
)

func TestLoadDefaultConfigExpandsHome(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("USERPROFILE", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.Home != filepath.Join(tempHome, "tesserae") {
		t.Fatalf("unexpected home: %q", cfg.Paths.Home)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, ".local", "share", "tessera") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Paths.LogDir != filepath.Join(tempHome, ".local", "share", "tessera", "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.Service.Port != "40404" {
		t.Fatalf("unexpected default port: %q", cfg.Service.Port)
	}
	if cfg.Paths.AppDir == "" {
		t.Fatal("expected app dir to default to executable directory")
	}
	if cfg.Shutdown.PollIntervalMS != 30 {
		t.Fatalf("unexpected poll interval: %d", cfg.Shutdown.PollIntervalMS)
	}
	if len(cfg.Bundles) != 2 {
		t.Fatalf("expected default bundles, got %d", len(cfg.Bundles))
	}
}

func TestLoadCustomConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("USERPROFILE", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"home":    "~/custom/home",
			"app_dir": "~/app",
		},
		"service": map[string]any{
			"port":            "41000",
			"probe":           "TCP",
			"verify_attempts": 1,
		},
		"logging": map[string]any{
			"format": "JSON",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.Home != filepath.Join(tempHome, "custom", "home") {
		t.Fatalf("unexpected home: %q", cfg.Paths.Home)
	}
	if cfg.Paths.AppDir != filepath.Join(tempHome, "app") {
		t.Fatalf("unexpected app dir: %q", cfg.Paths.AppDir)
	}
	if cfg.Service.Probe != config.ProbeTCP {
		t.Fatalf("expected probe to normalize to tcp, got %q", cfg.Service.Probe)
	}
	if cfg.Service.VerifyAttempts != 1 {
		t.Fatalf("unexpected verify attempts: %d", cfg.Service.VerifyAttempts)
	}
	if cfg.Service.Name != "mongod" {
		t.Fatalf("expected default service name to survive, got %q", cfg.Service.Name)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging format: %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := config.Default()
	cfg.Service.Port = "not-a-port"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for bad port")
	}
	cfg.Service.Port = "70000"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for out of range port")
	}
}

func TestValidateRejectsUnknownProbe(t *testing.T) {
	cfg := config.Default()
	cfg.Service.Probe = "http"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown probe")
	}
}

func TestServiceDownloadURLSelectsPlatform(t *testing.T) {
	cfg := config.Default()
	for _, goos := range []string{"windows", "darwin", "linux"} {
		url, err := cfg.ServiceDownloadURL(goos)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", goos, err)
		}
		if url == "" {
			t.Fatalf("%s: empty url", goos)
		}
	}
	if _, err := cfg.ServiceDownloadURL("plan9"); !errors.Is(err, faults.ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
}

func TestServiceBinaryPathAddsExeOnWindows(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.Home = filepath.Join("root", "home")
	if got := cfg.ServiceBinaryPath("windows"); filepath.Base(got) != "mongod.exe" {
		t.Fatalf("unexpected windows binary: %q", got)
	}
	want := filepath.Join("root", "home", "mongodb", "bin", "mongod")
	if got := cfg.ServiceBinaryPath("linux"); got != want {
		t.Fatalf("unexpected linux binary: got %q want %q", got, want)
	}
}

func TestBundlePaths(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.Home = filepath.Join("root", "home")
	b := cfg.Bundles[0]
	want := filepath.Join("root", "home", "lat", "model", "lat_models_cltk")
	if got := cfg.BundleCheckPath(b); got != want {
		t.Fatalf("unexpected check path: got %q want %q", got, want)
	}
	if got := b.BundleURL(); got != "https://github.com/cltk/lat_models_cltk/archive/master.tar.gz" {
		t.Fatalf("unexpected bundle url: %q", got)
	}
	if got := b.RootName(); got != "lat_models_cltk-master" {
		t.Fatalf("unexpected bundle root: %q", got)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("USERPROFILE", tempHome)

	path := filepath.Join(tempHome, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Surface.AppName != "Tesserae" {
		t.Fatalf("unexpected app name: %q", cfg.Surface.AppName)
	}
}
