package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"tessera/internal/config"
)

func TestLoadServiceConfigOverridesPort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tesserae.cfg")
	body := "[MONGO]\nport = 50505\nreplica = rs0\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	values, found, err := config.LoadServiceConfig(path, "MONGO", map[string]string{"port": "40404", "db": "tesserae"})
	if err != nil {
		t.Fatalf("LoadServiceConfig: %v", err)
	}
	if !found {
		t.Fatal("expected override file to be found")
	}
	if values["port"] != "50505" {
		t.Fatalf("expected port 50505, got %q", values["port"])
	}
	if values["db"] != "tesserae" {
		t.Fatalf("expected default db to survive, got %q", values["db"])
	}
	if values["replica"] != "rs0" {
		t.Fatalf("expected unknown key to pass through, got %q", values["replica"])
	}
}

func TestLoadServiceConfigMissingFileUsesDefaults(t *testing.T) {
	values, found, err := config.LoadServiceConfig(filepath.Join(t.TempDir(), "absent.cfg"), "MONGO", map[string]string{"port": "40404"})
	if err != nil {
		t.Fatalf("LoadServiceConfig: %v", err)
	}
	if found {
		t.Fatal("expected file to be reported missing")
	}
	if values["port"] != "40404" {
		t.Fatalf("unexpected port: %q", values["port"])
	}
}

func TestBuildServiceConfig(t *testing.T) {
	home := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Home = home
	if err := os.WriteFile(cfg.ServiceFilePath(), []byte("[mongo]\nPORT=50505\n"), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	svc, err := cfg.BuildServiceConfig("linux")
	if err != nil {
		t.Fatalf("BuildServiceConfig: %v", err)
	}
	if svc.Port() != "50505" {
		t.Fatalf("expected merged port, got %q", svc.Port())
	}
	if svc.DataDir != filepath.Join(home, "tessdb") {
		t.Fatalf("unexpected data dir: %q", svc.DataDir)
	}
	if svc.Executable != filepath.Join(home, "mongodb", "bin", "mongod") {
		t.Fatalf("unexpected executable: %q", svc.Executable)
	}
}

func TestBuildServiceConfigRejectsBadPort(t *testing.T) {
	home := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Home = home
	if err := os.WriteFile(cfg.ServiceFilePath(), []byte("[MONGO]\nport = abc\n"), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	if _, err := cfg.BuildServiceConfig("linux"); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}
