package testsupport

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"tessera/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Bundles are cleared and the control server is disabled unless options say otherwise.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.Home = filepath.Join(base, "home")
	cfgVal.Paths.AppDir = filepath.Join(base, "app")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "state", "logs")
	cfgVal.Bundles = nil
	cfgVal.Surface.Bind = ""
	cfgVal.Service.VerifyAttempts = 1
	cfgVal.Service.VerifyIntervalMS = 0
	cfgVal.Shutdown.GraceMS = 200

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithBundles replaces the configured data bundles.
func WithBundles(bundles ...config.Bundle) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Bundles = append([]config.Bundle(nil), bundles...)
	}
}

// WithServiceInstalled writes a stub service binary at the provisioned path.
func WithServiceInstalled() ConfigOption {
	return func(b *configBuilder) {
		WriteStubExecutable(b.t, b.cfg.ServiceBinaryPath(runtime.GOOS), "exit 0")
	}
}

// WithPackagedWorker writes a stub worker executable in the packaged layout.
func WithPackagedWorker(script string) ConfigOption {
	return func(b *configBuilder) {
		name := config.ExecutableName(runtime.GOOS, b.cfg.Worker.Module)
		WriteStubExecutable(b.t, filepath.Join(b.cfg.Paths.AppDir, b.cfg.Worker.DistDir, name), script)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteStubExecutable(b.t, filepath.Join(binDir, name), "exit 0")
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.Home)
}

// WriteStubExecutable writes a /bin/sh script with the given body.
func WriteStubExecutable(t testing.TB, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	script := []byte("#!/bin/sh\n" + body + "\n")
	if err := os.WriteFile(path, script, 0o755); err != nil {
		t.Fatalf("write stub %s: %v", path, err)
	}
}

// RequireShell skips tests that exec stub scripts on platforms without /bin/sh.
func RequireShell(t testing.TB) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub executables require /bin/sh")
	}
}
