package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"tessera/internal/faults"
)

// ExecutableName appends the platform executable suffix to name.
func ExecutableName(goos, name string) string {
	if goos == "windows" && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name + ".exe"
	}
	return name
}

// ServiceInstallPath is the final install directory of the service distribution.
func (c *Config) ServiceInstallPath() string {
	return filepath.Join(c.Paths.Home, c.Service.InstallDir)
}

// ServiceBinaryPath is the service executable; its presence marks the service as provisioned.
func (c *Config) ServiceBinaryPath(goos string) string {
	return filepath.Join(c.ServiceInstallPath(), "bin", ExecutableName(goos, c.Service.Name))
}

// ServiceDataPath is the service's working data directory.
func (c *Config) ServiceDataPath() string {
	return filepath.Join(c.Paths.Home, c.Service.DataDir)
}

// ServiceDownloadURL selects the service archive for goos.
func (c *Config) ServiceDownloadURL(goos string) (string, error) {
	url, ok := c.Service.Downloads[strings.ToLower(goos)]
	if !ok || url == "" {
		return "", faults.Wrap(faults.ErrUnsupportedPlatform, c.Service.Name, "select download", fmt.Sprintf("no service archive for %q", goos), nil)
	}
	return url, nil
}

// BundleCheckPath is the path whose presence marks a bundle as provisioned.
func (c *Config) BundleCheckPath(b Bundle) string {
	return filepath.Join(c.BundleModelDir(b), b.Name())
}

// BundleModelDir is where a bundle archive is downloaded and extracted.
func (c *Config) BundleModelDir(b Bundle) string {
	return filepath.Join(c.Paths.Home, b.ID, "model")
}

// Name is the installed directory name, <id>_<suffix>.
func (b Bundle) Name() string {
	return b.ID + "_" + b.Suffix
}

// BundleURL expands the placeholders in URL.
func (b Bundle) BundleURL() string {
	return b.expand(b.URL)
}

// RootName expands the placeholders in Root, defaulting to Name.
func (b Bundle) RootName() string {
	if b.Root == "" {
		return b.Name()
	}
	return b.expand(b.Root)
}

func (b Bundle) expand(value string) string {
	return strings.NewReplacer("{id}", b.ID, "{suffix}", b.Suffix).Replace(value)
}

// HostOS reports the platform identifier used for download selection.
func HostOS() string {
	return runtime.GOOS
}
