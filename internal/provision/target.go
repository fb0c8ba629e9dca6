package provision

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"tessera/internal/config"
	"tessera/internal/faults"
)

// Target describes one installable resource.
type Target struct {
	ID          string
	CheckPath   string
	URL         string
	ArchivePath string
	// ExtractDir receives the archive contents.
	ExtractDir string
	// ExtractedName is the top-level directory the archive unpacks to inside ExtractDir.
	ExtractedName string
	InstallPath   string
}

// needsRename reports whether the unpacked directory must be moved to InstallPath.
func (t Target) needsRename() bool {
	if t.ExtractedName == "" {
		return false
	}
	return filepath.Clean(filepath.Join(t.ExtractDir, t.ExtractedName)) != filepath.Clean(t.InstallPath)
}

// ServiceTarget builds the target for the database distribution on goos.
func ServiceTarget(cfg *config.Config, goos string) (Target, error) {
	id := cfg.Service.InstallDir
	rawURL, err := cfg.ServiceDownloadURL(goos)
	if err != nil {
		return Target{}, faults.Tag(id, err)
	}
	archiveName, err := archiveBase(rawURL)
	if err != nil {
		return Target{}, faults.Tag(id, err)
	}
	return Target{
		ID:            id,
		CheckPath:     cfg.ServiceBinaryPath(goos),
		URL:           rawURL,
		ArchivePath:   filepath.Join(cfg.Paths.Home, archiveName),
		ExtractDir:    cfg.Paths.Home,
		ExtractedName: trimArchiveExt(archiveName),
		InstallPath:   cfg.ServiceInstallPath(),
	}, nil
}

// BundleTarget builds the target for a data bundle.
func BundleTarget(cfg *config.Config, b config.Bundle) (Target, error) {
	rawURL := b.BundleURL()
	archiveName, err := archiveBase(rawURL)
	if err != nil {
		return Target{}, faults.Tag(b.ID, err)
	}
	modelDir := cfg.BundleModelDir(b)
	return Target{
		ID:            b.ID,
		CheckPath:     cfg.BundleCheckPath(b),
		URL:           rawURL,
		ArchivePath:   filepath.Join(modelDir, archiveName),
		ExtractDir:    modelDir,
		ExtractedName: b.RootName(),
		InstallPath:   filepath.Join(modelDir, b.Name()),
	}, nil
}

func archiveBase(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", faults.Wrap(faults.ErrNetwork, "", "parse url", rawURL, err)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return "", faults.Wrap(faults.ErrNetwork, "", "parse url", fmt.Sprintf("no file name in %q", rawURL), nil)
	}
	return base, nil
}

// trimArchiveExt strips .zip, .tgz, .tar.gz or .gz.
func trimArchiveExt(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range []string{".tar.gz", ".tgz", ".zip", ".gz"} {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}
