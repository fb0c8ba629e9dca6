package provision

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"tessera/internal/archive"
	"tessera/internal/download"
	"tessera/internal/faults"
	"tessera/internal/ledger"
	"tessera/internal/logging"
)

// Fetcher downloads a URL to a file.
type Fetcher interface {
	Fetch(ctx context.Context, url, destPath string) (download.Result, error)
}

// Unpacker extracts an archive into a directory.
type Unpacker interface {
	Extract(ctx context.Context, archivePath, destDir string) (archive.Summary, error)
}

// Recorder stores completed installs.
type Recorder interface {
	Record(ctx context.Context, in ledger.Install) error
}

// Outcome reports what Ensure did.
type Outcome struct {
	AlreadyPresent bool
	Downloaded     bool
	Bytes          int64
	Files          int
}

// Provisioner ensures targets are installed.
type Provisioner struct {
	fetcher  Fetcher
	unpacker Unpacker
	recorder Recorder
	logger   *slog.Logger
}

// New returns a Provisioner. recorder may be nil.
func New(fetcher Fetcher, unpacker Unpacker, recorder Recorder, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		fetcher:  fetcher,
		unpacker: unpacker,
		recorder: recorder,
		logger:   logging.NewComponentLogger(logger, "provision"),
	}
}

// Satisfied reports whether the target's check path exists.
func Satisfied(t Target) (bool, error) {
	_, err := os.Stat(t.CheckPath)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, faults.Tag(t.ID, faults.Wrap(faults.ErrFilesystem, "", "stat", t.CheckPath, err))
}

// Ensure installs t unless it is already satisfied. Download precedes
// extraction, which precedes the rename.
func (p *Provisioner) Ensure(ctx context.Context, t Target) (Outcome, error) {
	ctx = logging.WithResource(ctx, t.ID)
	logger := logging.WithContext(ctx, p.logger)

	ok, err := Satisfied(t)
	if err != nil {
		return Outcome{}, err
	}
	if ok {
		logger.Debug("resource already installed", logging.String("path", t.CheckPath))
		return Outcome{AlreadyPresent: true}, nil
	}

	var outcome Outcome
	if _, err := os.Stat(t.ArchivePath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return outcome, faults.Tag(t.ID, faults.Wrap(faults.ErrFilesystem, "", "stat", t.ArchivePath, err))
		}
		result, err := p.fetcher.Fetch(ctx, t.URL, t.ArchivePath)
		if err != nil {
			return outcome, faults.Tag(t.ID, err)
		}
		outcome.Downloaded = true
		outcome.Bytes = result.Bytes
	} else {
		logger.Info("reusing downloaded archive", logging.String("archive", t.ArchivePath))
	}

	summary, err := p.unpacker.Extract(ctx, t.ArchivePath, t.ExtractDir)
	if err != nil {
		return outcome, faults.Tag(t.ID, err)
	}
	outcome.Files = summary.Files

	if t.needsRename() {
		if err := moveInto(filepath.Join(t.ExtractDir, t.ExtractedName), t.InstallPath); err != nil {
			return outcome, faults.Tag(t.ID, err)
		}
	}

	ok, err = Satisfied(t)
	if err != nil {
		return outcome, err
	}
	if !ok {
		return outcome, faults.Tag(t.ID, faults.Wrap(faults.ErrArchive, "", "verify install",
			fmt.Sprintf("%s missing after extracting %s", t.CheckPath, filepath.Base(t.ArchivePath)), nil))
	}

	if p.recorder != nil {
		if info, statErr := os.Stat(t.ArchivePath); statErr == nil && outcome.Bytes == 0 {
			outcome.Bytes = info.Size()
		}
		rec := ledger.Install{
			Resource:     t.ID,
			URL:          t.URL,
			ArchivePath:  t.ArchivePath,
			ArchiveBytes: outcome.Bytes,
			InstallPath:  t.InstallPath,
		}
		if err := p.recorder.Record(ctx, rec); err != nil {
			logging.WarnWithContext(logger, "install ledger write failed", "ledger_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "install succeeded; status history will be incomplete"),
			)
		}
	}

	logger.Info("resource installed",
		logging.String("path", t.InstallPath),
		logging.Bool("downloaded", outcome.Downloaded),
		logging.Int("files", outcome.Files),
		logging.String(logging.FieldEventType, "resource_installed"),
	)
	return outcome, nil
}

// moveInto renames src to dst, replacing a stale dst left by an earlier partial install.
func moveInto(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return faults.Wrap(faults.ErrArchive, "", "locate extracted directory", src, err)
	}
	if err := os.RemoveAll(dst); err != nil {
		return faults.Wrap(faults.ErrFilesystem, "", "remove stale install", dst, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return faults.Wrap(faults.ErrFilesystem, "", "create install parent", filepath.Dir(dst), err)
	}
	if err := os.Rename(src, dst); err != nil {
		return faults.Wrap(faults.ErrFilesystem, "", "rename", fmt.Sprintf("%s -> %s", src, dst), err)
	}
	return nil
}
