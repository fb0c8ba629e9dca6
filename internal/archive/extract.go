package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tessera/internal/faults"
	"tessera/internal/logging"
)

// Format identifies an archive container.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatTarGz
)

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTarGz:
		return "tar.gz"
	default:
		return "unknown"
	}
}

// DetectFormat selects the format from the file extension.
func DetectFormat(path string) Format {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip
	case strings.HasSuffix(lower, ".tgz"), strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".gz"):
		return FormatTarGz
	default:
		return FormatUnknown
	}
}

// Summary counts what an extraction produced.
type Summary struct {
	Files    int
	Dirs     int
	Symlinks int
	Bytes    int64
}

// Extractor writes archive contents below a destination directory.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor returns an Extractor logging through logger.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logging.NewComponentLogger(logger, "archive")}
}

// Extract unpacks archivePath into destDir, creating destDir when missing.
// Cancellation is observed between entries.
func (e *Extractor) Extract(ctx context.Context, archivePath, destDir string) (Summary, error) {
	dest, err := filepath.Abs(destDir)
	if err != nil {
		return Summary{}, faults.Wrap(faults.ErrFilesystem, "", "resolve destination", destDir, err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return Summary{}, faults.Wrap(faults.ErrFilesystem, "", "create destination", dest, err)
	}

	root, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return Summary{}, faults.Wrap(faults.ErrFilesystem, "", "resolve destination", dest, err)
	}

	w := &writer{archive: archivePath, dest: filepath.Clean(dest), root: filepath.Clean(root)}
	switch DetectFormat(archivePath) {
	case FormatZip:
		err = extractZip(ctx, archivePath, w)
	case FormatTarGz:
		err = extractTarGz(ctx, archivePath, w)
	default:
		err = &faults.EntryError{Archive: archivePath, Err: errors.New("unsupported archive format")}
	}
	if err != nil {
		return w.summary, err
	}

	logging.WithContext(ctx, e.logger).Info("archive extracted",
		logging.String("archive", filepath.Base(archivePath)),
		logging.String("destination", dest),
		logging.Int("files", w.summary.Files),
		logging.Int("dirs", w.summary.Dirs),
		logging.Int64("bytes", w.summary.Bytes),
		logging.String(logging.FieldEventType, "archive_extracted"),
	)
	return w.summary, nil
}

// writer materializes entries below dest. It is shared by both formats.
type writer struct {
	archive string
	dest    string
	// root is dest with symlinks resolved; on-disk checks compare against it.
	root    string
	summary Summary
}

func (w *writer) fail(entry string, err error) error {
	return &faults.EntryError{Archive: w.archive, Entry: entry, Err: err}
}

// target joins name onto dest and rejects anything that escapes it, either
// lexically or through a symlink already on disk in one of its parents.
func (w *writer) target(name string) (string, error) {
	rel := filepath.FromSlash(strings.TrimLeft(name, "/"))
	if filepath.VolumeName(rel) != "" || filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute path %q", name)
	}
	joined := filepath.Join(w.dest, rel)
	if !within(w.dest, joined) {
		return "", fmt.Errorf("path %q escapes destination", name)
	}
	if err := w.confine(filepath.Dir(joined)); err != nil {
		return "", fmt.Errorf("path %q: %w", name, err)
	}
	return joined, nil
}

// confine resolves the deepest existing ancestor of path and requires it to
// stay inside the destination. Missing components are created later as plain
// directories.
func (w *writer) confine(path string) error {
	existing := path
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}
	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", existing, err)
	}
	if !within(w.root, resolved) {
		return fmt.Errorf("%s resolves outside destination", existing)
	}
	return nil
}

// resolveLink follows linkTarget from dir one component at a time, expanding
// symlinks that already exist so ".." applies to their real location.
func resolveLink(dir, linkTarget string) (string, error) {
	cur := dir
	target := filepath.FromSlash(linkTarget)
	if filepath.IsAbs(target) {
		cur = filepath.VolumeName(target) + string(os.PathSeparator)
		target = target[len(cur):]
	}
	for _, part := range strings.Split(target, string(os.PathSeparator)) {
		switch part {
		case "", ".":
			continue
		case "..":
			cur = filepath.Dir(cur)
			continue
		}
		next := filepath.Join(cur, part)
		info, err := os.Lstat(next)
		if err != nil || info.Mode()&fs.ModeSymlink == 0 {
			cur = next
			continue
		}
		expanded, err := filepath.EvalSymlinks(next)
		if err != nil {
			return "", err
		}
		cur = expanded
	}
	return filepath.Clean(cur), nil
}

func within(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}

func (w *writer) dir(name string) error {
	path, err := w.target(name)
	if err != nil {
		return w.fail(name, err)
	}
	if err := w.confine(path); err != nil {
		return w.fail(name, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return w.fail(name, err)
	}
	w.summary.Dirs++
	return nil
}

func (w *writer) file(name string, mode fs.FileMode, r io.Reader) error {
	path, err := w.target(name)
	if err != nil {
		return w.fail(name, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return w.fail(name, err)
	}
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	// Replace rather than follow whatever is already at path.
	if info, err := os.Lstat(path); err == nil && !info.Mode().IsRegular() {
		if err := os.RemoveAll(path); err != nil {
			return w.fail(name, err)
		}
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return w.fail(name, err)
	}
	n, copyErr := io.Copy(out, r)
	closeErr := out.Close()
	if copyErr != nil {
		return w.fail(name, copyErr)
	}
	if closeErr != nil {
		return w.fail(name, closeErr)
	}
	if err := os.Chmod(path, perm); err != nil {
		return w.fail(name, err)
	}
	w.summary.Files++
	w.summary.Bytes += n
	return nil
}

// symlink creates name pointing at linkTarget, which must resolve inside dest.
func (w *writer) symlink(name, linkTarget string) error {
	path, err := w.target(name)
	if err != nil {
		return w.fail(name, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return w.fail(name, err)
	}
	parent, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil {
		return w.fail(name, err)
	}
	resolved, err := resolveLink(parent, linkTarget)
	if err != nil {
		return w.fail(name, fmt.Errorf("resolve link target %q: %w", linkTarget, err))
	}
	if !within(w.root, resolved) {
		return w.fail(name, fmt.Errorf("link target %q escapes destination", linkTarget))
	}
	if err := os.RemoveAll(path); err != nil {
		return w.fail(name, err)
	}
	if err := os.Symlink(filepath.FromSlash(linkTarget), path); err != nil {
		return w.fail(name, err)
	}
	w.summary.Symlinks++
	return nil
}

// hardlink links name to an already extracted member.
func (w *writer) hardlink(name, existing string) error {
	path, err := w.target(name)
	if err != nil {
		return w.fail(name, err)
	}
	source, err := w.target(existing)
	if err != nil {
		return w.fail(name, err)
	}
	if err := w.confine(source); err != nil {
		return w.fail(name, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return w.fail(name, err)
	}
	_ = os.Remove(path)
	if err := os.Link(source, path); err != nil {
		return w.fail(name, err)
	}
	w.summary.Files++
	return nil
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
