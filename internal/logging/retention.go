package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const rotatedStamp = "20060102T150405"

// RotateIfLarger renames path to <name>-<stamp><ext> when it is larger than
// maxBytes and returns the new name. Missing files and maxBytes <= 0 are
// no-ops.
func RotateIfLarger(path string, maxBytes int64, now time.Time) (string, error) {
	if maxBytes <= 0 {
		return "", nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() || info.Size() <= maxBytes {
		return "", nil
	}
	ext := filepath.Ext(path)
	rotated := strings.TrimSuffix(path, ext) + "-" + now.Format(rotatedStamp) + ext
	if err := os.Rename(path, rotated); err != nil {
		return "", fmt.Errorf("rotate log file: %w", err)
	}
	return rotated, nil
}

// PruneRotated removes rotated logs in dir whose modification time is more
// than retentionDays before now. Live logs are never touched.
func PruneRotated(logger *slog.Logger, dir string, retentionDays int, now time.Time) []string {
	if retentionDays <= 0 || strings.TrimSpace(dir) == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	cutoff := now.AddDate(0, 0, -retentionDays)

	var removed []string
	for _, entry := range entries {
		if entry.IsDir() || !isRotated(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		fullPath := filepath.Join(dir, entry.Name())
		if err := os.Remove(fullPath); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", fullPath),
				Error(err),
				String(FieldErrorHint, "check permissions on the log directory"),
			)
			continue
		}
		removed = append(removed, fullPath)
		if logger != nil {
			logger.Info("log pruned", String("path", fullPath), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}

// isRotated matches names produced by RotateIfLarger.
func isRotated(name string) bool {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return false
	}
	_, err := time.Parse(rotatedStamp, base[idx+1:])
	return err == nil
}
