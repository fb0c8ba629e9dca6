package archive

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"

	"tessera/internal/faults"
)

// maxLinkTarget bounds how much of a zip symlink entry is read as its target.
const maxLinkTarget = 4096

func extractZip(ctx context.Context, archivePath string, w *writer) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return &faults.EntryError{Archive: archivePath, Err: err}
	}
	defer reader.Close()

	for _, file := range reader.File {
		if err := checkContext(ctx); err != nil {
			return err
		}
		if err := extractZipEntry(file, w); err != nil {
			return err
		}
	}
	return nil
}

// extractZipEntry fully drains and closes the entry before returning.
func extractZipEntry(file *zip.File, w *writer) error {
	name := file.Name
	mode := file.Mode()
	if strings.HasSuffix(name, "/") || mode.IsDir() {
		return w.dir(name)
	}

	rc, err := file.Open()
	if err != nil {
		return w.fail(name, err)
	}
	defer rc.Close()

	if mode&fs.ModeSymlink != 0 {
		target, err := io.ReadAll(io.LimitReader(rc, maxLinkTarget))
		if err != nil {
			return w.fail(name, err)
		}
		return w.symlink(name, string(target))
	}
	return w.file(name, mode, rc)
}
