package archive

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/klauspost/compress/gzip"

	"tessera/internal/faults"
)

func extractTarGz(ctx context.Context, archivePath string, w *writer) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return &faults.EntryError{Archive: archivePath, Err: err}
	}
	defer file.Close()

	gz, err := gzip.NewReader(bufio.NewReader(file))
	if err != nil {
		return &faults.EntryError{Archive: archivePath, Err: err}
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	last := ""
	for {
		if err := checkContext(ctx); err != nil {
			return err
		}
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			// Decompression or framing failure; attribute it to the entry that preceded it.
			return w.fail(last, err)
		}
		last = header.Name
		if err := extractTarEntry(header, tr, w); err != nil {
			return err
		}
	}
}

func extractTarEntry(header *tar.Header, r io.Reader, w *writer) error {
	switch header.Typeflag {
	case tar.TypeDir:
		return w.dir(header.Name)
	case tar.TypeReg:
		return w.file(header.Name, fs.FileMode(header.Mode).Perm(), r)
	case tar.TypeSymlink:
		return w.symlink(header.Name, header.Linkname)
	case tar.TypeLink:
		return w.hardlink(header.Name, header.Linkname)
	default:
		// Global pax headers, devices and fifos carry nothing to install.
		return nil
	}
}
