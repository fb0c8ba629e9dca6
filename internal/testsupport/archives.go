package testsupport

import (
	"archive/tar"
	"archive/zip"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// ArchiveEntry describes one member of a synthetic archive. Names ending in
// "/" are directory entries; Link makes a tar symlink.
type ArchiveEntry struct {
	Name string
	Body string
	Mode fs.FileMode
	Link string
}

// SampleTree is a small tree with a directory entry for a/ but none for a/c/.
func SampleTree() []ArchiveEntry {
	return []ArchiveEntry{
		{Name: "a/"},
		{Name: "a/b.txt", Body: "hi"},
		{Name: "a/c/d.txt", Body: "yo"},
	}
}

// WriteZip builds a zip archive at path.
func WriteZip(t testing.TB, path string, entries []ArchiveEntry) {
	t.Helper()
	out := createArchive(t, path)
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, entry := range entries {
		header := &zip.FileHeader{Name: entry.Name, Method: zip.Deflate}
		mode := entry.Mode
		if mode == 0 {
			mode = 0o644
		}
		if strings.HasSuffix(entry.Name, "/") {
			mode = fs.ModeDir | 0o755
			header.Method = zip.Store
		}
		header.SetMode(mode)
		w, err := zw.CreateHeader(header)
		if err != nil {
			t.Fatalf("zip header %s: %v", entry.Name, err)
		}
		if entry.Body != "" {
			if _, err := w.Write([]byte(entry.Body)); err != nil {
				t.Fatalf("zip write %s: %v", entry.Name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
}

// WriteTarGz builds a gzip-compressed tar archive at path.
func WriteTarGz(t testing.TB, path string, entries []ArchiveEntry) {
	t.Helper()
	out := createArchive(t, path)
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)
	for _, entry := range entries {
		header := &tar.Header{Name: entry.Name, Mode: 0o644, Size: int64(len(entry.Body)), Typeflag: tar.TypeReg}
		if entry.Mode != 0 {
			header.Mode = int64(entry.Mode.Perm())
		}
		switch {
		case strings.HasSuffix(entry.Name, "/"):
			header.Typeflag = tar.TypeDir
			header.Mode = 0o755
			header.Size = 0
		case entry.Link != "":
			header.Typeflag = tar.TypeSymlink
			header.Linkname = entry.Link
			header.Size = 0
		}
		if err := tw.WriteHeader(header); err != nil {
			t.Fatalf("tar header %s: %v", entry.Name, err)
		}
		if header.Size > 0 {
			if _, err := tw.Write([]byte(entry.Body)); err != nil {
				t.Fatalf("tar write %s: %v", entry.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
}

func createArchive(t testing.TB, path string) *os.File {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	return out
}
