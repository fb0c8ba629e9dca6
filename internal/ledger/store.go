package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Install is one completed provisioning of a resource.
type Install struct {
	ID           int64
	Resource     string
	URL          string
	ArchivePath  string
	ArchiveBytes int64
	InstallPath  string
	InstalledAt  time.Time
}

// Store manages install history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path reports the database file.
func (s *Store) Path() string {
	return s.path
}

// Record appends an install. A zero InstalledAt is stamped with the current time.
func (s *Store) Record(ctx context.Context, in Install) error {
	if in.InstalledAt.IsZero() {
		in.InstalledAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO installs (resource, url, archive_path, archive_bytes, install_path, installed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		in.Resource, in.URL, in.ArchivePath, in.ArchiveBytes, in.InstallPath,
		in.InstalledAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record install %s: %w", in.Resource, err)
	}
	return nil
}

// Latest returns the most recent install of resource.
func (s *Store) Latest(ctx context.Context, resource string) (Install, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, resource, url, archive_path, archive_bytes, install_path, installed_at
		 FROM installs WHERE resource = ? ORDER BY id DESC LIMIT 1`, resource)
	in, err := scanInstall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Install{}, false, nil
	}
	if err != nil {
		return Install{}, false, err
	}
	return in, true, nil
}

// List returns every install, newest first.
func (s *Store) List(ctx context.Context) ([]Install, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, resource, url, archive_path, archive_bytes, install_path, installed_at
		 FROM installs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list installs: %w", err)
	}
	defer rows.Close()

	var installs []Install
	for rows.Next() {
		in, err := scanInstall(rows)
		if err != nil {
			return nil, err
		}
		installs = append(installs, in)
	}
	return installs, rows.Err()
}

func scanInstall(scanner interface{ Scan(dest ...any) error }) (Install, error) {
	var (
		in          Install
		installedAt string
	)
	if err := scanner.Scan(&in.ID, &in.Resource, &in.URL, &in.ArchivePath, &in.ArchiveBytes, &in.InstallPath, &installedAt); err != nil {
		return Install{}, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, installedAt)
	if err != nil {
		return Install{}, fmt.Errorf("parse installed_at %q: %w", installedAt, err)
	}
	in.InstalledAt = parsed
	return in, nil
}
