package ledger_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tessera/internal/ledger"
	"tessera/internal/testsupport"
)

func TestRecordAndLatest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	if _, ok, err := store.Latest(ctx, "mongodb"); err != nil || ok {
		t.Fatalf("expected empty ledger, ok=%v err=%v", ok, err)
	}

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := store.Record(ctx, ledger.Install{Resource: "mongodb", URL: "https://a", ArchivePath: "a.tgz", ArchiveBytes: 10, InstallPath: "/h/mongodb", InstalledAt: first}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Record(ctx, ledger.Install{Resource: "mongodb", URL: "https://b", ArchivePath: "b.tgz", InstallPath: "/h/mongodb"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Record(ctx, ledger.Install{Resource: "lat", URL: "https://c", ArchivePath: "c.tgz", InstallPath: "/h/lat"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	latest, ok, err := store.Latest(ctx, "mongodb")
	if err != nil || !ok {
		t.Fatalf("Latest: ok=%v err=%v", ok, err)
	}
	if latest.URL != "https://b" {
		t.Fatalf("expected newest install, got %+v", latest)
	}
	if latest.InstalledAt.IsZero() {
		t.Fatal("expected install time to be stamped")
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].Resource != "lat" {
		t.Fatalf("unexpected list %+v", all)
	}
	if !all[2].InstalledAt.Equal(first) {
		t.Fatalf("expected first install time preserved, got %v", all[2].InstalledAt)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := ledger.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Record(context.Background(), ledger.Install{Resource: "grc", URL: "u", ArchivePath: "p", InstallPath: "i"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := ledger.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, ok, err := reopened.Latest(context.Background(), "grc"); err != nil || !ok {
		t.Fatalf("expected history after reopen, ok=%v err=%v", ok, err)
	}
}
