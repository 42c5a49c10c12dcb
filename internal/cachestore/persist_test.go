package cachestore

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(rec Record, d time.Duration) Record {
	rec.LastAccess = rec.LastAccess.Add(-d)
	return rec
}

func TestSaveAndLoadJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()

	want := []Record{
		{Fingerprint: "a", Path: filepath.Join(dir, "a.bin"), SizeBytes: 10, LastAccess: time.Now(), CreatedAt: time.Now(), ContentType: "image/png"},
		{Fingerprint: "b", Path: filepath.Join(dir, "b.bin"), SizeBytes: 20, LastAccess: time.Now(), CreatedAt: time.Now(), ContentType: "image/jpeg"},
	}

	if err := SaveJournal(dir, want); err != nil {
		t.Fatalf("SaveJournal: %v", err)
	}

	got, err := LoadJournal(dir)
	if err != nil {
		t.Fatalf("LoadJournal: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
}

func TestLoadJournalMissingIsNotError(t *testing.T) {
	dir := t.TempDir()

	got, err := LoadJournal(dir)
	if err != nil {
		t.Fatalf("expected no error on missing journal, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil records for missing journal, got %v", got)
	}
}

func TestRecoverOnStartupDropsMissingAndOrphans(t *testing.T) {
	dir := t.TempDir()

	keptPath := filepath.Join(dir, "kept.bin")
	if err := os.WriteFile(keptPath, []byte("abcd"), 0o644); err != nil {
		t.Fatal(err)
	}

	orphanPath := filepath.Join(dir, "orphan.bin")
	if err := os.WriteFile(orphanPath, []byte("xyz"), 0o644); err != nil {
		t.Fatal(err)
	}

	records := []Record{
		{Fingerprint: "kept", Path: keptPath, SizeBytes: 4, LastAccess: time.Now(), CreatedAt: time.Now()},
		{Fingerprint: "gone", Path: filepath.Join(dir, "gone.bin"), SizeBytes: 99, LastAccess: time.Now(), CreatedAt: time.Now()},
	}
	if err := SaveJournal(dir, records); err != nil {
		t.Fatal(err)
	}

	idx, err := RecoverOnStartup(dir, 1<<20, 100, 0.9)
	if err != nil {
		t.Fatalf("RecoverOnStartup: %v", err)
	}

	if _, ok := idx.Lookup("gone"); ok {
		t.Fatal("expected record for missing file to be dropped")
	}
	if _, ok := idx.Lookup("kept"); !ok {
		t.Fatal("expected record backed by an existing file to survive")
	}
	if _, err := os.Stat(orphanPath); !os.IsNotExist(err) {
		t.Fatal("expected orphan file not referenced by the journal to be removed")
	}
}
