package cachestore

import (
	"testing"
	"time"
)

func TestIndexEvictsDownToHysteresisGapNotHysteresisFraction(t *testing.T) {
	// max_bytes=1MiB, hysteresis=0.25: the post-eviction target is
	// max_bytes*(1-hysteresis) = 768 KiB, not max_bytes*hysteresis.
	idx := NewIndex(1<<20, 0, 0.25)

	base := time.Now()
	for i, fp := range []string{"a", "b", "c"} {
		rec := Record{
			Fingerprint: fp,
			Path:        fp + ".bin",
			SizeBytes:   400 << 10,
			LastAccess:  base.Add(time.Duration(i) * time.Second),
		}
		idx.Insert(rec)
	}

	if got := idx.CurrentBytes(); got > 768<<10 {
		t.Fatalf("expected index at or under the 768KiB hysteresis target, got %d bytes", got)
	}
	if _, ok := idx.Lookup("a"); ok {
		t.Fatal("expected the least-recently-accessed record to have been evicted")
	}
}

func TestIndexEvictsOnFileCountAxisEvenUnderByteBudget(t *testing.T) {
	idx := NewIndex(1<<30, 2, 0.5)

	base := time.Now()
	for i, fp := range []string{"a", "b", "c"} {
		rec := Record{
			Fingerprint: fp,
			Path:        fp + ".bin",
			SizeBytes:   1,
			LastAccess:  base.Add(time.Duration(i) * time.Second),
		}
		idx.Insert(rec)
	}

	records := idx.Iterate()
	if len(records) > 2 {
		t.Fatalf("expected file_count <= max_files(2) after eviction, got %d", len(records))
	}
	if _, ok := idx.Lookup("a"); ok {
		t.Fatal("expected the least-recently-accessed record to have been evicted for the file-count axis")
	}
}

func TestLookupFreshEvictsRecordStaleAgainstMasterMtime(t *testing.T) {
	idx := NewIndex(1<<20, 0, 0.9)

	originalMtime := time.Now()
	idx.Insert(Record{
		Fingerprint: "fp",
		Path:        "derivative.jpg",
		SizeBytes:   10,
		MasterPath:  "master.tif",
		MasterMtime: originalMtime,
	})

	if _, ok, stale := idx.LookupFresh("fp", originalMtime); !ok || stale != nil {
		t.Fatal("expected a fresh hit when the master mtime matches")
	}

	touchedMtime := originalMtime.Add(time.Minute)
	_, ok, stale := idx.LookupFresh("fp", touchedMtime)
	if ok {
		t.Fatal("expected a miss once the master's mtime changed")
	}
	if stale == nil || stale.Fingerprint != "fp" {
		t.Fatal("expected the stale record to be returned for cleanup")
	}
	if _, ok := idx.Lookup("fp"); ok {
		t.Fatal("expected the stale record to have been evicted from the index")
	}
}
