package cachestore

import (
	"encoding/gob"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dchest/safefile"
	"github.com/gofrs/flock"
)

// journalName is the index journal's filename within the cache directory.
const journalName = "index.journal"

// SaveJournal writes the full set of records to disk atomically: encode
// to a temporary file beside the target, then rename over it, so a
// crash mid-write never leaves a half-written journal for the next
// startup to trip over.
func SaveJournal(dir string, records []Record) error {
	path := filepath.Join(dir, journalName)

	f, err := safefile.Create(path, 0o644)
	if err != nil {
		return fmt.Errorf("cachestore: create journal temp file: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(records); err != nil {
		_ = f.Close()
		return fmt.Errorf("cachestore: encode journal: %w", err)
	}

	if err := f.Commit(); err != nil {
		return fmt.Errorf("cachestore: commit journal: %w", err)
	}

	return nil
}

// LoadJournal reads back the records saved by SaveJournal. A missing
// journal (first run) is not an error: it yields an empty set.
func LoadJournal(dir string) ([]Record, error) {
	path := filepath.Join(dir, journalName)

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cachestore: open journal: %w", err)
	}
	defer f.Close()

	var records []Record
	if err := gob.NewDecoder(f).Decode(&records); err != nil {
		return nil, fmt.Errorf("cachestore: decode journal: %w", err)
	}

	return records, nil
}

// RecoverOnStartup takes an advisory lock on the cache directory so two
// server instances never run the orphan-file recovery scan at once,
// loads the journal, drops any record whose file is missing (the file
// was removed out from under the index, e.g. manual cleanup), and
// removes any file under dir that the journal does not know about
// (a leftover from a crash between writing the artifact and updating
// the index).
// RecoverOnStartup rebuilds an Index from dir's journal and on-disk
// state, bounded by the caller's configured maxBytes/maxFiles/hysteresis
// (the config file's max_cache_size, max_cache_files and
// cache_hysteresis) rather than any hardcoded default.
func RecoverOnStartup(dir string, maxBytes int64, maxFiles int, hysteresis float64) (*Index, error) {
	lock := flock.New(filepath.Join(dir, ".recovery.lock"))

	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("cachestore: lock cache dir: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("cachestore: cache dir %q is locked by another process", dir)
	}
	defer lock.Unlock()

	records, err := LoadJournal(dir)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(records))
	live := make([]Record, 0, len(records))

	for _, rec := range records {
		if info, err := os.Stat(rec.Path); err == nil {
			rec.SizeBytes = info.Size()
			known[filepath.Base(rec.Path)] = true
			live = append(live, rec)
		} else {
			log.Printf("WRN cachestore: journal entry %q missing on disk, dropping", rec.Path)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cachestore: scan cache dir: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if name == journalName || name == ".recovery.lock" || entry.IsDir() {
			continue
		}
		if !known[name] {
			log.Printf("WRN cachestore: orphan file %q not in journal, removing", name)
			_ = os.Remove(filepath.Join(dir, name))
		}
	}

	idx := NewIndex(maxBytes, maxFiles, hysteresis)
	for _, rec := range live {
		idx.records[rec.Fingerprint] = rec
		idx.currentBytes += rec.SizeBytes
	}

	return idx, nil
}
