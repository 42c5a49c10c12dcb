package cachestore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dchest/safefile"
)

// Writer commits rendered derivatives to disk and keeps the Index and
// the on-disk journal in lockstep: a derivative is never indexed before
// its bytes are durably on disk, and the journal is re-saved after every
// write so a crash right after leaves, at worst, an orphan file that
// RecoverOnStartup cleans up on the next boot.
type Writer struct {
	dir string
	idx *Index
}

// NewWriter returns a Writer rooted at dir, backed by idx.
func NewWriter(dir string, idx *Index) *Writer {
	return &Writer{dir: dir, idx: idx}
}

// Commit writes data under the fingerprint's derived filename atomically
// (temp file + rename, via safefile, so a concurrent reader never sees a
// partial file), inserts the Record into the index, evicts if the
// insert pushed the index over budget, and re-saves the journal.
// Evicted files are unlinked from disk after the journal reflects their
// removal, so an interrupted eviction never drops a file the journal
// still claims to have. masterPath/masterMtime are stamped onto the
// Record so a later lookup can detect a master that has since changed.
func (w *Writer) Commit(fingerprint, ext, contentType string, data []byte, masterPath string, masterMtime time.Time) (Record, error) {
	path := filepath.Join(w.dir, fingerprint+ext)

	f, err := safefile.Create(path, 0o644)
	if err != nil {
		return Record{}, fmt.Errorf("cachestore: create derivative temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return Record{}, fmt.Errorf("cachestore: write derivative: %w", err)
	}
	if err := f.Commit(); err != nil {
		return Record{}, fmt.Errorf("cachestore: commit derivative: %w", err)
	}

	now := time.Now()
	rec := Record{
		Fingerprint: fingerprint,
		Path:        path,
		SizeBytes:   int64(len(data)),
		LastAccess:  now,
		CreatedAt:   now,
		ContentType: contentType,
		MasterPath:  masterPath,
		MasterMtime: masterMtime,
	}

	evicted := w.idx.Insert(rec)

	if err := SaveJournal(w.dir, w.idx.Iterate()); err != nil {
		return rec, fmt.Errorf("cachestore: save journal after commit: %w", err)
	}

	for _, old := range evicted {
		if old.Fingerprint == fingerprint {
			continue
		}
		if err := os.Remove(old.Path); err != nil && !os.IsNotExist(err) {
			return rec, fmt.Errorf("cachestore: remove evicted derivative %q: %w", old.Path, err)
		}
	}

	return rec, nil
}

// Purge removes a single cached derivative by fingerprint, used by the
// admin purge endpoint.
func (w *Writer) Purge(fingerprint string) error {
	rec, ok := w.idx.Lookup(fingerprint)
	if !ok {
		return nil
	}

	w.idx.Remove(fingerprint)

	if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cachestore: remove %q: %w", rec.Path, err)
	}

	return SaveJournal(w.dir, w.idx.Iterate())
}
