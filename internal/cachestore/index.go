package cachestore

import (
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/sasha-s/go-deadlock"
)

// Index is the in-memory map of Fingerprint -> Record, guarded by a
// deadlock-detecting mutex (panics on lock-order violations in
// non-release builds instead of silently hanging, the same guard used
// elsewhere in the pack for shared in-process state).
type Index struct {
	mu      deadlock.Mutex
	records map[string]Record

	maxBytes     int64
	maxFiles     int     // <= 0 means the file-count axis is unbounded
	hysteresis   float64 // fraction of the gap between max and target, e.g. 0.9
	currentBytes int64
}

// NewIndex creates an empty Index bounded by maxBytes and maxFiles,
// evicting down to (1-hysteresis) of each budget whenever an insert
// pushes the index over either one. Evicting further than the
// triggering insert avoids evicting again on the very next insert
// (thrashing at the boundary).
func NewIndex(maxBytes int64, maxFiles int, hysteresis float64) *Index {
	if hysteresis <= 0 || hysteresis >= 1 {
		hysteresis = 0.9
	}
	return &Index{
		records:    make(map[string]Record),
		maxBytes:   maxBytes,
		maxFiles:   maxFiles,
		hysteresis: hysteresis,
	}
}

// Lookup returns the Record for a fingerprint and bumps its LastAccess,
// or (Record{}, false) on a miss. It does not check master staleness;
// callers that hold the current master mtime should use LookupFresh.
func (idx *Index) Lookup(fingerprint string) (Record, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	rec, ok := idx.records[fingerprint]
	if !ok {
		return Record{}, false
	}

	rec.LastAccess = time.Now()
	idx.records[fingerprint] = rec

	return rec, true
}

// LookupFresh is Lookup plus the master_mtime staleness check: if
// masterMtime is non-zero and disagrees with the record's MasterMtime,
// the record is evicted on the spot (per the CacheRecord invariant) and
// LookupFresh reports a miss. The evicted Record is returned too, so the
// caller can unlink its now-untracked artifact file. A zero masterMtime
// (master could not be stat'd) skips the check and behaves like Lookup.
func (idx *Index) LookupFresh(fingerprint string, masterMtime time.Time) (rec Record, ok bool, stale *Record) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	rec, ok = idx.records[fingerprint]
	if !ok {
		return Record{}, false, nil
	}

	if !masterMtime.IsZero() && !rec.MasterMtime.IsZero() && !rec.MasterMtime.Equal(masterMtime) {
		delete(idx.records, fingerprint)
		idx.currentBytes -= rec.SizeBytes
		evicted := rec
		return Record{}, false, &evicted
	}

	rec.LastAccess = time.Now()
	idx.records[fingerprint] = rec

	return rec, true, nil
}

// Insert adds or replaces a Record and evicts older entries if the
// index now exceeds its byte budget or its file-count limit.
func (idx *Index) Insert(rec Record) []Record {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if old, ok := idx.records[rec.Fingerprint]; ok {
		idx.currentBytes -= old.SizeBytes
	}

	idx.records[rec.Fingerprint] = rec
	idx.currentBytes += rec.SizeBytes

	overBytes := idx.currentBytes > idx.maxBytes
	overFiles := idx.maxFiles > 0 && len(idx.records) > idx.maxFiles
	if !overBytes && !overFiles {
		return nil
	}

	return idx.evictLocked()
}

// Remove deletes a Record from the index (used when a CacheWriter write
// fails after Insert reserved space, or when an admin purge runs).
func (idx *Index) Remove(fingerprint string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if rec, ok := idx.records[fingerprint]; ok {
		idx.currentBytes -= rec.SizeBytes
		delete(idx.records, fingerprint)
	}
}

// Iterate returns a snapshot of all records, sorted ascending by
// LastAccess (oldest first) — the order the admin listing endpoint and
// the eviction scan both want.
func (idx *Index) Iterate() []Record {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	all := lo.Values(idx.records)
	return sortByLastAccessAscending(all)
}

// CurrentBytes reports the index's tracked total size.
func (idx *Index) CurrentBytes() int64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.currentBytes
}

// evictLocked removes the least-recently-used records until the index
// is back under both axes' targets: (1-hysteresis)*maxBytes and
// (1-hysteresis)*maxFiles. Evicting on either axis reduces both bytes
// and file count, so a single LRU scan satisfies both. Caller must hold
// idx.mu.
func (idx *Index) evictLocked() []Record {
	byteTarget := int64(float64(idx.maxBytes) * (1 - idx.hysteresis))
	fileTarget := int(float64(idx.maxFiles) * (1 - idx.hysteresis))

	candidates := sortByLastAccessAscending(lo.Values(idx.records))

	evicted := make([]Record, 0, 4)
	for _, rec := range candidates {
		overBytes := idx.currentBytes > byteTarget
		overFiles := idx.maxFiles > 0 && len(idx.records) > fileTarget
		if !overBytes && !overFiles {
			break
		}
		delete(idx.records, rec.Fingerprint)
		idx.currentBytes -= rec.SizeBytes
		evicted = append(evicted, rec)
	}

	return evicted
}

// sortByLastAccessAscending orders records oldest-first, breaking ties
// by descending size so that, among equally stale entries, the biggest
// space reclaim happens first. samber/lo supplies the map-to-slice
// projection (Values) used by both callers; lo has no generic sort
// helper, so the actual ordering step is sort.Slice (see DESIGN.md).
func sortByLastAccessAscending(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastAccess.Equal(out[j].LastAccess) {
			return out[i].SizeBytes > out[j].SizeBytes
		}
		return out[i].LastAccess.Before(out[j].LastAccess)
	})

	return out
}
