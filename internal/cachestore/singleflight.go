package cachestore

import (
	"sync"

	"github.com/sasha-s/go-deadlock"
)

// call tracks one in-flight render: every caller that arrives while it
// is running waits on the same WaitGroup and reads the same result.
type call struct {
	wg  sync.WaitGroup
	rec Record
	err error
}

// Coalescer collapses concurrent requests for the same fingerprint into
// a single render, the way a thundering herd of requests for a just-
// published gallery image must not each decode and encode the same
// derivative. Every caller waiting on a given fingerprint gets the same
// result (or the same error) once the one in-flight render completes.
//
// Small enough to hand-roll against the same go-deadlock-guarded map
// discipline used by Index, rather than pull in a separate coalescing
// library for what is one map and one WaitGroup.
type Coalescer struct {
	mu       deadlock.Mutex
	inflight map[string]*call
}

// NewCoalescer returns a ready Coalescer.
func NewCoalescer() *Coalescer {
	return &Coalescer{inflight: make(map[string]*call)}
}

// Do runs fn if no render for fingerprint is already in flight, or waits
// for and returns the in-flight render's result otherwise. shared
// reports whether the caller received a result computed for someone
// else's request.
func (c *Coalescer) Do(fingerprint string, fn func() (Record, error)) (rec Record, shared bool, err error) {
	c.mu.Lock()
	if existing, ok := c.inflight[fingerprint]; ok {
		c.mu.Unlock()
		existing.wg.Wait()
		return existing.rec, true, existing.err
	}

	cl := &call{}
	cl.wg.Add(1)
	c.inflight[fingerprint] = cl
	c.mu.Unlock()

	cl.rec, cl.err = fn()
	cl.wg.Done()

	c.mu.Lock()
	delete(c.inflight, fingerprint)
	c.mu.Unlock()

	return cl.rec, false, cl.err
}

// Forget drops any memoized in-flight entry for fingerprint. Do already
// removes the entry the moment fn returns, so this only matters if a
// caller wants to be sure a stale entry left by a panic recovery path
// elsewhere does not linger.
func (c *Coalescer) Forget(fingerprint string) {
	c.mu.Lock()
	delete(c.inflight, fingerprint)
	c.mu.Unlock()
}
