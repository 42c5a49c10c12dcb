package cachestore

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCoalescerCollapsesConcurrentCallers(t *testing.T) {
	c := NewCoalescer()

	var calls int32
	start := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]Record, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			rec, _, err := c.Do("fp-1", func() (Record, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(10 * time.Millisecond)
				return Record{Fingerprint: "fp-1", SizeBytes: 42}, nil
			})
			if err != nil {
				t.Errorf("Do: %v", err)
				return
			}
			results[i] = rec
		}(i)
	}

	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one render to run, got %d", got)
	}
	for _, r := range results {
		if r.SizeBytes != 42 {
			t.Fatalf("expected all callers to see the shared result, got %+v", r)
		}
	}
}

func TestCoalescerForgetAllowsFreshRender(t *testing.T) {
	c := NewCoalescer()

	var calls int32
	_, _, err := c.Do("fp-2", func() (Record, error) {
		atomic.AddInt32(&calls, 1)
		return Record{Fingerprint: "fp-2"}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	c.Forget("fp-2")

	_, _, err = c.Do("fp-2", func() (Record, error) {
		atomic.AddInt32(&calls, 1)
		return Record{Fingerprint: "fp-2"}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected two separate renders after Forget, got %d", got)
	}
}
