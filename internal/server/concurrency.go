package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/dasch-swiss/sipi-go/reserr"
)

// concurrencyLimiter bounds the number of requests rendering at once —
// the fixed-size worker pool spec.md §5 describes sitting in front of
// the render path. Admission blocks the goroutine (not the OS thread)
// once the pool is saturated, the same channel-as-semaphore shape
// imageproxy's TransformingTransport uses to cap concurrent fetches.
type concurrencyLimiter struct {
	slots   chan struct{}
	timeout time.Duration
	resErr  reserr.ResErr
}

// newConcurrencyLimiter builds a limiter with the given slot count
// (2*GOMAXPROCS when max <= 0, spec.md §5's default) and the deadline a
// request may wait queued before it's answered ServiceUnavailable
// (0 disables the deadline and lets requests queue indefinitely).
func newConcurrencyLimiter(max int, timeout time.Duration, resErr reserr.ResErr) *concurrencyLimiter {
	if max <= 0 {
		max = 2 * runtime.GOMAXPROCS(0)
	}
	return &concurrencyLimiter{
		slots:   make(chan struct{}, max),
		timeout: timeout,
		resErr:  resErr,
	}
}

func (c *concurrencyLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		select {
		case c.slots <- struct{}{}:
			defer func() { <-c.slots }()
		case <-ctx.Done():
			c.resErr.Write(w, r, http.StatusServiceUnavailable, "Server busy, deadline exceeded while queued")
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
