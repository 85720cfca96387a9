// Package ratelimit spaces outbound calls to each external collaborator.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Throttle blocks until the next call may proceed or ctx is done.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Interval is a token bucket of size one refilled every interval: the first
// call passes immediately, later calls are spaced at least interval apart.
type Interval struct {
	every   time.Duration
	limiter *rate.Limiter
}

// Every returns an Interval throttle. A non-positive interval never blocks.
func Every(interval time.Duration) *Interval {
	lim := rate.NewLimiter(rate.Inf, 1)
	if interval > 0 {
		lim = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &Interval{every: interval, limiter: lim}
}

// Wait blocks until a token is available.
func (i *Interval) Wait(ctx context.Context) error {
	return eris.Wrap(i.limiter.Wait(ctx), "ratelimit: wait")
}

// Interval returns the configured spacing.
func (i *Interval) Interval() time.Duration {
	return i.every
}

type noop struct{}

func (noop) Wait(ctx context.Context) error { return ctx.Err() }

// None never blocks. It still honours cancellation.
func None() Throttle { return noop{} }

// Registry hands out one shared throttle per collaborator name.
type Registry struct {
	mu        sync.Mutex
	intervals map[string]time.Duration
	throttles map[string]Throttle
}

// NewRegistry creates a registry with per-name intervals. Unknown names get
// an unthrottled entry.
func NewRegistry(intervals map[string]time.Duration) *Registry {
	return &Registry{intervals: intervals, throttles: make(map[string]Throttle)}
}

// For returns the throttle for name.
func (r *Registry) For(name string) Throttle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.throttles[name]; ok {
		return t
	}
	t := Throttle(Every(r.intervals[name]))
	r.throttles[name] = t
	return t
}
