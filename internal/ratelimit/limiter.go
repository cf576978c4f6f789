package ratelimit

import (
	"context"
	"math"
	"time"
)

// Decision is the outcome of one admission check. Remaining and Reset are
// derived from the log as it stood before this request.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Duration
}

// ResetSeconds rounds Reset up to whole seconds for the RateLimit-Reset header.
func (d Decision) ResetSeconds() int {
	if d.Reset <= 0 {
		return 0
	}
	return int(math.Ceil(d.Reset.Seconds()))
}

type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
	key    KeyFunc
}

type Option func(*Limiter)

// WithKeyFunc replaces RemoteAddrKey as the way requests are mapped to a
// budget. ForwardedForKey is only safe behind a proxy that overwrites the
// header.
func WithKeyFunc(key KeyFunc) Option {
	return func(l *Limiter) {
		if key != nil {
			l.key = key
		}
	}
}

// WithClock replaces time.Now, for deterministic window tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

func NewLimiter(store Store, limit int, window time.Duration, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = time.Minute
	}

	l := &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		now:    func() time.Time { return time.Now().UTC() },
		key:    RemoteAddrKey,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Limit() int {
	return l.limit
}

func (l *Limiter) Window() time.Duration {
	return l.window
}

// Allow records a request for key. When the store fails the request is
// admitted and the error is returned alongside the permissive decision.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()

	snap, err := l.store.Hit(ctx, key, now, l.window, l.limit)
	if err != nil {
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit - 1, Reset: l.window}, err
	}

	remaining := l.limit - snap.Count - 1
	if remaining < 0 {
		remaining = 0
	}

	reset := l.window
	if snap.Count > 0 && !snap.Oldest.IsZero() {
		reset = l.window - now.Sub(snap.Oldest)
		if reset < 0 {
			reset = 0
		}
	}

	return Decision{
		Allowed:   snap.Allowed,
		Limit:     l.limit,
		Remaining: remaining,
		Reset:     reset,
	}, nil
}

// Prune evicts idle keys from in-process stores. It returns 0 for stores that
// expire keys on their own.
func (l *Limiter) Prune() int {
	pruner, ok := l.store.(Pruner)
	if !ok {
		return 0
	}
	return pruner.Prune(l.now(), l.window)
}
