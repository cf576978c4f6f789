package media

import (
	"context"
	"errors"
	"time"

	"community-api/internal/observability"

	"github.com/sony/gobreaker"
)

var ErrStorageUnavailable = errors.New("storage unavailable")

// BreakerStore stops calling a remote store after repeated failures and
// fails fast with ErrStorageUnavailable until the cool-down elapses.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerStore(name string, next Store, threshold int, cooldown time.Duration, logger *observability.Logger) *BreakerStore {
	if threshold < 1 {
		threshold = 1
	}
	limit := uint32(threshold) //nolint:gosec // bounded above

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= limit
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("storage_breaker_state_change", map[string]any{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			})
		},
	}

	return &BreakerStore{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerStore) Save(ctx context.Context, dir, name string, data []byte, contentType string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Save(ctx, dir, name, data, contentType)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", ErrStorageUnavailable
		}
		return "", err
	}
	return out.(string), nil
}

func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}
