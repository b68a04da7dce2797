package snapshot

import (
	"context"
	"time"

	cb "github.com/sony/gobreaker"
)

// Guarded wraps a Store in a circuit breaker, grounded on
// infra/breakers: three consecutive failures, or a >5% failure rate
// once 20 requests have been seen, trips the breaker so a struggling
// Redis instance stops adding latency to every bar.
type Guarded struct {
	inner Store
	cb    *cb.CircuitBreaker
}

// NewGuarded wraps inner with a circuit breaker named name.
func NewGuarded(name string, inner Store) *Guarded {
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		total := counts.Requests
		if total < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(total) > 0.05
	}
	return &Guarded{inner: inner, cb: cb.NewCircuitBreaker(st)}
}

// Get reads through the breaker. An open breaker reports ok=false
// rather than failing the caller's bar loop.
func (g *Guarded) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := g.cb.Execute(func() (any, error) {
		v, ok, err := g.inner.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		return [2]any{v, ok}, nil
	})
	if err != nil {
		return nil, false, nil
	}
	pair := res.([2]any)
	v, _ := pair[0].([]byte)
	ok, _ := pair[1].(bool)
	return v, ok, nil
}

// Set writes through the breaker. A write that fails because the
// breaker is open is dropped silently: snapshotting is best-effort,
// never load-bearing for correctness of the next bar.
func (g *Guarded) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	_, err := g.cb.Execute(func() (any, error) {
		return nil, g.inner.Set(ctx, key, val, ttl)
	})
	if err == cb.ErrOpenState {
		return nil
	}
	return err
}
