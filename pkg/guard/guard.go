// Package guard wraps backend adapters with call protection: a per-backend
// circuit breaker and an optional request rate limit. Guards compose around
// any Adapter, so the dispatcher stays unaware of them.
package guard

import (
	"context"

	"github.com/lumenlab/axon/pkg/providers"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Breaker trips after repeated adapter failures so a dead backend fails fast
// instead of burning the full inference timeout on every call.
type Breaker struct {
	inner   providers.Adapter
	breaker *gobreaker.CircuitBreaker
}

// NewBreaker wraps the adapter with a circuit breaker named after the
// backend. The circuit opens at five or more requests with at least a 50%
// failure rate.
func NewBreaker(name string, inner providers.Adapter) *Breaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
	}
	return &Breaker{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Available reports the wrapped adapter's availability.
func (b *Breaker) Available() bool {
	return b.inner.Available()
}

// Complete runs the call through the breaker.
func (b *Breaker) Complete(ctx context.Context, modelID, prompt string) (string, error) {
	result, err := b.breaker.Execute(func() (any, error) {
		return b.inner.Complete(ctx, modelID, prompt)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return "", &providers.CallError{Provider: b.breaker.Name(), Model: modelID, Err: err}
		}
		return "", err
	}
	return result.(string), nil
}

// Limited applies a request rate limit before each call. It waits rather
// than rejects, so callers only observe added latency.
type Limited struct {
	inner   providers.Adapter
	limiter *rate.Limiter
}

// NewLimited wraps the adapter with a requests-per-minute cap. rpm <= 0
// means unlimited.
func NewLimited(inner providers.Adapter, rpm int) *Limited {
	var limiter *rate.Limiter
	if rpm > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm)
	}
	return &Limited{inner: inner, limiter: limiter}
}

// Available reports the wrapped adapter's availability.
func (l *Limited) Available() bool {
	return l.inner.Available()
}

// Complete waits for a rate token, then delegates.
func (l *Limited) Complete(ctx context.Context, modelID, prompt string) (string, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	return l.inner.Complete(ctx, modelID, prompt)
}
