package provider

import (
	"context"

	"golang.org/x/time/rate"
)

// limited applies a client-side rate limit ahead of each provider call,
// so a chatty UI cannot burn through the vendor quota.
type limited struct {
	inner   Provider
	limiter *rate.Limiter
}

// Limit wraps a provider with a requests-per-second limiter. A
// non-positive rps returns the provider unwrapped.
func Limit(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst <= 0 {
		burst = 1
	}
	return &limited{inner: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *limited) Name() string { return l.inner.Name() }

func (l *limited) Send(ctx context.Context, req ChatRequest) (*Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.inner.Send(ctx, req)
}
