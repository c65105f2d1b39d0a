package llm

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedProvider keeps a provider under its requests-per-minute quota
// so a burst of generations waits locally instead of failing upstream.
type RateLimitedProvider struct {
	provider Provider
	limiter  *rate.Limiter
}

// NewRateLimitedProvider allows at most rpm requests per minute, with
// bursts of up to rpm. A non-positive rpm returns provider unwrapped.
func NewRateLimitedProvider(provider Provider, rpm int) Provider {
	if rpm <= 0 {
		return provider
	}
	return &RateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
	}
}

func (r *RateLimitedProvider) Name() string {
	return r.provider.Name()
}

// Unwrap returns the limited provider.
func (r *RateLimitedProvider) Unwrap() Provider {
	return r.provider
}

func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	res := r.limiter.Reserve()
	if delay := res.Delay(); delay > 0 {
		log.Printf("llm: %s over its request quota, waiting %s", r.provider.Name(), delay.Round(time.Millisecond))
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			res.Cancel()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return r.provider.Complete(ctx, req)
}
