package providers

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/airuntime/core/errs"
	"github.com/airuntime/core/events"
)

// RateLimiter wraps a per-provider golang.org/x/time/rate.Limiter, adapted
// from the teacher's rate_limiter_token_bucket.go token-bucket limiter but
// narrowed to the one job §5 asks of it here: gate outgoing requests and
// emit events.OnAIRateLimitHit with a retryAfter hint when HTTP 429 is
// observed, rather than silently retrying (spec §4.1/§7: no automatic
// retry, the caller/agent decides).
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
	bus      *events.Bus
}

// NewRateLimiter creates a limiter applying requestsPerSecond/burst per
// provider key. A zero requestsPerSecond disables limiting (Wait is a
// no-op).
func NewRateLimiter(requestsPerSecond float64, burst int, bus *events.Bus) *RateLimiter {
	if bus == nil {
		bus = events.Default
	}
	return &RateLimiter{limiters: make(map[string]*rate.Limiter), rps: requestsPerSecond, burst: burst, bus: bus}
}

func (r *RateLimiter) limiterFor(provider string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[provider]
	if !ok {
		l = rate.NewLimiter(rate.Limit(r.rps), r.burst)
		r.limiters[provider] = l
	}
	return l
}

// Wait blocks until provider may proceed, or returns a Timeout error if ctx
// is cancelled first.
func (r *RateLimiter) Wait(ctx context.Context, provider string) error {
	if r.rps <= 0 {
		return nil
	}
	if err := r.limiterFor(provider).Wait(ctx); err != nil {
		return errs.Wrap(errs.Timeout, provider, err)
	}
	return nil
}

// NotifyRateLimitHit emits onAIRateLimitHit for a provider-reported HTTP
// 429, per spec §4.1/§7.
func (r *RateLimiter) NotifyRateLimitHit(provider string, statusCode int, retryAfter time.Duration) {
	r.bus.Emit(events.OnAIRateLimitHit, events.Payload{
		"provider":   provider,
		"statusCode": statusCode,
		"retryAfter": retryAfter,
	})
}
