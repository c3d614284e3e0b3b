package telldus

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// MinRequestInterval is the spacing Telldus Live expects between API calls.
const MinRequestInterval = time.Second

// RateLimiter spaces outgoing calls. A single limiter is meant to be shared
// by every client in the process.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows one call per interval. A non-positive interval disables limiting.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	if interval <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// DefaultRateLimiter is the process-wide limiter used when a client is not given one.
var DefaultRateLimiter = NewRateLimiter(MinRequestInterval)

// Wait blocks until the next call may be sent or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
