package provider

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter caps outbound detail-resolution calls using a token bucket.
// A nil *Limiter is a no-op, so callers never need to branch.
type Limiter struct {
	l *rate.Limiter
}

// NewLimiter creates a limiter allowing rpm requests per minute with a
// small burst. rpm <= 0 disables limiting (returns nil).
func NewLimiter(rpm int) *Limiter {
	if rpm <= 0 {
		return nil
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		l: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
	}
}

// Wait blocks until a request slot is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.l.Wait(ctx)
}
