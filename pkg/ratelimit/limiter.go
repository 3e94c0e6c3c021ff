package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"twdataset/pkg/config"
)

// Limiter paces outgoing API requests
type Limiter interface {
	// Allow reports whether a request may proceed now, consuming a token if so
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
}

// WindowLimiter spreads a per-window request allowance evenly across the
// window, e.g. 450 requests per 15 minutes becomes one token every 2s with a
// small burst on top.
type WindowLimiter struct {
	requests int
	window   time.Duration
	limiter  *rate.Limiter
}

// NewWindowLimiter creates a limiter allowing requests per window
func NewWindowLimiter(requests int, window time.Duration, burst int) *WindowLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &WindowLimiter{
		requests: requests,
		window:   window,
		limiter:  rate.NewLimiter(rate.Every(window/time.Duration(requests)), burst),
	}
}

// Allow checks if a request can proceed
func (wl *WindowLimiter) Allow() bool {
	return wl.limiter.Allow()
}

// Wait blocks until a token is available
func (wl *WindowLimiter) Wait(ctx context.Context) error {
	return wl.limiter.Wait(ctx)
}

// Interval returns the steady-state gap between requests
func (wl *WindowLimiter) Interval() time.Duration {
	return wl.window / time.Duration(wl.requests)
}

// Unlimited returns a limiter that never blocks
func Unlimited() Limiter {
	return unlimited{}
}

type unlimited struct{}

func (unlimited) Allow() bool                    { return true }
func (unlimited) Wait(ctx context.Context) error { return ctx.Err() }

// FromConfig builds the limiter described by cfg. Pacing is disabled when
// RequestsPerWindow or Window is zero.
func FromConfig(cfg config.RateLimitConfig) Limiter {
	if cfg.RequestsPerWindow <= 0 || cfg.Window <= 0 {
		return Unlimited()
	}
	return NewWindowLimiter(cfg.RequestsPerWindow, cfg.Window, cfg.BurstSize)
}
