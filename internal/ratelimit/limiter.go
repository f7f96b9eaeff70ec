// Package ratelimit gates outbound provider calls behind per-source-class
// token buckets with shared exponential backoff. One throttled worker slows
// every worker hitting the same quota pool.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Class identifies a quota pool. Places and web search have independent
// budgets because they are billed and throttled separately.
type Class string

const (
	ClassPlaces    Class = "places"
	ClassWebSearch Class = "web_search"
)

// BackoffConfig controls the throttle backoff schedule for a class.
type BackoffConfig struct {
	// Base is the first backoff delay applied after a throttle signal.
	Base time.Duration
	// Max caps the doubled delay.
	Max time.Duration
	// ResetAfter is the number of consecutive successes that clears the
	// backoff back to zero.
	ResetAfter int
}

// DefaultBackoff returns the standard backoff schedule.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		Base:       500 * time.Millisecond,
		Max:        30 * time.Second,
		ResetAfter: 3,
	}
}

// Limiter is the token-budget gate for one source class. All workers calling
// adapters of that class share it: the bucket spreads requests across time
// and the backoff state holds everyone off an exhausted quota.
type Limiter struct {
	class  Class
	bucket *rate.Limiter

	mu        sync.Mutex
	cfg       BackoffConfig
	delay     time.Duration
	successes int

	// sleep is swapped in tests to observe delays without real waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a limiter admitting rps requests per second for the class.
func New(class Class, rps float64, cfg BackoffConfig) *Limiter {
	if rps <= 0 {
		rps = 5
	}
	if cfg.Base <= 0 {
		cfg.Base = DefaultBackoff().Base
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultBackoff().Max
	}
	if cfg.ResetAfter <= 0 {
		cfg.ResetAfter = DefaultBackoff().ResetAfter
	}
	return &Limiter{
		class:  class,
		bucket: rate.NewLimiter(rate.Limit(rps), 1),
		cfg:    cfg,
		sleep:  sleepCtx,
	}
}

// Acquire blocks until the class budget admits one request: first the token
// bucket, then any active throttle backoff.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.bucket.Wait(ctx); err != nil {
		return eris.Wrapf(err, "ratelimit: %s wait", l.class)
	}

	l.mu.Lock()
	delay := l.delay
	l.mu.Unlock()
	if delay <= 0 {
		return nil
	}
	if err := l.sleep(ctx, delay); err != nil {
		return eris.Wrapf(err, "ratelimit: %s backoff", l.class)
	}
	return nil
}

// ReportThrottle records a throttling signal (429 or provider quota error).
// The shared delay doubles from the base up to the cap.
func (l *Limiter) ReportThrottle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.successes = 0
	if l.delay <= 0 {
		l.delay = l.cfg.Base
	} else {
		l.delay *= 2
		if l.delay > l.cfg.Max {
			l.delay = l.cfg.Max
		}
	}
	zap.L().Warn("throttled, backing off",
		zap.String("class", string(l.class)),
		zap.Duration("delay", l.delay),
	)
}

// ReportSuccess records a successful call. After ResetAfter consecutive
// successes the backoff clears.
func (l *Limiter) ReportSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.delay <= 0 {
		return
	}
	l.successes++
	if l.successes >= l.cfg.ResetAfter {
		l.delay = 0
		l.successes = 0
	}
}

// Delay returns the currently active backoff delay.
func (l *Limiter) Delay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.delay
}

// Pool holds one limiter per source class.
type Pool struct {
	limiters map[Class]*Limiter
}

// NewPool builds a pool with independent budgets per class.
func NewPool(placesRPS, webSearchRPS float64, cfg BackoffConfig) *Pool {
	return &Pool{limiters: map[Class]*Limiter{
		ClassPlaces:    New(ClassPlaces, placesRPS, cfg),
		ClassWebSearch: New(ClassWebSearch, webSearchRPS, cfg),
	}}
}

// For returns the limiter for a class.
func (p *Pool) For(class Class) *Limiter {
	return p.limiters[class]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
