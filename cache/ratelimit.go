package cache

import (
	"context"
	"strconv"
	"time"

	"socialhub/clock"
)

type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RateLimiter is a fixed-window limiter: each client gets one counter per
// window, and the window index is part of the key, so a new window starts
// from zero without any reset.
type RateLimiter struct {
	counter Counter
	prefix  string
	max     int64
	window  time.Duration
	clock   clock.Clock
}

func NewRateLimiter(counter Counter, prefix string, max int, window time.Duration, clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &RateLimiter{counter: counter, prefix: prefix, max: int64(max), window: window, clock: clk}
}

type Decision struct {
	Allowed   bool
	Count     int64
	Limit     int64
	ResetAt   time.Time
	Remaining int64
}

func (l *RateLimiter) Allow(ctx context.Context, client string) (Decision, error) {
	now := l.clock.Now()
	index := now.UnixNano() / int64(l.window)
	windowEnd := time.Unix(0, (index+1)*int64(l.window))

	key := l.prefix + ":" + client + ":" + strconv.FormatInt(index, 10)
	// the extra second keeps the counter alive across small clock skew
	count, err := l.counter.Incr(ctx, key, windowEnd.Sub(now)+time.Second)
	if err != nil {
		return Decision{Allowed: true, Limit: l.max, ResetAt: windowEnd}, err
	}

	return Decision{
		Allowed:   count <= l.max,
		Count:     count,
		Limit:     l.max,
		ResetAt:   windowEnd,
		Remaining: max(l.max-count, 0),
	}, nil
}
