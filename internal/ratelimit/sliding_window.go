/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/RussellLuo/slidingwindow"

	"github.com/windowlimit/go-windowlimit/lrucache"
)

// SlidingWindowLimiter approximates a trailing window by weighting the previous fixed window's count.
// It uses constant memory per key but may admit slightly more or less than the exact sliding log.
type SlidingWindowLimiter struct {
	keys    *lrucache.LRUCache[string, *slidingwindow.Limiter]
	maxRate Rate
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
// Up to maxKeys keys (DefaultMaxKeys if 0) are tracked, the least recently used ones are forgotten first.
func NewSlidingWindowLimiter(maxRate Rate, maxKeys int) (*SlidingWindowLimiter, error) {
	if maxKeys == 0 {
		maxKeys = DefaultMaxKeys
	}
	keys, err := lrucache.New[string, *slidingwindow.Limiter](maxKeys, nil)
	if err != nil {
		return nil, fmt.Errorf("new LRU in-memory store for keys: %w", err)
	}
	return &SlidingWindowLimiter{keys: keys, maxRate: maxRate}, nil
}

// Allow checks if the request should be allowed based on the rate limit.
func (l *SlidingWindowLimiter) Allow(_ context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	lim, _ := l.keys.GetOrAdd(key, l.newKeyLimiter)
	if lim.Allow() {
		return true, 0, nil
	}
	now := time.Now()
	return false, now.Truncate(l.maxRate.Duration).Add(l.maxRate.Duration).Sub(now), nil
}

func (l *SlidingWindowLimiter) newKeyLimiter() *slidingwindow.Limiter {
	lim, _ := slidingwindow.NewLimiter(l.maxRate.Duration, int64(l.maxRate.Count),
		func() (slidingwindow.Window, slidingwindow.StopFunc) {
			return slidingwindow.NewLocalWindow()
		})
	return lim
}
