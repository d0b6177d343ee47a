/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package windowlimit

import (
	"fmt"
	"time"

	"go.uber.org/atomic"

	"github.com/windowlimit/go-windowlimit/lrucache"
)

// Opts represents optional parameters of the Limiter.
type Opts struct {
	// Clock is a source of the current time. SystemClock is used if nil.
	Clock Clock

	// MaxKeys bounds the number of tracked keys. When it's exceeded, the least recently used key
	// is forgotten together with its admission history. 0 means no bound.
	MaxKeys int

	// ShardsNum is the number of independently locked parts of the key store.
	// DefaultShardsNum is used if 0. Ignored when MaxKeys is set.
	ShardsNum int

	// MetricsCollector receives admission decisions and key store changes. Metrics are disabled if nil.
	MetricsCollector MetricsCollector

	// KeysMetricsCollector collects metrics of the LRU key store. Used only when MaxKeys is set.
	KeysMetricsCollector lrucache.MetricsCollector
}

// Stats is a snapshot of the limiter counters.
type Stats struct {
	Keys        int
	Admitted    int64
	Rejected    int64
	DroppedKeys int64
}

// Limiter is a sliding-window rate limiter that admits at most limit requests per key
// within any trailing window of the configured duration.
// It is safe for concurrent use.
type Limiter struct {
	limit   int
	window  time.Duration
	clock   Clock
	store   keyStore
	metrics MetricsCollector

	admitted    atomic.Int64
	rejected    atomic.Int64
	droppedKeys atomic.Int64
}

// New creates a new Limiter that admits at most limit requests per key within window.
func New(limit int, window time.Duration) (*Limiter, error) {
	return NewWithOpts(limit, window, Opts{})
}

// NewWithOpts creates a new Limiter with the provided options.
// It returns an error wrapping ErrInvalidConfig if limit or window is not positive.
func NewWithOpts(limit int, window time.Duration, opts Opts) (*Limiter, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit should be positive, got %d", ErrInvalidConfig, limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("%w: window should be positive, got %s", ErrInvalidConfig, window)
	}
	if opts.MaxKeys < 0 {
		return nil, fmt.Errorf("%w: max keys should not be negative, got %d", ErrInvalidConfig, opts.MaxKeys)
	}
	if opts.ShardsNum < 0 {
		return nil, fmt.Errorf("%w: shards number should not be negative, got %d", ErrInvalidConfig, opts.ShardsNum)
	}

	l := &Limiter{limit: limit, window: window, clock: opts.Clock, metrics: opts.MetricsCollector}
	if l.clock == nil {
		l.clock = SystemClock
	}
	if l.metrics == nil {
		l.metrics = disabledMetricsCollector
	}

	if opts.MaxKeys > 0 {
		store, err := newLRUStore(opts.MaxKeys, opts.KeysMetricsCollector)
		if err != nil {
			return nil, err
		}
		l.store = store
	} else {
		shardsNum := opts.ShardsNum
		if shardsNum == 0 {
			shardsNum = DefaultShardsNum
		}
		l.store = newShardedStore(shardsNum)
	}
	return l, nil
}

// NewFromConfig creates a new Limiter from the configuration.
// Non-zero MaxKeys and Shards of the configuration take precedence over the options.
func NewFromConfig(cfg *Config, opts Opts) (*Limiter, error) {
	if cfg.MaxKeys != 0 {
		opts.MaxKeys = cfg.MaxKeys
	}
	if cfg.Shards != 0 {
		opts.ShardsNum = cfg.Shards
	}
	return NewWithOpts(cfg.Limit, cfg.Window, opts)
}

// Limit returns the maximum number of admissions per key within the window.
func (l *Limiter) Limit() int {
	return l.limit
}

// Window returns the window duration.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Allow reports whether a request for the key may proceed.
// An admitted request is recorded against the key, a rejected one is not.
func (l *Limiter) Allow(key string) bool {
	allowed, _ := l.AllowWithRetryAfter(key)
	return allowed
}

// AllowWithRetryAfter works like Allow. For a rejected request it also returns the time
// after which the oldest admission of the key leaves the window and a new request may be admitted.
func (l *Limiter) AllowWithRetryAfter(key string) (allowed bool, retryAfter time.Duration) {
	allowed, _, retryAfter = l.AllowWithCount(key)
	return allowed, retryAfter
}

// AllowWithCount works like AllowWithRetryAfter and also returns the number of admissions
// of the key within the window as seen by this decision, including the request itself when it is admitted.
// Unlike a separate CurrentCount call, the count cannot be affected by concurrent requests for the same key.
func (l *Limiter) AllowWithCount(key string) (allowed bool, count int, retryAfter time.Duration) {
	st, created := l.lockState(key, true)
	allowed, retryAfter = l.admit(st)
	count = st.stamps.len()
	st.mu.Unlock()

	if created {
		l.metrics.SetKeysAmount(l.store.len())
	}
	if allowed {
		l.admitted.Inc()
		l.metrics.IncAdmitted()
	} else {
		l.rejected.Inc()
		l.metrics.IncRejected()
	}
	return allowed, count, retryAfter
}

func (l *Limiter) admit(st *keyState) (allowed bool, retryAfter time.Duration) {
	now := l.now(st)
	l.evict(st, now)
	if st.stamps.len() >= l.limit {
		// The oldest timestamp still counts at now == oldest+window, so it's gone a nanosecond later.
		return false, st.stamps.front().Add(l.window).Sub(now) + time.Nanosecond
	}
	st.stamps.pushBack(now, l.limit)
	return true, 0
}

// CurrentCount returns the number of admissions of the key within the window.
// It evicts stale timestamps but never records a new one.
// An unseen key has zero count and is not added to the store.
func (l *Limiter) CurrentCount(key string) int {
	st, _ := l.lockState(key, false)
	if st == nil {
		return 0
	}
	defer st.mu.Unlock()
	l.evict(st, l.now(st))
	return st.stamps.len()
}

// Sweep evicts stale timestamps of all keys and forgets the keys that have no admissions
// within the window anymore. It returns the number of forgotten keys.
// The limiter never calls it by itself.
func (l *Limiter) Sweep() int {
	removed := l.store.removeFunc(func(st *keyState) bool {
		st.mu.Lock()
		defer st.mu.Unlock()
		l.evict(st, l.now(st))
		if st.stamps.len() != 0 {
			return false
		}
		st.removed = true
		return true
	})
	if removed > 0 {
		l.droppedKeys.Add(int64(removed))
		l.metrics.AddDroppedKeys(removed)
		l.metrics.SetKeysAmount(l.store.len())
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	return l.store.len()
}

// Stats returns a snapshot of the limiter counters.
func (l *Limiter) Stats() Stats {
	return Stats{
		Keys:        l.store.len(),
		Admitted:    l.admitted.Load(),
		Rejected:    l.rejected.Load(),
		DroppedKeys: l.droppedKeys.Load(),
	}
}

// lockState returns the locked state of the key.
// If create is false and the key is unknown, it returns nil.
func (l *Limiter) lockState(key string, create bool) (st *keyState, created bool) {
	for {
		if create {
			st, created = l.store.getOrAdd(key)
		} else {
			var ok bool
			if st, ok = l.store.get(key); !ok {
				return nil, false
			}
		}
		st.mu.Lock()
		if !st.removed {
			return st, created
		}
		st.mu.Unlock()
	}
}

// now reads the clock under the state lock. The result never precedes the latest recorded timestamp,
// so the timestamps stay in chronological order even if the clock goes backwards.
func (l *Limiter) now(st *keyState) time.Time {
	now := l.clock.Now()
	if st.stamps.len() != 0 {
		if last := st.stamps.back(); now.Before(last) {
			return last
		}
	}
	return now
}

// evict removes timestamps strictly older than now-window, the boundary one is kept.
func (l *Limiter) evict(st *keyState, now time.Time) {
	cutoff := now.Add(-l.window)
	for st.stamps.len() != 0 && st.stamps.front().Before(cutoff) {
		st.stamps.popFront()
	}
}
