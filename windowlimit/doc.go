/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package windowlimit provides an exact sliding-window (sliding log) rate limiter
// that decides, per key, whether a request may proceed.
//
// For every key the limiter keeps the timestamps of the admitted requests that are still
// inside the trailing window (now-window, now]. A request is admitted if fewer than limit
// timestamps remain after the stale ones are evicted. Eviction is lazy: it happens on access
// to the key, there is no background goroutine. Limiter.Sweep may be called periodically
// by the host process to forget idle keys.
//
// Key features:
//   - Exact counting, the window boundary is inclusive (a timestamp exactly window old still counts)
//   - Per-key locking with a sharded key store, unrelated keys do not contend
//   - Optional bound on the number of tracked keys (LRU)
//   - Injectable clock, monotonic by default
//   - Prometheus metrics
//
// Example:
//
//	limiter, err := windowlimit.New(5, time.Minute)
//	if err != nil {
//		return err // errors.Is(err, windowlimit.ErrInvalidConfig)
//	}
//	if !limiter.Allow("user_123") {
//		// Too many requests, the caller decides whether to retry later.
//	}
package windowlimit
