/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit adapts several rate limiting algorithms to a single Limiter contract
// and provides a RequestProcessor that applies a Limiter to incoming requests.
//
// Supported algorithms:
//   - sliding log: exact per-key trailing window, backed by the windowlimit package
//   - sliding window: approximate weighted window of two fixed buckets
//   - leaky bucket: GCRA with an optional burst
//
// Requests rejected by the Limiter may wait in a bounded per-key backlog
// and are re-checked after the estimated retry-after interval.
package ratelimit
