/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package lrucache provides a generic in-memory cache with LRU eviction policy and Prometheus metrics.
// It is used to bound the number of keys tracked by rate limiters.
package lrucache
