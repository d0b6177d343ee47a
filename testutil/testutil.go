/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package testutil contains helpers shared by tests of the module: a controllable clock
// and assertions for Prometheus metrics and HTTP responses.
package testutil

type tHelper interface {
	Helper()
}
