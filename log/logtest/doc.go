/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package logtest provides a recording implementation of log.FieldLogger for tests
// that need to assert which decisions and lifecycle events were logged.
package logtest
