/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeClock(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)
	require.Equal(t, start, clock.Now())

	clock.Advance(time.Minute)
	require.Equal(t, start.Add(time.Minute), clock.Now())

	clock.Sleep(time.Second)
	require.Equal(t, start.Add(time.Minute+time.Second), clock.Now())

	clock.Set(start)
	require.Equal(t, start, clock.Now())
}
