/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package windowlimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimestampRing(t *testing.T) {
	base := time.Unix(0, 0)
	at := func(sec int) time.Time { return base.Add(time.Duration(sec) * time.Second) }

	var r timestampRing
	require.Equal(t, 0, r.len())

	const maxCap = 6
	for i := 0; i < 5; i++ {
		r.pushBack(at(i), maxCap)
	}
	require.Equal(t, 5, r.len())
	require.Len(t, r.buf, maxCap) // 4 doubled to 8, capped by 6
	require.Equal(t, at(0), r.front())
	require.Equal(t, at(4), r.back())

	// Wrap around.
	r.popFront()
	r.popFront()
	r.pushBack(at(5), maxCap)
	r.pushBack(at(6), maxCap)
	r.pushBack(at(7), maxCap)
	require.Equal(t, 6, r.len())
	require.Len(t, r.buf, maxCap)
	require.Equal(t, at(2), r.front())
	require.Equal(t, at(7), r.back())

	var got []time.Time
	for r.len() > 0 {
		got = append(got, r.front())
		r.popFront()
	}
	require.Equal(t, []time.Time{at(2), at(3), at(4), at(5), at(6), at(7)}, got)
	require.Equal(t, 0, r.head)
}

func TestTimestampRing_GrowKeepsOrder(t *testing.T) {
	base := time.Unix(0, 0)
	var r timestampRing
	for i := 0; i < 3; i++ {
		r.pushBack(base.Add(time.Duration(i)), 100)
	}
	r.popFront()
	for i := 3; i < 20; i++ {
		r.pushBack(base.Add(time.Duration(i)), 100)
	}
	require.Equal(t, 19, r.len())
	for i := 1; i < 20; i++ {
		require.Equal(t, base.Add(time.Duration(i)), r.front())
		r.popFront()
	}
}
