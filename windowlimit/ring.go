/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package windowlimit

import "time"

const minRingCapacity = 4

// timestampRing is a FIFO of timestamps backed by a circular buffer.
// The buffer grows on demand (doubling) up to the capacity passed to pushBack.
type timestampRing struct {
	buf  []time.Time
	head int
	size int
}

func (r *timestampRing) len() int {
	return r.size
}

func (r *timestampRing) front() time.Time {
	return r.buf[r.head]
}

func (r *timestampRing) back() time.Time {
	return r.buf[(r.head+r.size-1)%len(r.buf)]
}

func (r *timestampRing) popFront() {
	r.buf[r.head] = time.Time{}
	r.head = (r.head + 1) % len(r.buf)
	r.size--
	if r.size == 0 {
		r.head = 0
	}
}

// pushBack appends t. maxCapacity must be greater than the current length.
func (r *timestampRing) pushBack(t time.Time, maxCapacity int) {
	if r.size == len(r.buf) {
		r.grow(maxCapacity)
	}
	r.buf[(r.head+r.size)%len(r.buf)] = t
	r.size++
}

func (r *timestampRing) grow(maxCapacity int) {
	newCap := len(r.buf) * 2
	if newCap < minRingCapacity {
		newCap = minRingCapacity
	}
	if newCap > maxCapacity {
		newCap = maxCapacity
	}
	newBuf := make([]time.Time, newCap)
	for i := 0; i < r.size; i++ {
		newBuf[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	r.buf = newBuf
	r.head = 0
}
