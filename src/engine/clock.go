package engine

import (
	"sync/atomic"
	"time"
)

// Clock hands out timestamps in Unix nanoseconds.
type Clock interface {
	Now() int64
}

// monotonicClock never returns the same value twice and never goes backwards,
// even when the wall clock does.
type monotonicClock struct {
	last atomic.Int64
}

// NewMonotonicClock returns the clock used for admission timestamps.
func NewMonotonicClock() Clock {
	return &monotonicClock{}
}

func (c *monotonicClock) Now() int64 {
	for {
		last := c.last.Load()
		now := time.Now().UnixNano()
		if now <= last {
			now = last + 1
		}
		if c.last.CompareAndSwap(last, now) {
			return now
		}
	}
}
