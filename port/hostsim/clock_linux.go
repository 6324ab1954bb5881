//go:build linux

package hostsim

import (
	"time"

	"golang.org/x/sys/unix"
)

// RealtimeClock reads the OS monotonic clock via CLOCK_MONOTONIC, avoiding
// time.Now's wall-clock skew concerns for a scheduler that must never see
// time run backward.
type RealtimeClock struct {
	epoch int64 // nanoseconds, CLOCK_MONOTONIC reading at construction
}

// NewRealtimeClock returns a RealtimeClock epoched at the current instant.
func NewRealtimeClock() *RealtimeClock {
	return &RealtimeClock{epoch: monotonicNanos()}
}

// NowUS implements Clock.
func (c *RealtimeClock) NowUS() uint64 {
	return uint64((monotonicNanos() - c.epoch) / int64(time.Microsecond))
}

func monotonicNanos() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return time.Now().UnixNano()
	}
	return ts.Nano()
}
