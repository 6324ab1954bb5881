//go:build !linux

package hostsim

import "time"

// RealtimeClock reads time.Since against a fixed epoch. On platforms where
// we don't have a direct CLOCK_MONOTONIC syscall wired up, time.Since is
// itself monotonic-safe (the Go runtime tracks a monotonic reading inside
// time.Time since Go 1.9).
type RealtimeClock struct {
	epoch time.Time
}

// NewRealtimeClock returns a RealtimeClock epoched at the current instant.
func NewRealtimeClock() *RealtimeClock {
	return &RealtimeClock{epoch: time.Now()}
}

// NowUS implements Clock.
func (c *RealtimeClock) NowUS() uint64 {
	return uint64(time.Since(c.epoch) / time.Microsecond)
}
