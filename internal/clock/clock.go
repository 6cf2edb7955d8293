// SPDX-License-Identifier: MPL-2.0

// Package clock abstracts time for the watchdog and the throughput math so
// both can be driven deterministically in tests.
package clock

import "time"

type (
	// Clock is the subset of the time package used by the updater.
	Clock interface {
		Now() time.Time
		After(d time.Duration) <-chan time.Time
		Since(t time.Time) time.Duration
	}

	// Real implements Clock using the system time.
	Real struct{}
)

// Now returns the current system time.
func (Real) Now() time.Time { return time.Now() }

// After returns a channel that receives the time after duration d.
func (Real) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Since returns the time elapsed since t.
func (Real) Since(t time.Time) time.Duration { return time.Since(t) }
