// SPDX-License-Identifier: MPL-2.0

package check

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/relaunch/relaunch/internal/manifest"
)

// LinearTimeout adapts the coordinator's iteration counter to backoff.BackOff.
// Every NextBackOff advances the iteration, so the following Check gets a
// longer deadline, and returns a pause of Step scaled by the same iteration.
type LinearTimeout struct {
	Coordinator *Coordinator
	Step        time.Duration
}

var _ backoff.BackOff = (*LinearTimeout)(nil)

// NextBackOff advances the iteration and returns the pause before the next attempt.
func (l *LinearTimeout) NextBackOff() time.Duration {
	l.Coordinator.advance()
	return time.Duration(l.Coordinator.Iteration()) * l.Step
}

// Reset restores iteration 1.
func (l *LinearTimeout) Reset() {
	l.Coordinator.reset()
}

// CheckWithRetries runs checks until one succeeds, the manifest proves
// malformed, ctx ends, or retries extra attempts have failed. notify is
// called before each pause and may be nil.
func (c *Coordinator) CheckWithRetries(ctx context.Context, retries uint64, step time.Duration, notify func(Result, time.Duration)) Result {
	if retries == 0 {
		return c.Check(ctx)
	}

	var last Result
	op := func() error {
		last = c.Check(ctx)
		switch {
		case last.OK():
			return nil
		case errors.Is(last.Err, manifest.ErrMalformed), ctx.Err() != nil:
			return backoff.Permanent(last.Err)
		default:
			return last.Err
		}
	}

	b := backoff.WithContext(backoff.WithMaxRetries(&LinearTimeout{Coordinator: c, Step: step}, retries), ctx)
	_ = backoff.RetryNotify(op, b, func(_ error, pause time.Duration) {
		c.logger.Info("retrying update check", "status", last.Status, "pause", pause, "timeout", c.Timeout())
		if notify != nil {
			notify(last, pause)
		}
	})
	return last
}
