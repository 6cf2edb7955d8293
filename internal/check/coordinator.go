// SPDX-License-Identifier: MPL-2.0

package check

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/relaunch/relaunch/internal/clock"
	"github.com/relaunch/relaunch/internal/manifest"
)

// DefaultBaseInterval is the deadline of the first check attempt.
const DefaultBaseInterval = 5 * time.Second

const (
	// Success means the manifest was fetched and parsed.
	Success Status = iota + 1
	// Failed means the fetch returned an error or the caller cancelled.
	Failed
	// TimedOut means the watchdog deadline elapsed first.
	TimedOut
)

// ErrTimedOut is the cancellation cause set by the watchdog.
var ErrTimedOut = errors.New("update check timed out")

type (
	// Fetcher retrieves the published manifest.
	Fetcher interface {
		Fetch(ctx context.Context) (*manifest.Manifest, error)
	}

	// Status classifies a Result.
	Status int

	// Result is the outcome of one check attempt. Manifest is set only for
	// Success; Err is set for Failed and TimedOut.
	Result struct {
		Status   Status
		Manifest *manifest.Manifest
		Err      error
	}

	// Coordinator runs checks and tracks the retry iteration.
	Coordinator struct {
		fetcher Fetcher
		clock   clock.Clock
		logger  *log.Logger

		mu         sync.Mutex
		base       time.Duration
		iteration  int
		lastFailed bool
	}

	// Option configures a Coordinator during construction.
	Option func(*Coordinator)

	// slot is an exchange-once result cell.
	slot struct {
		once sync.Once
		ch   chan Result
	}
)

// WithBaseInterval sets the deadline of the first attempt. Non-positive
// values are ignored.
func WithBaseInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.base = d
		}
	}
}

// WithClock sets the clock the watchdog waits on.
func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) {
		c.clock = clk
	}
}

// WithLogger sets the logger used for diagnostic output.
func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// New creates a Coordinator for fetcher with iteration 1.
func New(fetcher Fetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetcher:   fetcher,
		clock:     clock.Real{},
		logger:    log.New(io.Discard),
		base:      DefaultBaseInterval,
		iteration: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check runs one attempt with the current deadline and blocks until the
// worker finishes, the watchdog fires, or ctx is cancelled.
func (c *Coordinator) Check(ctx context.Context) Result {
	timeout := c.Timeout()
	c.logger.Debug("starting check", "timeout", timeout, "iteration", c.Iteration())

	workCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	s := newSlot()

	// Worker.
	go func() {
		m, err := c.fetcher.Fetch(workCtx)
		s.publish(classify(workCtx, m, err))
	}()

	// Watchdog.
	go func() {
		select {
		case <-c.clock.After(timeout):
			cancel(ErrTimedOut)
			s.publish(Result{Status: TimedOut, Err: fmt.Errorf("%w after %s", ErrTimedOut, timeout)})
		case <-workCtx.Done():
		}
	}()

	var r Result
	select {
	case r = <-s.ch:
	case <-ctx.Done():
		s.publish(Result{Status: Failed, Err: context.Cause(ctx)})
		r = <-s.ch
	}

	c.mu.Lock()
	c.lastFailed = r.Status != Success
	c.mu.Unlock()

	c.logger.Debug("check finished", "status", r.Status, "err", r.Err)
	return r
}

// Retry advances the iteration when the previous attempt failed or timed
// out, then runs Check with the longer deadline.
func (c *Coordinator) Retry(ctx context.Context) Result {
	c.advance()
	return c.Check(ctx)
}

// Iteration returns the current retry iteration, starting at 1.
func (c *Coordinator) Iteration() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.iteration
}

// BaseInterval returns the deadline unit.
func (c *Coordinator) BaseInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base
}

// SetBaseInterval overrides the deadline unit and resets the iteration to 1.
func (c *Coordinator) SetBaseInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.base = d
	}
	c.iteration = 1
	c.lastFailed = false
}

// Timeout returns the deadline the next Check will use.
func (c *Coordinator) Timeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.iteration) * c.base
}

func (c *Coordinator) advance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFailed {
		c.iteration++
		c.lastFailed = false
	}
}

func (c *Coordinator) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.iteration = 1
	c.lastFailed = false
}

// classify maps a fetch outcome to a Result. A fetch error whose context
// cause is ErrTimedOut is a timeout regardless of how the fetcher wrapped it.
func classify(ctx context.Context, m *manifest.Manifest, err error) Result {
	if err == nil {
		return Result{Status: Success, Manifest: m}
	}
	if errors.Is(context.Cause(ctx), ErrTimedOut) {
		return Result{Status: TimedOut, Err: fmt.Errorf("%w: %w", ErrTimedOut, err)}
	}
	return Result{Status: Failed, Err: err}
}

func newSlot() *slot {
	return &slot{ch: make(chan Result, 1)}
}

// publish stores r if nothing was published yet. It never blocks.
func (s *slot) publish(r Result) {
	s.once.Do(func() {
		s.ch <- r
	})
}

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// OK reports whether the result carries a manifest.
func (r Result) OK() bool { return r.Status == Success }
