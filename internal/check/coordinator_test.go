// SPDX-License-Identifier: MPL-2.0

package check

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relaunch/relaunch/internal/manifest"
	"github.com/relaunch/relaunch/internal/testutil"
)

type fetchFunc func(ctx context.Context) (*manifest.Manifest, error)

func (f fetchFunc) Fetch(ctx context.Context) (*manifest.Manifest, error) { return f(ctx) }

// waitForCtx blocks like a fetcher stuck in a read until its context ends.
func waitForCtx(ctx context.Context) (*manifest.Manifest, error) {
	<-ctx.Done()
	return nil, context.Cause(ctx)
}

// startCheck runs fn in a goroutine and returns a channel for its result.
func startCheck(fn func() Result) <-chan Result {
	ch := make(chan Result, 1)
	go func() { ch <- fn() }()
	return ch
}

func receive(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("check did not complete")
		return Result{}
	}
}

func assertPending(t *testing.T, ch <-chan Result) {
	t.Helper()
	select {
	case r := <-ch:
		t.Fatalf("check completed early with %s (%v)", r.Status, r.Err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCoordinator_Check_Success(t *testing.T) {
	t.Parallel()

	want := manifest.New("2.0", "1.0")
	c := New(fetchFunc(func(context.Context) (*manifest.Manifest, error) { return want, nil }),
		WithClock(testutil.NewFakeClock(time.Time{})))

	r := c.Check(context.Background())
	if r.Status != Success {
		t.Fatalf("Status = %s, want success (err: %v)", r.Status, r.Err)
	}
	if r.Manifest != want {
		t.Errorf("Manifest = %v, want %v", r.Manifest, want)
	}
	if r.Err != nil {
		t.Errorf("Err = %v, want nil", r.Err)
	}
}

func TestCoordinator_Check_Failed(t *testing.T) {
	t.Parallel()

	c := New(fetchFunc(func(context.Context) (*manifest.Manifest, error) {
		return nil, manifest.ErrUnreachable
	}), WithClock(testutil.NewFakeClock(time.Time{})))

	r := c.Check(context.Background())
	if r.Status != Failed {
		t.Fatalf("Status = %s, want failed", r.Status)
	}
	if !errors.Is(r.Err, manifest.ErrUnreachable) {
		t.Errorf("Err = %v, want ErrUnreachable", r.Err)
	}
	if r.Manifest != nil {
		t.Error("failed result must not carry a manifest")
	}
}

func TestCoordinator_Check_UnreachableServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := New(manifest.NewFetcher(addr), WithBaseInterval(time.Second))
	r := c.Check(context.Background())
	if r.Status != Failed || !errors.Is(r.Err, manifest.ErrUnreachable) {
		t.Fatalf("got %s (%v), want failed with ErrUnreachable", r.Status, r.Err)
	}
}

func TestCoordinator_Check_TimesOut(t *testing.T) {
	t.Parallel()

	clk := testutil.NewFakeClock(time.Time{})
	c := New(fetchFunc(waitForCtx), WithClock(clk), WithBaseInterval(5*time.Second))

	ch := startCheck(func() Result { return c.Check(context.Background()) })
	clk.BlockUntilWaiters(1)

	clk.Advance(4 * time.Second)
	assertPending(t, ch)

	clk.Advance(time.Second)
	r := receive(t, ch)
	if r.Status != TimedOut {
		t.Fatalf("Status = %s, want timed-out", r.Status)
	}
	if !errors.Is(r.Err, ErrTimedOut) {
		t.Errorf("Err = %v, want ErrTimedOut", r.Err)
	}
}

func TestCoordinator_Check_FetcherSeesTimeoutCause(t *testing.T) {
	t.Parallel()

	clk := testutil.NewFakeClock(time.Time{})
	sawCause := make(chan error, 1)
	c := New(fetchFunc(func(ctx context.Context) (*manifest.Manifest, error) {
		<-ctx.Done()
		sawCause <- context.Cause(ctx)
		return nil, ctx.Err()
	}), WithClock(clk), WithBaseInterval(time.Second))

	ch := startCheck(func() Result { return c.Check(context.Background()) })
	clk.BlockUntilWaiters(1)
	clk.Advance(time.Second)

	if r := receive(t, ch); r.Status != TimedOut {
		t.Fatalf("Status = %s, want timed-out", r.Status)
	}
	select {
	case cause := <-sawCause:
		if !errors.Is(cause, ErrTimedOut) {
			t.Errorf("worker context cause = %v, want ErrTimedOut", cause)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker was not cancelled")
	}
}

func TestCoordinator_Retry_ScalesTimeout(t *testing.T) {
	t.Parallel()

	clk := testutil.NewFakeClock(time.Time{})
	c := New(fetchFunc(waitForCtx), WithClock(clk), WithBaseInterval(5*time.Second))

	if c.Iteration() != 1 || c.Timeout() != 5*time.Second {
		t.Fatalf("initial iteration=%d timeout=%s", c.Iteration(), c.Timeout())
	}

	ch := startCheck(func() Result { return c.Check(context.Background()) })
	clk.BlockUntilWaiters(1)
	clk.Advance(5 * time.Second)
	if r := receive(t, ch); r.Status != TimedOut {
		t.Fatalf("first attempt: Status = %s, want timed-out", r.Status)
	}

	ch = startCheck(func() Result { return c.Retry(context.Background()) })
	clk.BlockUntilWaiters(1)
	if c.Iteration() != 2 {
		t.Errorf("Iteration() = %d after retry, want 2", c.Iteration())
	}

	clk.Advance(5 * time.Second)
	assertPending(t, ch)
	clk.Advance(5 * time.Second)
	if r := receive(t, ch); r.Status != TimedOut {
		t.Fatalf("second attempt: Status = %s, want timed-out", r.Status)
	}
	if c.Timeout() != 10*time.Second {
		t.Errorf("Timeout() = %s, want 10s before the next retry", c.Timeout())
	}

	ch = startCheck(func() Result { return c.Retry(context.Background()) })
	clk.BlockUntilWaiters(1)
	if c.Timeout() != 15*time.Second {
		t.Errorf("Timeout() = %s on third attempt, want 15s", c.Timeout())
	}
	clk.Advance(15 * time.Second)
	receive(t, ch)
}

func TestCoordinator_Retry_AfterSuccessKeepsIteration(t *testing.T) {
	t.Parallel()

	c := New(fetchFunc(func(context.Context) (*manifest.Manifest, error) {
		return manifest.New("1.0"), nil
	}), WithClock(testutil.NewFakeClock(time.Time{})))

	c.Check(context.Background())
	c.Retry(context.Background())
	if c.Iteration() != 1 {
		t.Errorf("Iteration() = %d, want 1", c.Iteration())
	}
}

func TestCoordinator_SetBaseInterval_ResetsIteration(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := New(fetchFunc(func(context.Context) (*manifest.Manifest, error) {
		calls.Add(1)
		return nil, manifest.ErrUnreachable
	}), WithClock(testutil.NewFakeClock(time.Time{})))

	c.Check(context.Background())
	c.Retry(context.Background())
	c.Retry(context.Background())
	if c.Iteration() != 3 {
		t.Fatalf("Iteration() = %d, want 3", c.Iteration())
	}

	c.SetBaseInterval(2 * time.Second)
	if c.Iteration() != 1 {
		t.Errorf("Iteration() = %d after SetBaseInterval, want 1", c.Iteration())
	}
	if c.Timeout() != 2*time.Second {
		t.Errorf("Timeout() = %s, want 2s", c.Timeout())
	}
	if calls.Load() != 3 {
		t.Errorf("fetch called %d times, want 3", calls.Load())
	}
}

func TestCoordinator_Check_ParentCancelled(t *testing.T) {
	t.Parallel()

	// The fetcher ignores its context so only the caller-side select can
	// resolve the check.
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	c := New(fetchFunc(func(context.Context) (*manifest.Manifest, error) {
		<-release
		return manifest.New("late"), nil
	}), WithClock(testutil.NewFakeClock(time.Time{})))

	ctx, cancel := context.WithCancel(context.Background())
	ch := startCheck(func() Result { return c.Check(ctx) })
	assertPending(t, ch)
	cancel()

	r := receive(t, ch)
	if r.Status != Failed {
		t.Fatalf("Status = %s, want failed", r.Status)
	}
	if !errors.Is(r.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", r.Err)
	}
}

func TestSlot_FirstPublisherWins(t *testing.T) {
	t.Parallel()

	s := newSlot()
	done := make(chan struct{})
	for i := range 16 {
		go func() {
			defer func() { done <- struct{}{} }()
			if i%2 == 0 {
				s.publish(Result{Status: Success})
			} else {
				s.publish(Result{Status: TimedOut})
			}
		}()
	}
	for range 16 {
		<-done
	}

	first := <-s.ch
	if first.Status != Success && first.Status != TimedOut {
		t.Fatalf("unexpected status %s", first.Status)
	}
	select {
	case extra := <-s.ch:
		t.Fatalf("second result published: %s", extra.Status)
	default:
	}
}

func TestStatus_String(t *testing.T) {
	t.Parallel()

	for s, want := range map[Status]string{Success: "success", Failed: "failed", TimedOut: "timed-out", Status(0): "unknown"} {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, got, want)
		}
	}
}
