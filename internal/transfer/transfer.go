// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/relaunch/relaunch/internal/clock"
	"github.com/relaunch/relaunch/internal/manifest"
)

// DefaultChunkSize is the write granularity and cancellation checkpoint.
const DefaultChunkSize = 32 << 10

//nolint:gochecknoglobals // Test seam for os.Rename().
var osRename = os.Rename

type (
	// Transfer downloads artifacts with resume support. A Transfer holds no
	// per-download state and may be reused; only one download may target a
	// given destination at a time.
	Transfer struct {
		httpClient *http.Client
		chunkSize  int
		clock      clock.Clock
		userAgent  string
		logger     *log.Logger
	}

	// Option configures a Transfer during construction.
	Option func(*Transfer)

	// Request describes one download.
	Request struct {
		Source      string
		Destination string
		Version     manifest.VersionTag
		// OnProgress, if set, is called synchronously after the size probe
		// and after every chunk.
		OnProgress func(Progress)
	}
)

// WithHTTPClient sets a custom HTTP client, useful for tests or proxies.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transfer) {
		t.httpClient = c
	}
}

// WithChunkSize sets the chunk size in bytes. Non-positive values are ignored.
func WithChunkSize(n int) Option {
	return func(t *Transfer) {
		if n > 0 {
			t.chunkSize = n
		}
	}
}

// WithClock sets the clock used for throughput and ETA.
func WithClock(c clock.Clock) Option {
	return func(t *Transfer) {
		t.clock = c
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(t *Transfer) {
		t.userAgent = ua
	}
}

// WithLogger sets the logger used for diagnostic output.
func WithLogger(l *log.Logger) Option {
	return func(t *Transfer) {
		t.logger = l
	}
}

// New creates a Transfer.
func New(opts ...Option) *Transfer {
	t := &Transfer{
		httpClient: http.DefaultClient,
		chunkSize:  DefaultChunkSize,
		clock:      clock.Real{},
		userAgent:  "relaunch/dev",
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Download fetches req.Source into req.Destination, resuming a partial file
// left by an earlier attempt for the same version.
func (t *Transfer) Download(ctx context.Context, req Request) error {
	dest := req.Destination
	if err := ctx.Err(); err != nil {
		return cancelled(dest, context.Cause(ctx))
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ioFailure("create directory", dir, err)
	}

	partial := PartialPath(dest)
	if err := t.prepare(req.Version, dest); err != nil {
		return err
	}

	total, err := t.probe(ctx, req.Source)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(dest, context.Cause(ctx))
		}
		return err
	}

	baseline, err := fileSize(partial)
	if err != nil {
		return ioFailure("stat partial", partial, err)
	}

	state := State{
		BytesTransferred: baseline,
		TotalBytes:       total,
		BaselineBytes:    baseline,
		StartedAt:        t.clock.Now(),
	}

	if baseline >= total {
		t.logger.Info("partial artifact already complete", "bytes", baseline, "total", total)
		state.BytesTransferred = total
		t.report(req, state)
		return t.finalize(dest)
	}
	t.report(req, state)

	if err := t.fetch(ctx, req, &state); err != nil {
		return err
	}
	return t.finalize(dest)
}

// prepare validates resume state: a marker naming another version, or an
// unreadable marker, discards the partial file; a partial file without a
// marker is untrusted and discarded too. The marker is then (re)written.
func (t *Transfer) prepare(version manifest.VersionTag, dest string) error {
	partial := PartialPath(dest)
	marker := Marker{Path: MarkerPath(dest)}

	recorded, ok, err := marker.Read()
	switch {
	case err != nil:
		t.logger.Warn("unreadable resume marker, starting over", "path", marker.Path, "err", err)
	case ok && recorded == version:
		t.logger.Debug("resuming partial artifact", "version", version)
		return nil
	case ok:
		t.logger.Info("discarding partial artifact of another version", "recorded", recorded, "requested", version)
	}

	if err := Discard(dest); err != nil {
		return err
	}
	if err := marker.Write(version); err != nil {
		return ioFailure("write marker", marker.Path, err)
	}
	t.logger.Debug("starting fresh download", "partial", partial, "version", version)
	return nil
}

// probe asks the source for the artifact size without transferring it. HEAD
// is tried first; servers rejecting HEAD get a GET whose body is not read.
func (t *Transfer) probe(ctx context.Context, src string) (uint64, error) {
	resp, err := t.do(ctx, http.MethodHead, src, "")
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		t.logger.Debug("HEAD not supported, probing with GET", "status", resp.StatusCode)
		resp, err = t.do(ctx, http.MethodGet, src, "")
		if err != nil {
			return 0, err
		}
		_ = resp.Body.Close()
	}

	if resp.StatusCode != http.StatusOK {
		return 0, unreachable("probe", manifest.RedactURL(src), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if resp.ContentLength < 0 {
		return 0, unreachable("probe", manifest.RedactURL(src), errors.New("server did not report the artifact size"))
	}
	return uint64(resp.ContentLength), nil
}

// fetch requests the missing byte range and appends it to the partial file.
func (t *Transfer) fetch(ctx context.Context, req Request, state *State) error {
	dest := req.Destination
	partial := PartialPath(dest)
	rangeHeader := "bytes=" + strconv.FormatUint(state.BaselineBytes, 10) + "-" + strconv.FormatUint(state.TotalBytes, 10)

	resp, err := t.do(ctx, http.MethodGet, req.Source, rangeHeader)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(dest, context.Cause(ctx))
		}
		return err
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		if state.BaselineBytes > 0 {
			// Range was ignored; the body starts at byte 0.
			t.logger.Warn("server ignored range request, restarting from zero", "discarded", state.BaselineBytes)
			flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			state.BaselineBytes = 0
			state.BytesTransferred = 0
			t.report(req, *state)
		}
	case http.StatusRequestedRangeNotSatisfiable:
		if state.BaselineBytes >= state.TotalBytes {
			return nil
		}
		return unreachable("download", manifest.RedactURL(req.Source), fmt.Errorf("range %s not satisfiable", rangeHeader))
	default:
		return unreachable("download", manifest.RedactURL(req.Source), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	f, err := os.OpenFile(partial, flags, 0o644)
	if err != nil {
		return ioFailure("open partial", partial, err)
	}
	closed := false
	defer func() {
		if !closed {
			_ = f.Close()
		}
	}()

	t.logger.Info("downloading", "from", state.BytesTransferred, "total", state.TotalBytes, "chunk", t.chunkSize)

	buf := make([]byte, t.chunkSize)
	for state.BytesTransferred < state.TotalBytes {
		want := uint64(len(buf))
		if rest := state.TotalBytes - state.BytesTransferred; rest < want {
			want = rest
		}

		n, readErr := io.ReadFull(resp.Body, buf[:want])
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return ioFailure("write partial", partial, err)
			}
			state.BytesTransferred += uint64(n)
		}

		if ctx.Err() != nil {
			t.logger.Info("download cancelled", "bytes", state.BytesTransferred, "total", state.TotalBytes)
			return cancelled(dest, context.Cause(ctx))
		}

		if n > 0 {
			t.report(req, *state)
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
				if state.BytesTransferred < state.TotalBytes {
					return unreachable("download", manifest.RedactURL(req.Source), io.ErrUnexpectedEOF)
				}
				break
			}
			return unreachable("download", manifest.RedactURL(req.Source), readErr)
		}
	}

	if err := f.Sync(); err != nil {
		return ioFailure("sync partial", partial, err)
	}
	closed = true
	if err := f.Close(); err != nil {
		return ioFailure("close partial", partial, err)
	}
	return nil
}

// finalize deletes the marker and moves the completed partial file onto
// dest. Rename replaces dest atomically where the platform allows it; when
// it refuses to overwrite, dest is removed first.
func (t *Transfer) finalize(dest string) error {
	partial := PartialPath(dest)
	marker := Marker{Path: MarkerPath(dest)}

	if err := marker.Remove(); err != nil {
		return ioFailure("remove marker", marker.Path, err)
	}

	if err := osRename(partial, dest); err != nil {
		t.logger.Debug("rename over destination failed, removing it first", "err", err)
		if rmErr := removeIfExists(dest); rmErr != nil {
			return ioFailure("remove destination", dest, rmErr)
		}
		if err := osRename(partial, dest); err != nil {
			return ioFailure("replace destination", dest, err)
		}
	}

	t.logger.Info("artifact in place", "path", dest)
	return nil
}

func (t *Transfer) report(req Request, s State) {
	if req.OnProgress != nil {
		req.OnProgress(s.Progress(t.clock.Now()))
	}
}

func (t *Transfer) do(ctx context.Context, method, src, rangeHeader string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, src, http.NoBody)
	if err != nil {
		return nil, unreachable("create request", manifest.RedactURL(src), err)
	}
	httpReq.Header.Set("User-Agent", t.userAgent)
	if rangeHeader != "" {
		httpReq.Header.Set("Range", rangeHeader)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, unreachable(method, manifest.RedactURL(src), err)
	}
	return resp, nil
}

func fileSize(path string) (uint64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}
