// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
)

// maxManifestBytes bounds the manifest document size (1 MiB).
const maxManifestBytes = 1 << 20

// errTooLarge is returned by boundedReader past its limit.
var errTooLarge = errors.New("document exceeds size limit")

type (
	// Fetcher retrieves and parses the manifest from a fixed URL. It performs
	// no retries; retry policy belongs to the caller.
	Fetcher struct {
		url        string
		httpClient *http.Client
		userAgent  string
		onConnect  func()
		logger     *log.Logger
	}

	// FetcherOption configures a Fetcher during construction.
	FetcherOption func(*Fetcher)
)

// WithHTTPClient sets a custom HTTP client, useful for tests or proxies.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// WithUserAgent sets the User-Agent header sent with the request.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithOnConnect registers a hook invoked once the source has answered with
// a successful status, before the body is parsed.
func WithOnConnect(fn func()) FetcherOption {
	return func(f *Fetcher) {
		f.onConnect = fn
	}
}

// WithLogger sets the logger used for diagnostic output.
func WithLogger(l *log.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// NewFetcher creates a Fetcher for the manifest at rawURL.
func NewFetcher(rawURL string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		url:        rawURL,
		httpClient: http.DefaultClient,
		userAgent:  "relaunch/dev",
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URL returns the manifest location.
func (f *Fetcher) URL() string { return f.url }

// Fetch downloads and parses the manifest. Connection and HTTP failures wrap
// ErrUnreachable; structural problems are reported as *MalformedError.
func (f *Fetcher) Fetch(ctx context.Context) (*Manifest, error) {
	f.logger.Debug("reading manifest", "url", RedactURL(f.url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrUnreachable, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		// A cancelled context is not a connectivity problem.
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreachable, RedactURL(f.url), err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: unexpected status %d", ErrUnreachable, RedactURL(f.url), resp.StatusCode)
	}

	f.logger.Debug("connection established", "status", resp.StatusCode)
	if f.onConnect != nil {
		f.onConnect()
	}

	m, err := Parse(ctx, &boundedReader{r: resp.Body, limit: maxManifestBytes})
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return nil, &MalformedError{Reason: fmt.Sprintf("document larger than %d bytes", maxManifestBytes)}
		}
		var malformed *MalformedError
		if errors.As(err, &malformed) || ctx.Err() != nil {
			return nil, err
		}
		// Body read failures after connecting are transport problems.
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	f.logger.Debug("manifest parsed", "current", m.Current(), "older", len(m.older))
	return m, nil
}

// boundedReader fails with errTooLarge once more than limit bytes were read,
// so an oversized document is rejected instead of parsed truncated.
type boundedReader struct {
	r     io.Reader
	limit int64
	n     int64
}

func (b *boundedReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	b.n += int64(n)
	if b.n > b.limit {
		return n, errTooLarge
	}
	return n, err
}

// RedactURL strips query parameters and fragments for safe logging.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
