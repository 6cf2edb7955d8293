// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
)

type (
	// artifactServer serves data with HEAD and single byte-range support and
	// records every Range header it receives.
	artifactServer struct {
		*httptest.Server

		data        []byte
		ignoreRange bool
		rejectHead  bool
		// cutAfter truncates GET bodies after this many bytes while still
		// announcing the full length. Zero disables it.
		cutAfter int
		// onGet runs before a GET body is written.
		onGet func()

		mu     sync.Mutex
		ranges []string
	}
)

func newArtifactServer(t *testing.T, data []byte, configure func(*artifactServer)) *artifactServer {
	t.Helper()

	s := &artifactServer{data: data}
	if configure != nil {
		configure(s)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *artifactServer) handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodHead:
		if s.rejectHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(s.data)))
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodGet:
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rng := r.Header.Get("Range")
	s.mu.Lock()
	s.ranges = append(s.ranges, rng)
	s.mu.Unlock()

	if s.onGet != nil {
		s.onGet()
	}

	start := 0
	status := http.StatusOK
	if rng != "" && !s.ignoreRange {
		var end int
		if _, err := fmt.Sscanf(rng, "bytes=%d-%d", &start, &end); err != nil || start > len(s.data) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		status = http.StatusPartialContent
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, len(s.data)-1, len(s.data)))
	}

	body := s.data[start:]
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if s.cutAfter > 0 && s.cutAfter < len(body) {
		body = body[:s.cutAfter]
	}
	_, _ = w.Write(body)
}

func (s *artifactServer) Ranges() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ranges...)
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*31 + i/251)
	}
	return b
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return b
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func assertMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected %s to be absent, stat err = %v", path, err)
	}
}

func TestDownload_Fresh(t *testing.T) {
	t.Parallel()

	data := payload(100_000)
	srv := newArtifactServer(t, data, nil)
	dest := filepath.Join(t.TempDir(), "app", "app.jar")

	var reports []Progress
	tr := New(WithHTTPClient(srv.Client()), WithChunkSize(8<<10))
	err := tr.Download(context.Background(), Request{
		Source:      srv.URL + "/app.jar",
		Destination: dest,
		Version:     "2.0",
		OnProgress:  func(p Progress) { reports = append(reports, p) },
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	if !bytes.Equal(readFile(t, dest), data) {
		t.Error("destination content does not match source")
	}
	assertMissing(t, PartialPath(dest))
	assertMissing(t, MarkerPath(dest))

	if got := srv.Ranges(); len(got) != 1 || got[0] != "bytes=0-100000" {
		t.Errorf("Range headers = %v, want [bytes=0-100000]", got)
	}
	if len(reports) < 2 {
		t.Fatalf("got %d progress reports, want initial plus chunks", len(reports))
	}
	if reports[0].BytesTransferred != 0 || reports[0].TotalBytes != 100_000 {
		t.Errorf("initial report = %d/%d, want 0/100000", reports[0].BytesTransferred, reports[0].TotalBytes)
	}
	last := reports[len(reports)-1]
	if !last.Done() {
		t.Errorf("last report = %d/%d, want complete", last.BytesTransferred, last.TotalBytes)
	}
	for i := 1; i < len(reports); i++ {
		if reports[i].BytesTransferred < reports[i-1].BytesTransferred {
			t.Errorf("progress went backwards at report %d", i)
		}
	}
}

func TestDownload_ReplacesExistingDestination(t *testing.T) {
	t.Parallel()

	data := payload(5_000)
	srv := newArtifactServer(t, data, nil)
	dest := filepath.Join(t.TempDir(), "app.jar")
	writeFile(t, dest, []byte("old release"))

	if err := New(WithHTTPClient(srv.Client())).Download(context.Background(), Request{
		Source: srv.URL, Destination: dest, Version: "2.0",
	}); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if !bytes.Equal(readFile(t, dest), data) {
		t.Error("destination was not replaced")
	}
}

// Resume with 400,000 of 1,000,000 bytes on disk with a matching marker.
func TestDownload_ResumesFromPartial(t *testing.T) {
	t.Parallel()

	data := payload(1_000_000)
	srv := newArtifactServer(t, data, nil)
	dest := filepath.Join(t.TempDir(), "app.jar")
	writeFile(t, PartialPath(dest), data[:400_000])
	writeFile(t, MarkerPath(dest), []byte("1.0\n"))

	var first *Progress
	err := New(WithHTTPClient(srv.Client())).Download(context.Background(), Request{
		Source:      srv.URL,
		Destination: dest,
		Version:     "1.0",
		OnProgress: func(p Progress) {
			if first == nil {
				first = &p
			}
		},
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	if got := srv.Ranges(); len(got) != 1 || got[0] != "bytes=400000-1000000" {
		t.Errorf("Range headers = %v, want [bytes=400000-1000000]", got)
	}
	if first == nil || first.BytesTransferred != 400_000 || first.TotalBytes != 1_000_000 {
		t.Errorf("first progress = %+v, want 400000/1000000", first)
	}
	if first != nil && (first.BaselineBytes != 400_000 || first.ETAKnown) {
		t.Errorf("first progress baseline=%d etaKnown=%v, want 400000/false", first.BaselineBytes, first.ETAKnown)
	}
	if !bytes.Equal(readFile(t, dest), data) {
		t.Error("resumed content does not match source")
	}
}

func TestDownload_ResumeIsIdempotentAfterInterruption(t *testing.T) {
	t.Parallel()

	const cut = 123_457
	data := payload(300_000)
	dest := filepath.Join(t.TempDir(), "app.jar")

	broken := newArtifactServer(t, data, func(s *artifactServer) { s.cutAfter = cut })
	err := New(WithHTTPClient(broken.Client()), WithChunkSize(4<<10)).Download(context.Background(), Request{
		Source: broken.URL, Destination: dest, Version: "3.0",
	})
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("interrupted Download() error = %v, want ErrUnreachable", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("interrupted Download() error = %v, want io.ErrUnexpectedEOF cause", err)
	}
	assertMissing(t, dest)

	partial := readFile(t, PartialPath(dest))
	if len(partial) != cut {
		t.Fatalf("partial size = %d, want %d", len(partial), cut)
	}
	if !bytes.Equal(partial, data[:cut]) {
		t.Fatal("partial content is corrupted")
	}

	healthy := newArtifactServer(t, data, nil)
	if err := New(WithHTTPClient(healthy.Client())).Download(context.Background(), Request{
		Source: healthy.URL, Destination: dest, Version: "3.0",
	}); err != nil {
		t.Fatalf("resumed Download() error = %v", err)
	}

	want := fmt.Sprintf("bytes=%d-%d", cut, len(data))
	if got := healthy.Ranges(); len(got) != 1 || got[0] != want {
		t.Errorf("Range headers = %v, want [%s]", got, want)
	}
	if !bytes.Equal(readFile(t, dest), data) {
		t.Error("final content does not match source")
	}
}

func TestDownload_MarkerMismatchDiscardsBeforeWriting(t *testing.T) {
	t.Parallel()

	data := payload(50_000)
	dest := filepath.Join(t.TempDir(), "app.jar")
	writeFile(t, PartialPath(dest), bytes.Repeat([]byte("x"), 20_000))
	writeFile(t, MarkerPath(dest), []byte("1.0\n"))

	var (
		mu             sync.Mutex
		stateAtRequest struct {
			partialSize int64
			marker      string
		}
	)
	srv := newArtifactServer(t, data, func(s *artifactServer) {
		s.onGet = func() {
			mu.Lock()
			defer mu.Unlock()
			if info, err := os.Stat(PartialPath(dest)); err == nil {
				stateAtRequest.partialSize = info.Size()
			} else {
				stateAtRequest.partialSize = -1
			}
			b, _ := os.ReadFile(MarkerPath(dest))
			stateAtRequest.marker = strings.TrimSpace(string(b))
		}
	})

	if err := New(WithHTTPClient(srv.Client())).Download(context.Background(), Request{
		Source: srv.URL, Destination: dest, Version: "1.1",
	}); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if stateAtRequest.partialSize > 0 {
		t.Errorf("stale partial still had %d bytes when the download started", stateAtRequest.partialSize)
	}
	if stateAtRequest.marker != "1.1" {
		t.Errorf("marker = %q when the download started, want 1.1", stateAtRequest.marker)
	}
	if got := srv.Ranges(); len(got) != 1 || got[0] != "bytes=0-50000" {
		t.Errorf("Range headers = %v, want [bytes=0-50000]", got)
	}
	if !bytes.Equal(readFile(t, dest), data) {
		t.Error("content does not match the requested version")
	}
}

func TestDownload_PartialWithoutMarkerIsDiscarded(t *testing.T) {
	t.Parallel()

	data := payload(10_000)
	srv := newArtifactServer(t, data, nil)
	dest := filepath.Join(t.TempDir(), "app.jar")
	writeFile(t, PartialPath(dest), []byte("untrusted"))

	if err := New(WithHTTPClient(srv.Client())).Download(context.Background(), Request{
		Source: srv.URL, Destination: dest, Version: "2.0",
	}); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if got := srv.Ranges(); len(got) != 1 || got[0] != "bytes=0-10000" {
		t.Errorf("Range headers = %v, want [bytes=0-10000]", got)
	}
	if !bytes.Equal(readFile(t, dest), data) {
		t.Error("content does not match source")
	}
}

func TestDownload_CancelStopsWithinOneChunk(t *testing.T) {
	t.Parallel()

	const chunk = 4 << 10
	data := payload(512 << 10)
	srv := newArtifactServer(t, data, nil)
	dest := filepath.Join(t.TempDir(), "app.jar")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cancelledAt uint64
	tr := New(WithHTTPClient(srv.Client()), WithChunkSize(chunk))
	err := tr.Download(ctx, Request{
		Source:      srv.URL,
		Destination: dest,
		Version:     "2.0",
		OnProgress: func(p Progress) {
			if cancelledAt == 0 && p.BytesTransferred >= 3*chunk {
				cancelledAt = p.BytesTransferred
				cancel()
			}
		},
	})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Download() error = %v, want ErrCancelled", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Download() error = %v, want context.Canceled cause", err)
	}

	assertMissing(t, dest)
	partial := readFile(t, PartialPath(dest))
	if uint64(len(partial)) > cancelledAt+chunk {
		t.Errorf("partial grew to %d bytes after cancelling at %d (chunk %d)", len(partial), cancelledAt, chunk)
	}
	if !bytes.Equal(partial, data[:len(partial)]) {
		t.Error("partial content is corrupted")
	}
	if tag, ok, err := (Marker{Path: MarkerPath(dest)}).Read(); err != nil || !ok || tag != "2.0" {
		t.Errorf("marker = %q ok=%v err=%v, want 2.0", tag, ok, err)
	}

	// The remaining bytes are fetched by the next attempt.
	if err := New(WithHTTPClient(srv.Client())).Download(context.Background(), Request{
		Source: srv.URL, Destination: dest, Version: "2.0",
	}); err != nil {
		t.Fatalf("resumed Download() error = %v", err)
	}
	ranges := srv.Ranges()
	want := fmt.Sprintf("bytes=%d-%d", len(partial), len(data))
	if ranges[len(ranges)-1] != want {
		t.Errorf("resume Range = %q, want %q", ranges[len(ranges)-1], want)
	}
	if !bytes.Equal(readFile(t, dest), data) {
		t.Error("final content does not match source")
	}
}

func TestDownload_AlreadyCancelled(t *testing.T) {
	t.Parallel()

	srv := newArtifactServer(t, payload(10), nil)
	dest := filepath.Join(t.TempDir(), "app.jar")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(WithHTTPClient(srv.Client())).Download(ctx, Request{Source: srv.URL, Destination: dest, Version: "1"})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Download() error = %v, want ErrCancelled", err)
	}
	if len(srv.Ranges()) != 0 {
		t.Error("no request should be sent once cancelled")
	}
}

func TestDownload_ServerIgnoresRange(t *testing.T) {
	t.Parallel()

	data := payload(60_000)
	srv := newArtifactServer(t, data, func(s *artifactServer) { s.ignoreRange = true })
	dest := filepath.Join(t.TempDir(), "app.jar")
	writeFile(t, PartialPath(dest), data[:25_000])
	writeFile(t, MarkerPath(dest), []byte("2.0"))

	var reports []Progress
	err := New(WithHTTPClient(srv.Client())).Download(context.Background(), Request{
		Source:      srv.URL,
		Destination: dest,
		Version:     "2.0",
		OnProgress:  func(p Progress) { reports = append(reports, p) },
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if !bytes.Equal(readFile(t, dest), data) {
		t.Error("restarted content does not match source")
	}
	if len(reports) < 2 || reports[1].BytesTransferred != 0 {
		t.Errorf("expected a reset report after the server ignored Range, got %+v", reports[:min(2, len(reports))])
	}
}

func TestDownload_PartialAlreadyComplete(t *testing.T) {
	t.Parallel()

	data := payload(4_096)
	srv := newArtifactServer(t, data, nil)
	dest := filepath.Join(t.TempDir(), "app.jar")
	writeFile(t, PartialPath(dest), data)
	writeFile(t, MarkerPath(dest), []byte("2.0"))

	var reports []Progress
	err := New(WithHTTPClient(srv.Client())).Download(context.Background(), Request{
		Source:      srv.URL,
		Destination: dest,
		Version:     "2.0",
		OnProgress:  func(p Progress) { reports = append(reports, p) },
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if len(srv.Ranges()) != 0 {
		t.Errorf("no GET expected for a complete partial, got %v", srv.Ranges())
	}
	if len(reports) != 1 || !reports[0].Done() {
		t.Errorf("reports = %+v, want a single total/total report", reports)
	}
	if !bytes.Equal(readFile(t, dest), data) {
		t.Error("content does not match source")
	}
}

func TestDownload_HeadRejected(t *testing.T) {
	t.Parallel()

	data := payload(2_000)
	srv := newArtifactServer(t, data, func(s *artifactServer) { s.rejectHead = true })
	dest := filepath.Join(t.TempDir(), "app.jar")

	if err := New(WithHTTPClient(srv.Client())).Download(context.Background(), Request{
		Source: srv.URL, Destination: dest, Version: "2.0",
	}); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	// One range-less GET for the probe, one ranged GET for the body.
	if got := srv.Ranges(); len(got) != 2 || got[0] != "" || got[1] != "bytes=0-2000" {
		t.Errorf("Range headers = %q", got)
	}
	if !bytes.Equal(readFile(t, dest), data) {
		t.Error("content does not match source")
	}
}

func TestDownload_Errors(t *testing.T) {
	t.Parallel()

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		t.Cleanup(srv.Close)
		dest := filepath.Join(t.TempDir(), "app.jar")

		err := New(WithHTTPClient(srv.Client())).Download(context.Background(), Request{Source: srv.URL, Destination: dest, Version: "1"})
		if !errors.Is(err, ErrUnreachable) {
			t.Fatalf("Download() error = %v, want ErrUnreachable", err)
		}
		var te *Error
		if !errors.As(err, &te) || te.Op != "probe" {
			t.Errorf("expected *Error with Op probe, got %#v", err)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		err := New().Download(context.Background(), Request{Source: addr, Destination: filepath.Join(t.TempDir(), "a"), Version: "1"})
		if !errors.Is(err, ErrUnreachable) {
			t.Fatalf("Download() error = %v, want ErrUnreachable", err)
		}
	})

	t.Run("unknown length", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)

		err := New(WithHTTPClient(srv.Client())).Download(context.Background(), Request{
			Source: srv.URL, Destination: filepath.Join(t.TempDir(), "a"), Version: "1",
		})
		if !errors.Is(err, ErrUnreachable) {
			t.Fatalf("Download() error = %v, want ErrUnreachable", err)
		}
	})

	t.Run("destination parent is a file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		blocker := filepath.Join(dir, "blocker")
		writeFile(t, blocker, []byte("file"))

		err := New().Download(context.Background(), Request{
			Source: "http://127.0.0.1:1/unused", Destination: filepath.Join(blocker, "app.jar"), Version: "1",
		})
		if !errors.Is(err, ErrIO) {
			t.Fatalf("Download() error = %v, want ErrIO", err)
		}
	})
}

//nolint:paralleltest // Modifies the osRename seam.
func TestFinalize_FallsBackToRemoveThenRename(t *testing.T) {
	original := osRename
	t.Cleanup(func() { osRename = original })

	calls := 0
	osRename = func(from, to string) error {
		calls++
		if calls == 1 {
			return &os.LinkError{Op: "rename", Old: from, New: to, Err: os.ErrExist}
		}
		return original(from, to)
	}

	dest := filepath.Join(t.TempDir(), "app.jar")
	writeFile(t, dest, []byte("old"))
	writeFile(t, PartialPath(dest), []byte("new"))
	writeFile(t, MarkerPath(dest), []byte("2.0"))

	if err := New().finalize(dest); err != nil {
		t.Fatalf("finalize() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("rename called %d times, want 2", calls)
	}
	if got := string(readFile(t, dest)); got != "new" {
		t.Errorf("destination = %q, want new", got)
	}
	assertMissing(t, MarkerPath(dest))
	assertMissing(t, PartialPath(dest))
}
