// SPDX-License-Identifier: MPL-2.0

package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/relaunch/relaunch/internal/transfer"
)

const (
	resultFile = "result.json"

	// dirPollInterval paces the wait for the record directory to appear.
	dirPollInterval = 300 * time.Millisecond
)

// Outcome states stored in a Record.
const (
	RecordUpdated     = "updated"
	RecordUpToDate    = "up-to-date"
	RecordDeclined    = "declined"
	RecordSkipped     = "skipped"
	RecordCheckFailed = "check-failed"
	RecordCancelled   = "cancelled"
	RecordFailed      = "failed"
)

// ErrNoRecord is returned by Read when no run has been recorded yet.
var ErrNoRecord = errors.New("no outcome recorded")

type (
	// Record is the persisted outcome of one run.
	Record struct {
		Status     string    `json:"status"`
		Decision   string    `json:"decision,omitempty"`
		Version    string    `json:"version,omitempty"`
		Error      string    `json:"error,omitempty"`
		Relaunched bool      `json:"relaunched"`
		ExecutedAt time.Time `json:"executed_at"`
	}

	// ResultStore keeps the latest Record as JSON in a directory.
	ResultStore struct {
		path   string
		logger *log.Logger
	}
)

// NewRecord derives the persisted record from a run's outcome and error.
func NewRecord(out Outcome, runErr error, at time.Time) Record {
	r := Record{
		Relaunched: out.Relaunched,
		ExecutedAt: at.UTC(),
	}
	if out.Decision.Kind != 0 {
		r.Decision = out.Decision.String()
		r.Version = out.Decision.Current.String()
	}

	switch {
	case runErr != nil && (errors.Is(runErr, transfer.ErrCancelled) || errors.Is(runErr, context.Canceled)):
		r.Status = RecordCancelled
	case runErr != nil && errors.Is(runErr, ErrCheckFailed):
		r.Status = RecordCheckFailed
	case runErr != nil:
		r.Status = RecordFailed
	case out.Updated:
		r.Status = RecordUpdated
	case out.Declined:
		r.Status = RecordDeclined
	case out.Decision.Kind == 0:
		r.Status = RecordSkipped
	default:
		r.Status = RecordUpToDate
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	return r
}

// NewResultStore creates a store for result.json inside dir.
func NewResultStore(dir string, logger *log.Logger) *ResultStore {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ResultStore{path: filepath.Join(dir, resultFile), logger: logger}
}

// Path returns the record file location.
func (s *ResultStore) Path() string { return s.path }

// Write stores r, replacing the previous record atomically.
func (s *ResultStore) Write(r Record) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating record directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing record: %w", err)
	}

	s.logger.Debug("outcome recorded", "path", s.path, "status", r.Status)
	return nil
}

// Read returns the latest record, or ErrNoRecord.
func (s *ResultStore) Read() (Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, ErrNoRecord
	}
	if err != nil {
		return Record{}, fmt.Errorf("reading record: %w", err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decoding record %s: %w", s.path, err)
	}
	return r, nil
}

// Remove deletes the record. A missing record is not an error.
func (s *ResultStore) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Watch returns the first record executed after since. An existing record
// that is new enough is returned immediately; otherwise Watch waits for the
// directory to exist and then for the record file to be created or written.
func (s *ResultStore) Watch(ctx context.Context, since time.Time) (Record, error) {
	if r, err := s.Read(); err == nil && r.ExecutedAt.After(since) {
		return r, nil
	}

	dir := filepath.Dir(s.path)
	if err := waitForDir(ctx, dir); err != nil {
		return Record{}, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return Record{}, fmt.Errorf("creating watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			s.logger.Warn("failed to close watcher", "err", err)
		}
	}()

	// The file may not exist yet, so the directory is watched.
	if err := watcher.Add(dir); err != nil {
		return Record{}, fmt.Errorf("watching %s: %w", dir, err)
	}

	// A write may have landed between the first read and watcher.Add.
	if r, err := s.Read(); err == nil && r.ExecutedAt.After(since) {
		return r, nil
	}

	s.logger.Debug("waiting for outcome record", "path", s.path)
	for {
		select {
		case <-ctx.Done():
			return Record{}, ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return Record{}, errors.New("watcher closed unexpectedly")
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			r, err := s.Read()
			if err != nil {
				s.logger.Debug("record not readable yet", "err", err)
				continue
			}
			if r.ExecutedAt.After(since) {
				return r, nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return Record{}, errors.New("watcher closed unexpectedly")
			}
			return Record{}, fmt.Errorf("watcher error: %w", err)
		}
	}
}

func waitForDir(ctx context.Context, dir string) error {
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return nil
	}

	ticker := time.NewTicker(dirPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				return nil
			}
		}
	}
}
