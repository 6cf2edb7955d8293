// SPDX-License-Identifier: MPL-2.0

package update

import "github.com/relaunch/relaunch/internal/transfer"

// Status events emitted while a run progresses.
const (
	StatusChecking     Status = "checking"
	StatusConnected    Status = "connected"
	StatusUpdateNeeded Status = "update-needed"
	StatusUpToDate     Status = "up-to-date"
	StatusCheckFailed  Status = "check-failed"
	StatusDownloading  Status = "downloading"
	StatusDone         Status = "done"
)

type (
	// Status is a textual status event for the presentation layer.
	Status string

	// Reporter receives status events and transfer progress. Calls may come
	// from several goroutines: StatusConnected is emitted by the check worker,
	// so implementations must be safe for concurrent use.
	Reporter interface {
		Status(s Status, message string)
		Progress(p transfer.Progress)
	}

	// ReporterFuncs adapts plain functions to Reporter. Nil fields are skipped.
	ReporterFuncs struct {
		OnStatus   func(Status, string)
		OnProgress func(transfer.Progress)
	}

	nopReporter struct{}
)

// Status implements Reporter.
func (r ReporterFuncs) Status(s Status, message string) {
	if r.OnStatus != nil {
		r.OnStatus(s, message)
	}
}

// Progress implements Reporter.
func (r ReporterFuncs) Progress(p transfer.Progress) {
	if r.OnProgress != nil {
		r.OnProgress(p)
	}
}

func (nopReporter) Status(Status, string)       {}
func (nopReporter) Progress(transfer.Progress) {}
