// SPDX-License-Identifier: MPL-2.0

package update

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/relaunch/relaunch/internal/check"
	"github.com/relaunch/relaunch/internal/clock"
	"github.com/relaunch/relaunch/internal/decision"
	"github.com/relaunch/relaunch/internal/manifest"
	"github.com/relaunch/relaunch/internal/transfer"
)

var (
	// ErrCheckFailed indicates the check did not produce a manifest. It wraps
	// the check's own error, so errors.Is also matches check.ErrTimedOut,
	// manifest.ErrUnreachable or manifest.ErrMalformed.
	ErrCheckFailed = errors.New("update check failed")

	// ErrRelaunchFailed indicates the hand-off to the application failed.
	ErrRelaunchFailed = errors.New("relaunching application failed")

	// ErrMissingDependency indicates Deps lacks a required collaborator.
	ErrMissingDependency = errors.New("missing orchestrator dependency")
)

type (
	// Checker runs one bounded manifest check.
	Checker interface {
		Check(ctx context.Context) check.Result
	}

	// InstalledStore reads and writes the installed version record.
	InstalledStore interface {
		Read() (manifest.VersionTag, bool, error)
		Write(tag manifest.VersionTag) error
	}

	// Downloader fetches the artifact.
	Downloader interface {
		Download(ctx context.Context, req transfer.Request) error
	}

	// Relauncher hands execution over to the application at artifact.
	Relauncher interface {
		Relaunch(ctx context.Context, artifact string) error
	}

	// Confirmer asks whether a recommended update should be installed now.
	Confirmer interface {
		ConfirmUpdate(ctx context.Context, d decision.Decision) (bool, error)
	}

	// RecordWriter persists the outcome of a run.
	RecordWriter interface {
		Write(r Record) error
	}

	// Deps are the collaborators of an Orchestrator. Checker, Installed,
	// Downloader and ArtifactURL are required; a nil Confirmer accepts every
	// update, a nil Relauncher skips the hand-off and a nil Records keeps no
	// outcome record.
	Deps struct {
		Checker     Checker
		Installed   InstalledStore
		Downloader  Downloader
		Relauncher  Relauncher
		Confirmer   Confirmer
		Reporter    Reporter
		Records     RecordWriter
		ArtifactURL func(manifest.VersionTag) string
		Destination string
		Clock       clock.Clock
		Logger      *log.Logger
	}

	// Outcome summarises a run.
	Outcome struct {
		Check      check.Result
		Decision   decision.Decision
		Updated    bool // The artifact was downloaded and the record rewritten
		Declined   bool // The user chose not to update now
		Relaunched bool
	}

	// Orchestrator sequences check, decision, transfer and relaunch.
	Orchestrator struct {
		deps Deps
	}
)

// New validates deps and returns an Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Checker == nil:
		return nil, fmt.Errorf("%w: Checker", ErrMissingDependency)
	case deps.Installed == nil:
		return nil, fmt.Errorf("%w: Installed", ErrMissingDependency)
	case deps.Downloader == nil:
		return nil, fmt.Errorf("%w: Downloader", ErrMissingDependency)
	case deps.ArtifactURL == nil:
		return nil, fmt.Errorf("%w: ArtifactURL", ErrMissingDependency)
	}
	if deps.Reporter == nil {
		deps.Reporter = nopReporter{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard)
	}
	return &Orchestrator{deps: deps}, nil
}

// Run performs one full updater pass. A failed check returns ErrCheckFailed
// without touching the artifact; the caller decides between retrying and
// Skip. Transfer failures are returned without relaunching.
func (o *Orchestrator) Run(ctx context.Context) (out Outcome, err error) {
	defer func() { o.record(out, err) }()

	out, err = o.Evaluate(ctx)
	if err != nil {
		return out, err
	}

	if !out.Decision.NeedsUpdate() {
		o.deps.Reporter.Status(StatusUpToDate, out.Decision.Message())
		return o.relaunch(ctx, out)
	}

	o.deps.Reporter.Status(StatusUpdateNeeded, out.Decision.Message())
	if o.deps.Confirmer != nil {
		accepted, err := o.deps.Confirmer.ConfirmUpdate(ctx, out.Decision)
		if err != nil {
			return out, fmt.Errorf("confirming update: %w", err)
		}
		if !accepted {
			out.Declined = true
			o.deps.Logger.Info("update declined")
			return o.relaunch(ctx, out)
		}
	}

	if err := o.Install(ctx, out.Decision.Current); err != nil {
		return out, err
	}
	out.Updated = true

	return o.relaunch(ctx, out)
}

// Evaluate runs one check and decides against the installed version. A
// failed check yields the Failed decision and an error wrapping
// ErrCheckFailed. Nothing is downloaded and no record is written.
func (o *Orchestrator) Evaluate(ctx context.Context) (Outcome, error) {
	var out Outcome

	o.deps.Reporter.Status(StatusChecking, "Checking for updates...")
	out.Check = o.deps.Checker.Check(ctx)
	if !out.Check.OK() {
		out.Decision = decision.Failed()
		o.deps.Logger.Warn("update check failed", "status", out.Check.Status, "err", out.Check.Err)
		o.deps.Reporter.Status(StatusCheckFailed, checkFailedMessage(out.Check))
		return out, fmt.Errorf("%w: %w", ErrCheckFailed, out.Check.Err)
	}

	installed, present, err := o.deps.Installed.Read()
	if err != nil {
		return out, fmt.Errorf("reading installed version: %w", err)
	}

	out.Decision = decision.Decide(installed, present, out.Check.Manifest)
	o.deps.Logger.Info("update decision", "decision", out.Decision, "installed", installed, "current", out.Decision.Current)
	return out, nil
}

// Install downloads version into the destination, resuming a matching
// partial download, and then records it as the installed version.
func (o *Orchestrator) Install(ctx context.Context, version manifest.VersionTag) error {
	src := o.deps.ArtifactURL(version)
	o.deps.Reporter.Status(StatusDownloading, fmt.Sprintf("Downloading version %s...", version))

	err := o.deps.Downloader.Download(ctx, transfer.Request{
		Source:      src,
		Destination: o.deps.Destination,
		Version:     version,
		OnProgress:  o.deps.Reporter.Progress,
	})
	if err != nil {
		return fmt.Errorf("downloading version %s: %w", version, err)
	}

	if err := o.deps.Installed.Write(version); err != nil {
		return fmt.Errorf("recording installed version: %w", err)
	}

	o.deps.Reporter.Status(StatusDone, fmt.Sprintf("Version %s installed.", version))
	return nil
}

func (o *Orchestrator) relaunch(ctx context.Context, out Outcome) (Outcome, error) {
	if o.deps.Relauncher == nil {
		return out, nil
	}
	if err := o.deps.Relauncher.Relaunch(ctx, o.deps.Destination); err != nil {
		return out, fmt.Errorf("%w: %w", ErrRelaunchFailed, err)
	}
	out.Relaunched = true
	return out, nil
}

func (o *Orchestrator) record(out Outcome, runErr error) {
	if o.deps.Records == nil {
		return
	}
	r := NewRecord(out, runErr, o.deps.Clock.Now())
	if err := o.deps.Records.Write(r); err != nil {
		o.deps.Logger.Warn("failed to write outcome record", "err", err)
	}
}

func checkFailedMessage(r check.Result) string {
	if r.Status == check.TimedOut {
		return "The update server did not answer in time."
	}
	var malformed *manifest.MalformedError
	if errors.As(r.Err, &malformed) {
		return "The published version list could not be read."
	}
	return "Could not connect to the update server."
}
