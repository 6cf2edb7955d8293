// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/relaunch/relaunch/internal/check"
	"github.com/relaunch/relaunch/internal/config"
	"github.com/relaunch/relaunch/internal/install"
	"github.com/relaunch/relaunch/internal/issue"
	"github.com/relaunch/relaunch/internal/manifest"
	"github.com/relaunch/relaunch/internal/transfer"
	"github.com/relaunch/relaunch/internal/tui"
	"github.com/relaunch/relaunch/internal/update"
)

// classifyExitCode maps an error to the process exit code. Problems the user
// can fix (configuration, permissions, a malformed manifest) exit with 1;
// network failures and timeouts exit with 2 because a retry may succeed.
// An ExitError keeps the code it carries.
func classifyExitCode(err error) int {
	var (
		ae      *issue.ActionableError
		exitErr *ExitError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, context.Canceled),
		errors.Is(err, transfer.ErrCancelled),
		errors.Is(err, tui.ErrCancelled):
		return ExitCancelled
	case errors.Is(err, manifest.ErrMalformed),
		errors.Is(err, os.ErrPermission),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, install.ErrNoCommand),
		errors.Is(err, install.ErrVersionFile),
		errors.Is(err, update.ErrRelaunchFailed):
		return ExitFailure
	case errors.Is(err, check.ErrTimedOut),
		errors.Is(err, manifest.ErrUnreachable),
		errors.Is(err, transfer.ErrUnreachable),
		errors.Is(err, transfer.ErrIO):
		return ExitTransient
	case errors.As(err, &ae):
		return ExitFailure
	default:
		return ExitTransient
	}
}

// issueFor picks the catalog entry explaining err, or nil.
func issueFor(err error) *issue.Issue {
	var ae *issue.ActionableError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, check.ErrTimedOut):
		return issue.Get(issue.CheckTimedOutId)
	case errors.Is(err, manifest.ErrMalformed):
		return issue.Get(issue.ManifestMalformedId)
	case errors.Is(err, manifest.ErrUnreachable):
		return issue.Get(issue.ManifestUnreachableId)
	case errors.Is(err, transfer.ErrCancelled):
		return issue.Get(issue.DownloadInterruptedId)
	case errors.Is(err, os.ErrPermission):
		return issue.Get(issue.PermissionDeniedId)
	case errors.Is(err, transfer.ErrUnreachable), errors.Is(err, transfer.ErrIO):
		return issue.Get(issue.DownloadFailedId)
	case errors.Is(err, install.ErrVersionFile):
		return issue.Get(issue.VersionFileId)
	case errors.Is(err, update.ErrRelaunchFailed), errors.Is(err, install.ErrNoCommand):
		return issue.Get(issue.RelaunchFailedId)
	case errors.Is(err, config.ErrInvalidConfig), errors.As(err, &ae) && ae.Operation == config.LoadOperation:
		return issue.Get(issue.ConfigLoadFailedId)
	default:
		return nil
	}
}

// failureScope names what a failed command was working on.
type failureScope struct {
	manifestURL string
	destination string
}

// describeFailure attaches the failed operation, the resource involved and
// remedies to update failures. Errors that already carry that context, and
// errors outside the update path, are returned unchanged.
func describeFailure(err error, scope failureScope) error {
	var ae *issue.ActionableError
	if err == nil || errors.As(err, &ae) {
		return err
	}

	ec := issue.NewErrorContext()
	switch {
	case errors.Is(err, check.ErrTimedOut):
		ec.WithOperation("check for updates").
			WithResource(scope.manifestURL).
			WithSuggestions(
				"Raise check.base_interval if the update server is slow to answer",
				"Run 'relaunch --skip-check' to start the installed version now",
			)
	case errors.Is(err, manifest.ErrMalformed):
		ec.WithOperation("read the published version list").
			WithResource(scope.manifestURL).
			WithSuggestions(
				"Check that manifest_url points at the version list page",
				"The page must contain a '#Begin Version File' block",
			)
	case errors.Is(err, manifest.ErrUnreachable):
		ec.WithOperation("contact the update server").
			WithResource(scope.manifestURL).
			WithSuggestions(
				"Check your network connection and proxy settings",
				"Run 'relaunch --skip-check' to start the installed version now",
			)
	case errors.Is(err, transfer.ErrUnreachable):
		ec.WithOperation("download the update").
			WithResource(scope.destination).
			WithSuggestions(
				"Run the command again; the download resumes where it stopped",
				"Check artifact_url in the configuration",
			)
	case errors.Is(err, transfer.ErrIO):
		ec.WithOperation("write the update").
			WithResource(scope.destination).
			WithSuggestions(
				"Make sure the install directory is writable and has free space",
				"Run 'relaunch clean' to discard the partial download",
			)
	default:
		return err
	}
	return ec.Wrap(err).BuildError()
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// reportFailure prints guidance for err and converts it into an ExitError.
// The error text itself is printed by fang; this adds the suggestions, a
// pointer into the issue catalog and, when verbose, the rendered entry.
func reportFailure(w io.Writer, err error, verbose bool) error {
	if err == nil {
		return nil
	}

	var ae *issue.ActionableError
	if errors.As(err, &ae) && (ae.HasSuggestions() || verbose) {
		fmt.Fprintln(w, WarningStyle.Render(formatErrorForDisplay(err, verbose)))
	}

	if iss := issueFor(err); iss != nil {
		if verbose {
			if rendered, renderErr := iss.Render("auto"); renderErr == nil {
				fmt.Fprint(w, rendered)
			}
		} else {
			fmt.Fprintf(w, "%s %s\n", SubtitleStyle.Render("For help, run:"), CmdStyle.Render("relaunch explain "+iss.Slug()))
		}
	}

	return &ExitError{Code: classifyExitCode(err), Err: err}
}
