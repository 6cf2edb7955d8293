// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaunch/relaunch/internal/check"
	"github.com/relaunch/relaunch/internal/update"
)

type (
	// evaluator is the part of update.Orchestrator the check command needs.
	evaluator interface {
		Evaluate(ctx context.Context) (update.Outcome, error)
	}

	// checkParams bundles the collaborators of runCheck.
	checkParams struct {
		stdout      io.Writer
		evaluator   evaluator
		showOlder   bool
		exitIfStale bool
	}
)

func newCheckCommand(app *App) *cobra.Command {
	var (
		showOlder   bool
		exitIfStale bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report whether an update is available without installing it",
		Long: `Fetch the published version list and compare it with the installed version.

Nothing is downloaded and the application is not started. Timeouts are
retried with a longer deadline up to check.retries times.`,
		Example: `  # Show installed and published versions
  relaunch check

  # Fail with exit code 10 when an update is available (for scripts)
  relaunch check --exit-code`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.cfg.Validate(); err != nil {
				return app.fail(cmd.ErrOrStderr(), err)
			}

			orchestrator, err := app.newOrchestrator(update.Deps{
				Checker: &coordinatorChecker{
					coordinator: app.newCoordinator(nil),
					retries:     app.cfg.Check.Retries,
					step:        retryPause,
					notify: func(r check.Result, pause time.Duration) {
						fmt.Fprintln(cmd.ErrOrStderr(), WarningStyle.Render(fmt.Sprintf(
							"Check %s, retrying in %s", r.Status, pause)))
					},
				},
			})
			if err != nil {
				return err
			}
			p := checkParams{
				stdout:      cmd.OutOrStdout(),
				evaluator:   orchestrator,
				showOlder:   showOlder,
				exitIfStale: exitIfStale,
			}

			out, err := runCheck(cmd.Context(), p)
			if err != nil {
				return app.fail(cmd.ErrOrStderr(), err)
			}
			if p.exitIfStale && out.Decision.NeedsUpdate() {
				return &ExitError{Code: ExitUpdateAvailable}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showOlder, "older", false, "also list the older releases the server still knows")
	cmd.Flags().BoolVar(&exitIfStale, "exit-code", false, "exit with code 10 when an update is available")

	return cmd
}

// runCheck evaluates the published versions against the installed one and
// prints the comparison. A failed check is returned as an error.
func runCheck(ctx context.Context, p checkParams) (update.Outcome, error) {
	out, err := p.evaluator.Evaluate(ctx)
	if err != nil {
		return out, err
	}

	installedLabel := out.Decision.Installed.String()
	if installedLabel == "" {
		installedLabel = "(none)"
	}

	fmt.Fprintf(p.stdout, "%s %s\n", labelStyle.Render("Installed:"), installedLabel)
	fmt.Fprintf(p.stdout, "%s %s\n", labelStyle.Render("Available:"), out.Check.Manifest.Current())
	if p.showOlder {
		for _, tag := range out.Check.Manifest.Older() {
			fmt.Fprintf(p.stdout, "%s %s\n", labelStyle.Render("Older:"), tag)
		}
	}

	style := SuccessStyle
	if out.Decision.NeedsUpdate() {
		style = TitleStyle
	}
	fmt.Fprintf(p.stdout, "\n%s\n", style.Render(out.Decision.Message()))

	return out, nil
}
