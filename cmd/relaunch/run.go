// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaunch/relaunch/internal/check"
	"github.com/relaunch/relaunch/internal/update"
)

// retryPause is the pause unit between automatic check retries.
const retryPause = time.Second

type (
	// runFlags are the flags of the root (update and start) command.
	runFlags struct {
		skipCheck  bool
		noRelaunch bool
	}

	// updateRunner is the part of update.Orchestrator the run loop needs.
	updateRunner interface {
		Run(ctx context.Context) (update.Outcome, error)
		Skip(ctx context.Context) (update.Outcome, error)
	}

	// runParams bundles the dependencies of runUpdate so the loop can be
	// tested without a Cobra command or terminal.
	runParams struct {
		stdout    io.Writer
		runner    updateRunner
		skipCheck bool
		// askAfterFailure decides how to continue after a failed check.
		askAfterFailure func(ctx context.Context, cause error) (failureAction, error)
	}

	// coordinatorChecker runs the first check with automatic retries and
	// every later check (a manual retry) with the next longer deadline.
	coordinatorChecker struct {
		coordinator *check.Coordinator
		retries     uint64
		step        time.Duration
		notify      func(check.Result, time.Duration)
		attempted   bool
	}
)

var _ update.Checker = (*coordinatorChecker)(nil)

func bindRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().BoolVar(&f.skipCheck, "skip-check", false, "start the installed version without checking for updates")
	cmd.Flags().BoolVar(&f.noRelaunch, "no-relaunch", false, "update if needed but do not start the application")
}

// Check implements update.Checker.
func (c *coordinatorChecker) Check(ctx context.Context) check.Result {
	if !c.attempted {
		c.attempted = true
		return c.coordinator.CheckWithRetries(ctx, c.retries, c.step, c.notify)
	}
	return c.coordinator.Retry(ctx)
}

func runRootCommand(cmd *cobra.Command, app *App, flags runFlags) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	if !flags.skipCheck {
		if err := app.cfg.Validate(); err != nil {
			return app.fail(stderr, err)
		}
	}

	reporter := newConsoleReporter(stdout)
	coordinator := app.newCoordinator(reporter)
	checker := &coordinatorChecker{
		coordinator: coordinator,
		retries:     app.cfg.Check.Retries,
		step:        retryPause,
		notify: func(r check.Result, pause time.Duration) {
			reporter.Status(update.StatusCheckFailed, fmt.Sprintf(
				"Attempt %s; retrying in %s with a %s timeout.", r.Status, pause, coordinator.Timeout()))
		},
	}

	orchestrator, err := app.newOrchestrator(update.Deps{
		Checker:    checker,
		Relauncher: app.newRelauncher(flags.noRelaunch),
		Confirmer:  promptConfirmer{yes: app.flags.yes},
		Reporter:   reporter,
		Records:    app.resultStore(),
	})
	if err != nil {
		return err
	}

	yes := app.flags.yes
	out, err := runUpdate(cmd.Context(), runParams{
		stdout:    stdout,
		runner:    orchestrator,
		skipCheck: flags.skipCheck,
		askAfterFailure: func(ctx context.Context, cause error) (failureAction, error) {
			return askAfterFailedCheck(ctx, yes, cause)
		},
	})
	if err != nil {
		return app.fail(stderr, err)
	}

	printOutcome(stdout, out)
	return nil
}

// runUpdate is the core update loop, separated from Cobra for testability.
//
// Flow:
//  1. With --skip-check, start the installed version right away.
//  2. Run the orchestrator; anything but a failed check ends the loop.
//  3. After a failed check ask the user: retry with a longer deadline,
//     start without updating, or quit with the check error.
func runUpdate(ctx context.Context, p runParams) (update.Outcome, error) {
	if p.skipCheck {
		return p.runner.Skip(ctx)
	}

	for {
		out, err := p.runner.Run(ctx)
		if err == nil || !errors.Is(err, update.ErrCheckFailed) {
			return out, err
		}

		action, askErr := p.askAfterFailure(ctx, err)
		if askErr != nil {
			return out, askErr
		}

		switch action {
		case actionRetry:
			fmt.Fprintln(p.stdout, SubtitleStyle.Render("Retrying with a longer timeout..."))
		case actionSkip:
			return p.runner.Skip(ctx)
		default:
			return out, err
		}
	}
}

func printOutcome(w io.Writer, out update.Outcome) {
	switch {
	case out.Declined:
		fmt.Fprintln(w, SubtitleStyle.Render("Update postponed."))
	case out.Decision.Kind == 0:
		fmt.Fprintln(w, SubtitleStyle.Render("Update check skipped."))
	}

	if out.Relaunched {
		fmt.Fprintln(w, SuccessStyle.Render("Application started."))
	} else {
		fmt.Fprintln(w, SubtitleStyle.Render("Application not started."))
	}
}
