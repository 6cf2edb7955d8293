// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/relaunch/relaunch/internal/decision"
	"github.com/relaunch/relaunch/internal/tui"
	"github.com/relaunch/relaunch/internal/update"
)

// failureAction is the user's answer after a failed update check.
type failureAction string

const (
	actionRetry failureAction = "retry"
	actionSkip  failureAction = "skip"
	actionQuit  failureAction = "quit"
)

var (
	//nolint:gochecknoglobals // Test seam for terminal detection.
	isInteractive = tui.Interactive
	//nolint:gochecknoglobals // Test seam for the update confirmation prompt.
	confirmPrompt = tui.Confirm
	//nolint:gochecknoglobals // Test seam for the failed-check prompt.
	choosePrompt = tui.Choose[failureAction]
)

// promptConfirmer asks before installing an update. With --yes or without a
// terminal every update is accepted.
type promptConfirmer struct {
	yes bool
}

var _ update.Confirmer = promptConfirmer{}

// ConfirmUpdate implements update.Confirmer.
func (c promptConfirmer) ConfirmUpdate(ctx context.Context, d decision.Decision) (bool, error) {
	if c.yes || !isInteractive() {
		return true, nil
	}
	return confirmPrompt(ctx, tui.ConfirmOptions{
		Title:       fmt.Sprintf("Update to version %s now?", d.Current),
		Description: d.Message(),
		Affirmative: "Update",
		Negative:    "Later",
		Default:     true,
		Config:      tui.DefaultConfig(),
	})
}

// askAfterFailedCheck offers retry, start without update, or quit. Without a
// terminal, or with --yes, the run stops so scripts see the failure.
func askAfterFailedCheck(ctx context.Context, yes bool, cause error) (failureAction, error) {
	if yes || !isInteractive() {
		return actionQuit, nil
	}
	return choosePrompt(ctx, tui.ChooseOptions[failureAction]{
		Title:       "The update check failed. What now?",
		Description: cause.Error(),
		Choices: []tui.Choice[failureAction]{
			{Label: "Retry (longer timeout)", Value: actionRetry},
			{Label: "Start without update", Value: actionSkip},
			{Label: "Quit", Value: actionQuit},
		},
		Config: tui.DefaultConfig(),
	})
}
