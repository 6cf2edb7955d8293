// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
)

// ConfirmOptions configures the Confirm component.
type ConfirmOptions struct {
	// Title is the question to display.
	Title string
	// Description provides additional context below the title.
	Description string
	// Affirmative is the text for the affirmative option (default: "Yes").
	Affirmative string
	// Negative is the text for the negative option (default: "No").
	Negative string
	// Default is the preselected answer.
	Default bool
	// Config holds common TUI configuration.
	Config Config
}

// Confirm asks a yes/no question. It returns ErrCancelled if the user aborts.
func Confirm(ctx context.Context, opts ConfirmOptions) (bool, error) {
	if opts.Affirmative == "" {
		opts.Affirmative = "Yes"
	}
	if opts.Negative == "" {
		opts.Negative = "No"
	}

	result := opts.Default
	field := newConfirmField(opts, &result)

	if err := opts.Config.form(field).RunWithContext(ctx); err != nil {
		return false, fmt.Errorf("confirm %q: %w", opts.Title, runErr(err))
	}
	return result, nil
}

func newConfirmField(opts ConfirmOptions, result *bool) *huh.Confirm {
	c := huh.NewConfirm().
		Title(opts.Title).
		Affirmative(opts.Affirmative).
		Negative(opts.Negative).
		Value(result)
	if opts.Description != "" {
		c = c.Description(opts.Description)
	}
	return c
}
