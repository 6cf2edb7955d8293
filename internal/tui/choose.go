// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
)

// ErrNoOptions is returned by Choose when there is nothing to choose from.
var ErrNoOptions = errors.New("no options to choose from")

// Choice is a labelled option of a Choose prompt.
type Choice[T comparable] struct {
	Label string
	Value T
}

// ChooseOptions configures the Choose component.
type ChooseOptions[T comparable] struct {
	// Title is the prompt displayed above the options.
	Title string
	// Description provides additional context below the title.
	Description string
	// Choices are offered in order; the first one is preselected.
	Choices []Choice[T]
	// Config holds common TUI configuration.
	Config Config
}

// Choose asks the user to pick one of opts.Choices.
func Choose[T comparable](ctx context.Context, opts ChooseOptions[T]) (T, error) {
	var zero T
	if len(opts.Choices) == 0 {
		return zero, ErrNoOptions
	}

	result := opts.Choices[0].Value
	if err := opts.Config.form(newSelectField(opts, &result)).RunWithContext(ctx); err != nil {
		return zero, fmt.Errorf("choose %q: %w", opts.Title, runErr(err))
	}
	return result, nil
}

func newSelectField[T comparable](opts ChooseOptions[T], result *T) *huh.Select[T] {
	huhOpts := make([]huh.Option[T], len(opts.Choices))
	for i, c := range opts.Choices {
		huhOpts[i] = huh.NewOption(c.Label, c.Value)
	}

	sel := huh.NewSelect[T]().
		Title(opts.Title).
		Options(huhOpts...).
		Value(result)
	if opts.Description != "" {
		sel = sel.Description(opts.Description)
	}
	return sel
}
