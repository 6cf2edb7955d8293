// SPDX-License-Identifier: MPL-2.0

package cmd

import "fmt"

// Process exit codes.
const (
	ExitOK        = 0
	ExitFailure   = 1 // user-correctable: configuration, permissions, malformed manifest
	ExitTransient = 2 // network failures and timeouts; retrying may help

	// ExitUpdateAvailable is used by `relaunch check --exit-code`.
	ExitUpdateAvailable = 10
	ExitCancelled       = 130
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}
