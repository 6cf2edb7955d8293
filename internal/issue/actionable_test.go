// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

var errDiskFull = errors.New("no space left on device")

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{"operation only", &ActionableError{Operation: "check for updates"}, "failed to check for updates"},
		{
			"with resource",
			&ActionableError{Operation: "write the update", Resource: "/opt/app/app.jar"},
			"failed to write the update: /opt/app/app.jar",
		},
		{
			"with resource and cause",
			&ActionableError{Operation: "write the update", Resource: "/opt/app/app.jar", Cause: errDiskFull},
			"failed to write the update: /opt/app/app.jar: no space left on device",
		},
		{
			"cause without resource",
			&ActionableError{Operation: "contact the update server", Cause: errDiskFull},
			"failed to contact the update server: no space left on device",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_UnwrapsThroughLayers(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("writing partial: %w", errDiskFull)
	err := NewErrorContext().WithOperation("write the update").Wrap(cause).BuildError()

	if !errors.Is(err, errDiskFull) {
		t.Error("errors.Is should reach the innermost cause")
	}
	var ae *ActionableError
	if !errors.As(fmt.Errorf("run: %w", err), &ae) || ae.Operation != "write the update" {
		t.Errorf("errors.As through a wrapper = %+v", ae)
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	err := &ActionableError{
		Operation:   "download the update",
		Resource:    "/opt/app/app.jar",
		Suggestions: []string{"Run the command again", "Check artifact_url"},
		Cause:       fmt.Errorf("writing partial: %w", errDiskFull),
	}

	plain := err.Format(false)
	want := "failed to download the update: /opt/app/app.jar: writing partial: no space left on device\n\n" +
		"  • Run the command again\n  • Check artifact_url"
	if plain != want {
		t.Errorf("Format(false) =\n%q\nwant\n%q", plain, want)
	}

	verbose := err.Format(true)
	for _, line := range []string{"Error chain:", "1. writing partial: no space left on device", "2. no space left on device"} {
		if !strings.Contains(verbose, line) {
			t.Errorf("Format(true) missing %q:\n%s", line, verbose)
		}
	}
	if strings.Contains(plain, "Error chain") {
		t.Error("Format(false) must not include the error chain")
	}
}

func TestActionableError_FormatWithoutSuggestions(t *testing.T) {
	t.Parallel()

	err := &ActionableError{Operation: "check for updates"}
	if err.HasSuggestions() {
		t.Error("HasSuggestions() = true for an error without suggestions")
	}
	if got := err.Format(true); got != "failed to check for updates" {
		t.Errorf("Format(true) = %q", got)
	}
}

func TestErrorContext_BuildError(t *testing.T) {
	t.Parallel()

	if err := NewErrorContext().WithResource("/tmp/x").Wrap(errDiskFull).BuildError(); err != nil {
		t.Errorf("BuildError() without operation = %v, want nil", err)
	}

	err := NewErrorContext().
		WithOperation("write the update").
		WithResource("/opt/app/app.jar").
		WithSuggestions("first").
		WithSuggestions("second", "third").
		Wrap(errDiskFull).
		BuildError()

	var ae *ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("BuildError() = %T, want *ActionableError", err)
	}
	if got := strings.Join(ae.Suggestions, ","); got != "first,second,third" {
		t.Errorf("Suggestions = %q, want first,second,third", got)
	}
	if ae.Resource != "/opt/app/app.jar" || !errors.Is(ae, errDiskFull) {
		t.Errorf("built error = %+v", ae)
	}
}

func TestErrorContext_BuiltErrorsDoNotShareSuggestions(t *testing.T) {
	t.Parallel()

	ec := NewErrorContext().WithOperation("load configuration").WithSuggestions("shared")
	first := ec.BuildError()
	second := ec.WithSuggestions("only later").BuildError()

	var a, b *ActionableError
	if !errors.As(first, &a) || !errors.As(second, &b) {
		t.Fatal("BuildError() should return *ActionableError")
	}
	if len(a.Suggestions) != 1 {
		t.Errorf("first error suggestions = %v, want only the shared one", a.Suggestions)
	}
	if len(b.Suggestions) != 2 {
		t.Errorf("second error suggestions = %v, want two", b.Suggestions)
	}
}
