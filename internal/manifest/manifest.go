// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrUnreachable indicates the manifest source could not be contacted or
	// did not answer with a usable response.
	ErrUnreachable = errors.New("manifest source unreachable")

	// ErrMalformed is the sentinel wrapped by MalformedError.
	ErrMalformed = errors.New("malformed manifest")
)

type (
	// VersionTag is an opaque release identifier. Tags are only ever compared
	// for equality; no numeric ordering is derived from them.
	VersionTag string

	// Manifest is the published version record: the current release and all
	// previously published releases in document order.
	Manifest struct {
		current VersionTag
		older   []VersionTag
	}

	// MalformedError reports a manifest document whose structure does not
	// match the positional contract.
	MalformedError struct {
		Tokens int    // Number of tokens found inside the version block
		Reason string // Human-readable description of the violation
	}
)

// New creates a Manifest. The older slice is copied.
func New(current VersionTag, older ...VersionTag) *Manifest {
	return &Manifest{
		current: current,
		older:   slices.Clone(older),
	}
}

// Current returns the currently published version.
func (m *Manifest) Current() VersionTag { return m.current }

// Older returns a copy of the previously published versions in document order.
func (m *Manifest) Older() []VersionTag { return slices.Clone(m.older) }

// IsOlder reports whether tag is one of the previously published versions.
func (m *Manifest) IsOlder(tag VersionTag) bool {
	return slices.Contains(m.older, tag)
}

// String renders the manifest for logs.
func (m *Manifest) String() string {
	older := make([]string, 0, len(m.older))
	for _, t := range m.older {
		older = append(older, string(t))
	}
	return fmt.Sprintf("current=%s older=[%s]", m.current, strings.Join(older, ", "))
}

// String returns the tag as a plain string.
func (t VersionTag) String() string { return string(t) }

// Error implements the error interface.
func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed manifest: %s (%d token(s) in version block)", e.Reason, e.Tokens)
}

// Unwrap returns ErrMalformed for errors.Is() compatibility.
func (e *MalformedError) Unwrap() error { return ErrMalformed }
