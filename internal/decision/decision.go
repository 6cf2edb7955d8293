// SPDX-License-Identifier: MPL-2.0

package decision

import (
	"fmt"

	"github.com/relaunch/relaunch/internal/manifest"
)

const (
	// UpToDate means the installed version equals the published current version.
	UpToDate Kind = iota + 1
	// UpdateRecommended means the current version should be installed; Reason says why.
	UpdateRecommended
	// CheckFailed means no manifest was obtained, so nothing could be compared.
	CheckFailed
)

const (
	// ReasonNone accompanies UpToDate and CheckFailed.
	ReasonNone Reason = iota
	// NoLocalVersion means no installed version record exists.
	NoLocalVersion
	// NewerFound means the installed version is a known older release.
	NewerFound
	// Unrecognized means the installed version is neither current nor a known older release.
	Unrecognized
)

type (
	// Kind classifies a decision.
	Kind int

	// Reason qualifies an UpdateRecommended decision.
	Reason int

	// Decision is the outcome of comparing installed and published versions.
	Decision struct {
		Kind      Kind
		Reason    Reason
		Installed manifest.VersionTag // Empty when no record exists
		Current   manifest.VersionTag // Empty for CheckFailed
	}
)

// Decide evaluates the rules in order: no installed record, equal to current,
// member of older, anything else. An empty installed tag is treated as absent.
func Decide(installed manifest.VersionTag, present bool, m *manifest.Manifest) Decision {
	if m == nil {
		return Failed()
	}

	d := Decision{Installed: installed, Current: m.Current()}
	switch {
	case !present || installed == "":
		d.Kind, d.Reason = UpdateRecommended, NoLocalVersion
		d.Installed = ""
	case installed == m.Current():
		d.Kind = UpToDate
	case m.IsOlder(installed):
		d.Kind, d.Reason = UpdateRecommended, NewerFound
	default:
		d.Kind, d.Reason = UpdateRecommended, Unrecognized
	}
	return d
}

// Failed returns the decision used when a check does not produce a manifest.
func Failed() Decision {
	return Decision{Kind: CheckFailed}
}

// NeedsUpdate reports whether the decision recommends installing Current.
func (d Decision) NeedsUpdate() bool { return d.Kind == UpdateRecommended }

// String returns a compact form for logs, e.g. "update-recommended(newer-found)".
func (d Decision) String() string {
	if d.Reason == ReasonNone {
		return d.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", d.Kind, d.Reason)
}

// Message returns a sentence suitable for the presentation layer.
func (d Decision) Message() string {
	switch d.Kind {
	case UpToDate:
		return fmt.Sprintf("Version %s is up to date.", d.Current)
	case UpdateRecommended:
		switch d.Reason {
		case NoLocalVersion:
			return fmt.Sprintf("No installed version found. Version %s is available.", d.Current)
		case NewerFound:
			return fmt.Sprintf("A newer version is available: %s (installed %s).", d.Current, d.Installed)
		case Unrecognized:
			return fmt.Sprintf("Installed version %s is not a published release. Version %s is available.", d.Installed, d.Current)
		}
		return fmt.Sprintf("Version %s is available.", d.Current)
	case CheckFailed:
		return "Could not check for updates."
	default:
		return "Unknown update state."
	}
}

// String returns the kebab-case name of the kind.
func (k Kind) String() string {
	switch k {
	case UpToDate:
		return "up-to-date"
	case UpdateRecommended:
		return "update-recommended"
	case CheckFailed:
		return "check-failed"
	default:
		return "unknown"
	}
}

// String returns the kebab-case name of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case NoLocalVersion:
		return "no-local-version"
	case NewerFound:
		return "newer-found"
	case Unrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}
