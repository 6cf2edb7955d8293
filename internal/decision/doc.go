// SPDX-License-Identifier: MPL-2.0

// Package decision compares the installed version against a published
// manifest and yields an update decision.
//
// Versions are compared by exact equality and list membership only. A tag
// that is neither current nor a known older release is still recommended
// for update, so installations drift back onto the published line.
package decision
