// SPDX-License-Identifier: MPL-2.0

// Package manifest retrieves the published version document and extracts the
// current and previously published version tags from it.
//
// The document is plain text or HTML. The relevant section is delimited by
// lines containing "#Begin Version File" and "#End Version File"; inside it,
// markup spans are stripped and the remaining lines are read positionally as
// caption, current version, caption, older versions.
package manifest
