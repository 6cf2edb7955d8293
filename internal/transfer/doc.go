// SPDX-License-Identifier: MPL-2.0

// Package transfer downloads a release artifact over HTTP with byte-range
// resume.
//
// Bytes are appended to a partial file beside the destination
// (<dest>.part). A sidecar marker (<dest>.part.version) pins the partial
// file to the version it belongs to: a partial file is resumed only when the
// marker names the requested version, and is discarded before any byte of a
// different version is written. On completion the marker is deleted and the
// partial file is renamed onto the destination.
//
// Cancellation is checked after every chunk. A cancelled or interrupted
// transfer leaves the partial file and marker in place so the next attempt
// for the same version resumes where this one stopped.
package transfer
