// SPDX-License-Identifier: MPL-2.0

// Package check runs a manifest fetch as a cancellable unit of work bounded
// by a watchdog deadline.
//
// Each Check starts a worker goroutine that fetches the manifest and a
// watchdog goroutine that cancels the worker once the deadline elapses. Both
// publish into a single-assignment slot; whichever publishes first decides
// the Result and the caller blocks on that slot. The deadline grows linearly
// with the retry iteration: iteration * base interval.
package check
