// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by tests: a manually driven
// FakeClock for deadline and watchdog tests, environment and home directory
// overrides, and file setup that fails the test on error.
package testutil
