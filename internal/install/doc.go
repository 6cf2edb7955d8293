// SPDX-License-Identifier: MPL-2.0

// Package install owns the state that lives next to the companion
// application: the installed version record, the artifact URL template and
// the detached relaunch of the application once the updater is done.
package install
