// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the CLI commands for relaunch.
//
// The root command runs a full update pass: check the published version
// manifest, download a newer artifact with resume support, record the
// installed version and start the application. Subcommands expose the
// individual steps (check, download, status, clean) plus configuration
// helpers and the issue catalog.
package cmd
