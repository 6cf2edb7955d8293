// SPDX-License-Identifier: MPL-2.0

// Package update sequences one updater run: check for a new release, decide,
// optionally download it, then hand execution over to the application.
//
// The Orchestrator owns no I/O of its own. The check, the installed version
// record, the transfer, the relaunch and the user's confirmation are all
// injected, so the sequencing can be exercised with fakes. Every run leaves
// an outcome Record that other processes can read or wait for through a
// ResultStore.
package update
