// SPDX-License-Identifier: MPL-2.0

// Package tui wraps charmbracelet/huh prompts used by the relaunch CLI.
// Prompts fall back to huh's accessible mode on stderr when stdin is not a
// terminal, and callers can ask Interactive() whether prompting makes sense.
package tui
