// SPDX-License-Identifier: MPL-2.0

// Package config loads relaunch settings from built-in defaults, an optional
// CUE file validated against the embedded #Config schema, and RELAUNCH_*
// environment variables, in increasing order of precedence.
package config
