// SPDX-License-Identifier: MPL-2.0

package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/shell"
)

// ErrNoCommand is returned when the relaunch command expands to nothing.
var ErrNoCommand = errors.New("relaunch command is empty")

//nolint:gochecknoglobals // Test seam for starting the detached process.
var startDetached = func(cmd *exec.Cmd) error {
	setDetachedProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Let the OS reap the child; this process exits right after.
	return cmd.Process.Release()
}

// ExecRelauncher starts the companion application as a detached process.
//
// Command is split into argv with shell quoting rules. $ARTIFACT and
// $ARTIFACT_DIR expand to the artifact path and its directory; other
// variables come from Env, then the process environment.
type ExecRelauncher struct {
	Command string
	Dir     string   // Working directory; defaults to the artifact's directory
	Env     []string // Extra KEY=VALUE pairs for expansion and the child
	Logger  *log.Logger
}

// Relaunch starts the application for artifact and returns without waiting.
func (r ExecRelauncher) Relaunch(_ context.Context, artifact string) error {
	logger := r.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	argv, err := r.argv(artifact)
	if err != nil {
		return err
	}

	dir := r.Dir
	if dir == "" {
		dir = filepath.Dir(artifact)
	}

	// Deliberately not CommandContext: the child must outlive this process.
	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // Command line comes from the user's own configuration.
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), r.Env...)
	cmd.Env = append(cmd.Env, "ARTIFACT="+artifact, "ARTIFACT_DIR="+filepath.Dir(artifact))

	logger.Info("relaunching application", "cmd", cmd.String(), "dir", dir)
	if err := startDetached(cmd); err != nil {
		return fmt.Errorf("starting %s: %w", argv[0], err)
	}
	return nil
}

// argv expands the configured command line for artifact.
func (r ExecRelauncher) argv(artifact string) ([]string, error) {
	extra := make(map[string]string, len(r.Env)+2)
	for _, kv := range r.Env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			extra[k] = v
		}
	}
	extra["ARTIFACT"] = artifact
	extra["ARTIFACT_DIR"] = filepath.Dir(artifact)

	fields, err := shell.Fields(r.Command, func(name string) string {
		if v, ok := extra[name]; ok {
			return v
		}
		return os.Getenv(name)
	})
	if err != nil {
		return nil, fmt.Errorf("parsing relaunch command: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNoCommand
	}
	return fields, nil
}
