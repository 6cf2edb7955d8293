// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package install

import (
	"os/exec"
	"syscall"
)

// setDetachedProcAttr starts the child in a new session so it survives the
// updater exiting and is not hit by signals sent to the updater's terminal.
func setDetachedProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
