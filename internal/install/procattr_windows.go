// SPDX-License-Identifier: MPL-2.0

//go:build windows

package install

import (
	"os/exec"
	"syscall"
)

// detachedProcess is the DETACHED_PROCESS creation flag.
const detachedProcess = 0x00000008

// setDetachedProcAttr starts the child without the updater's console.
func setDetachedProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | detachedProcess,
	}
}
