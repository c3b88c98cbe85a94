// SPDX-License-Identifier: MPL-2.0

//go:build unix

package spawn

import (
	"os/exec"
	"syscall"
)

// detach puts the child in its own process group so a terminal interrupt
// aimed at this server does not also reach the clone.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
