//go:build !windows

package capture

import (
	"os/exec"
	"syscall"
)

// setupProcessGroup puts ffmpeg in its own process group so terminal signals reach only us.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
