package sandbox

import (
	"os/exec"
	"syscall"
)

// setProcAttrs places the child in its own process group so the deadline
// kill reaches the whole tree, not just the direct child.
func setProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
