//go:build !windows

package ide

import (
	"fmt"
	"os/exec"
	"syscall"

	"starter/pkg/logging"
)

// configureProcAttr makes the process leader of a new process group.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// killProcessGroup signals the whole process group of pid, falling back to the
// process alone.
func killProcessGroup(pid int, sig syscall.Signal) error {
	if err := syscall.Kill(-pid, sig); err != nil {
		if err2 := syscall.Kill(pid, sig); err2 != nil {
			return fmt.Errorf("failed to kill process group -%d: %v, also failed to kill process %d: %v", pid, err, pid, err2)
		}
		logging.Debug("IDE", "Process group kill failed, but individual process kill succeeded for PID %d", pid)
	}
	return nil
}
