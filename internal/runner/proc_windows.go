//go:build windows

package runner

import "os/exec"

// setProcAttr is a no-op on Windows; Kill takes the child down and WaitDelay
// bounds any orphaned pipe readers.
func setProcAttr(cmd *exec.Cmd) {}

// terminate kills the child process.
func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
