//go:build windows

package harness

import "os/exec"

func setProcessGroup(_ *exec.Cmd) {}

func signalGroup(cmd *exec.Cmd, _ bool) error {
	return cmd.Process.Kill()
}
