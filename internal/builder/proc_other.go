//go:build !windows

package builder

import "os/exec"

func hideWindow(cmd *exec.Cmd) {}
