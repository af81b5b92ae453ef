// SPDX-License-Identifier: Apache-2.0

//go:build windows

package sandbox

import (
	"errors"
	"os"
	"os/exec"
)

const homeVar = "USERPROFILE"

func setupProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
