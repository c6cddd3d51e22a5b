// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2025 Boothut Authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package osutil

import (
	"bytes"
	"fmt"
	"os/exec"
)

// OutputErr formats an error based on output if its length is not zero,
// or returns err otherwise.
func OutputErr(output []byte, err error) error {
	output = bytes.TrimSpace(output)
	if len(output) > 0 {
		if bytes.Contains(output, []byte{'\n'}) {
			err = fmt.Errorf("%v\n-----\n%s\n-----", err, output)
		} else {
			err = fmt.Errorf("%v (%s)", err, output)
		}
	}
	return err
}

// OutputErrCombine is like OutputErr, but with separate lists of
// standard output and standard error.
func OutputErrCombine(output, stderr []byte, err error) error {
	stderr = bytes.TrimSpace(stderr)
	if len(stderr) > 0 {
		output = append(output, '\n')
		output = append(output, stderr...)
	}
	return OutputErr(output, err)
}

// RunCmd runs the given command and returns trimmed standard output and
// standard error separately.
func RunCmd(cmd *exec.Cmd) (output, stderr []byte, err error) {
	var bufout, buferr bytes.Buffer
	if cmd.Stdout == nil {
		cmd.Stdout = &bufout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = &buferr
	}
	err = cmd.Run()
	return bufout.Bytes(), buferr.Bytes(), err
}

// RunSplitOutput runs name with the given arguments and returns its
// standard output and standard error separately.
func RunSplitOutput(name string, args ...string) (output, stderr []byte, err error) {
	return RunCmd(exec.Command(name, args...))
}

// ExitCode extracts the exit code from the error of a failed cmd.Run() or the
// original error if its not a exec.ExitError.
func ExitCode(runErr error) (e int, err error) {
	// golang, you are kidding me, right?
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return 0, runErr
}

// CommandExists reports whether the given command can be found in PATH.
func CommandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
