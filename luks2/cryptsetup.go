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

// Package luks2 wraps the cryptsetup command for creating, opening and
// closing LUKS2 containers.
package luks2

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/boothut/boothut/osutil"
	"github.com/boothut/boothut/plan"
)

// cryptsetupCmd is a helper for running the cryptsetup command. If stdin
// is supplied, data read from it is supplied to cryptsetup via its stdin.
func cryptsetupCmd(stdin io.Reader, args ...string) error {
	cmd := exec.Command("cryptsetup", args...)
	cmd.Stdin = stdin
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("cryptsetup failed with: %v", osutil.OutputErr(output, err))
	}
	return nil
}

// OpenError is returned when an existing container cannot be opened,
// typically because of a wrong passphrase.
type OpenError struct {
	Device string
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("cannot open encrypted container on %s: %v", e.Device, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Format initializes the given partition as a LUKS2 container with the
// parameters of the plan. The passphrase is fed through stdin, it never
// appears on the command line.
func Format(devicePath, passphrase string, params *plan.EncryptionParams) error {
	args := []string{
		"luksFormat",
		"--type", "luks2",
		"--cipher", params.Cipher,
		"--key-size", strconv.Itoa(params.KeySizeBits),
		"--pbkdf", params.KDF,
		// target wall clock cost of the key derivation benchmark
		"--iter-time", strconv.Itoa(params.KDFTimeMs),
		// read the passphrase from stdin up to EOF, so it may contain
		// newlines
		"--key-file", "-",
		// remove warnings and confirmation questions
		"--batch-mode",
		devicePath,
	}
	return cryptsetupCmd(strings.NewReader(passphrase), args...)
}

// Open opens the LUKS2 container on the given partition under the given
// mapper name and returns the mapped device node.
func Open(devicePath, passphrase, name string) (mappedDevice string, err error) {
	args := []string{
		"open",
		"--type", "luks2",
		"--key-file", "-",
		devicePath,
		name,
	}
	if err := cryptsetupCmd(strings.NewReader(passphrase), args...); err != nil {
		return "", &OpenError{Device: devicePath, Err: err}
	}
	return "/dev/mapper/" + name, nil
}

// IsLUKS reports whether the given partition carries a LUKS header.
func IsLUKS(devicePath string) bool {
	return cryptsetupCmd(nil, "isLuks", devicePath) == nil
}

// Close removes the device mapping of an opened container. This is a
// scoped-resource obligation of every caller of Open, on success and
// failure paths alike.
func Close(name string) error {
	return cryptsetupCmd(nil, "close", name)
}
