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

package main

import (
	"fmt"
	"path/filepath"

	"github.com/boothut/boothut/device"
	"github.com/boothut/boothut/logger"
	"github.com/boothut/boothut/luks2"
	"github.com/boothut/boothut/osutil"
)

type cmdUnlock struct {
	MountPoint string `long:"mount" description:"Where to mount the data partition"`

	Positional struct {
		Device string `positional-arg-name:"<device>" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

type cmdLock struct {
	Positional struct {
		Device string `positional-arg-name:"<device>" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

func init() {
	addCommand("unlock",
		"Open and mount the encrypted data partition",
		`The unlock command opens the encrypted data partition of a
prepared device and mounts it, so that images and documents on it can
be accessed directly. Use "boothut lock" when done.`,
		&cmdUnlock{})
	addCommand("lock",
		"Unmount and close the encrypted data partition",
		`The lock command unmounts the data partition opened by
"boothut unlock" and closes the encrypted container.`,
		&cmdLock{})
}

// mapperNameFor derives the stable mapper name unlock and lock agree
// on, e.g. boothut-sdb.
func mapperNameFor(profile *device.Profile) string {
	return "boothut-" + profile.Name
}

// defaultUnlockDir is where unlock mounts the data partition when no
// mount point is given.
var defaultUnlockDir = "/run/boothut"

func (c *cmdUnlock) Execute([]string) error {
	profile, err := device.Resolve(c.Positional.Device)
	if err != nil {
		return err
	}
	dataNode := profile.PartitionNode(3)
	if !luks2.IsLUKS(dataNode) {
		return fmt.Errorf("data partition %s is not encrypted", dataNode)
	}

	fmt.Fprintf(Stdout, "Passphrase for %s: ", dataNode)
	passphrase, err := readPassphrase()
	fmt.Fprintln(Stdout)
	if err != nil {
		return err
	}

	mapperName := mapperNameFor(profile)
	mapped, err := luks2.Open(dataNode, passphrase, mapperName)
	if err != nil {
		return err
	}

	mountPoint := c.MountPoint
	if mountPoint == "" {
		mountPoint = filepath.Join(defaultUnlockDir, profile.Name)
	}
	if err := osutil.Mount(mapped, mountPoint); err != nil {
		if cerr := luks2.Close(mapperName); cerr != nil {
			logger.Noticef("cannot close encrypted container %s: %v", mapperName, cerr)
		}
		return err
	}
	fmt.Fprintf(Stdout, "Unlocked %s at %s. Lock it again with \"boothut lock %s\".\n",
		profile.Device, mountPoint, profile.Device)
	return nil
}

func (c *cmdLock) Execute([]string) error {
	profile, err := device.Resolve(c.Positional.Device)
	if err != nil {
		return err
	}
	mapperName := mapperNameFor(profile)
	mapped := "/dev/mapper/" + mapperName

	mounted, err := osutil.MountedDevicePaths(mapped)
	if err != nil {
		return err
	}
	for _, mountPoint := range mounted {
		if err := osutil.Umount(mountPoint); err != nil {
			return err
		}
	}
	if err := luks2.Close(mapperName); err != nil {
		return err
	}
	fmt.Fprintf(Stdout, "Locked %s.\n", profile.Device)
	return nil
}
