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
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/boothut/boothut/device"
	"github.com/boothut/boothut/iso"
	"github.com/boothut/boothut/logger"
	"github.com/boothut/boothut/luks2"
	"github.com/boothut/boothut/metadata"
	"github.com/boothut/boothut/osutil"
)

func init() {
	cmd := addCommand("iso",
		"Manage the ISO images on a prepared device",
		`The iso command adds, removes, lists and verifies the ISO images
stored on a device prepared with "boothut format".`,
		&struct{}{})
	if _, err := cmd.AddCommand("add",
		"Copy an image onto the device and add its boot menu entry", "",
		&cmdISOAdd{}); err != nil {
		logger.Panicf("cannot add iso add command: %v", err)
	}
	if _, err := cmd.AddCommand("remove",
		"Remove an image, its registry record and its boot menu entry", "",
		&cmdISORemove{}); err != nil {
		logger.Panicf("cannot add iso remove command: %v", err)
	}
	if _, err := cmd.AddCommand("list",
		"List the images registered on the device", "",
		&cmdISOList{}); err != nil {
		logger.Panicf("cannot add iso list command: %v", err)
	}
	if _, err := cmd.AddCommand("verify",
		"Recompute an image checksum and compare it to the registry", "",
		&cmdISOVerify{}); err != nil {
		logger.Panicf("cannot add iso verify command: %v", err)
	}
}

// withMountedDevice mounts the boot and data partitions of a prepared
// device, opening the encrypted container first when there is one, and
// guarantees teardown in reverse order.
func withMountedDevice(devicePath string, fn func(dataMnt, bootMnt string) error) error {
	profile, err := device.Resolve(devicePath)
	if err != nil {
		return err
	}
	bootNode := profile.PartitionNode(2)
	dataNode := profile.PartitionNode(3)

	var mapperName string
	if luks2.IsLUKS(dataNode) {
		fmt.Fprintf(Stdout, "Passphrase for %s: ", dataNode)
		passphrase, err := readPassphrase()
		fmt.Fprintln(Stdout)
		if err != nil {
			return err
		}
		mapperName = "boothut-" + uuid.NewString()
		mapped, err := luks2.Open(dataNode, passphrase, mapperName)
		if err != nil {
			return err
		}
		dataNode = mapped
	}
	closeContainer := func() {
		if mapperName == "" {
			return
		}
		if err := luks2.Close(mapperName); err != nil {
			logger.Noticef("cannot close encrypted container %s: %v", mapperName, err)
		}
	}

	runDir, err := os.MkdirTemp("", "boothut-")
	if err != nil {
		closeContainer()
		return err
	}
	defer os.RemoveAll(runDir)
	defer closeContainer()

	dataMnt := filepath.Join(runDir, "data")
	bootMnt := filepath.Join(runDir, "boot")
	if err := osutil.Mount(dataNode, dataMnt); err != nil {
		return err
	}
	defer func() {
		if uerr := osutil.Umount(dataMnt); uerr != nil {
			logger.Noticef("cannot unmount %s: %v", dataMnt, uerr)
		}
	}()
	if err := osutil.Mount(bootNode, bootMnt); err != nil {
		return err
	}
	defer func() {
		if uerr := osutil.Umount(bootMnt); uerr != nil {
			logger.Noticef("cannot unmount %s: %v", bootMnt, uerr)
		}
	}()

	return fn(dataMnt, bootMnt)
}

type cmdISOAdd struct {
	Name string `long:"name" description:"Display name for the boot menu entry"`

	Positional struct {
		Device string `positional-arg-name:"<device>" required:"yes"`
		Image  string `positional-arg-name:"<image.iso>" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

func (c *cmdISOAdd) Execute([]string) error {
	return withMountedDevice(c.Positional.Device, func(dataMnt, bootMnt string) error {
		obs := &consoleObserver{}
		fmt.Fprintf(Stdout, "Adding %s ...\n", c.Positional.Image)
		rec, err := iso.Add(dataMnt, bootMnt, c.Positional.Image, c.Name, func(done, total uint64) {
			obs.Progress("", done, total)
		})
		obs.FinishStep("")
		if err != nil {
			return err
		}
		fmt.Fprintf(Stdout, "Added %q (%s family).\n", rec.DisplayName, rec.Family)
		return nil
	})
}

type cmdISORemove struct {
	Positional struct {
		Device string `positional-arg-name:"<device>" required:"yes"`
		Image  string `positional-arg-name:"<id-or-filename>" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

func (c *cmdISORemove) Execute([]string) error {
	return withMountedDevice(c.Positional.Device, func(dataMnt, bootMnt string) error {
		if err := iso.Remove(dataMnt, bootMnt, c.Positional.Image); err != nil {
			return err
		}
		fmt.Fprintf(Stdout, "Removed %q.\n", c.Positional.Image)
		return nil
	})
}

type cmdISOList struct {
	Positional struct {
		Device string `positional-arg-name:"<device>" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

func (c *cmdISOList) Execute([]string) error {
	return withMountedDevice(c.Positional.Device, func(dataMnt, bootMnt string) error {
		reg, err := metadata.OpenRegistry(dataMnt)
		if err != nil {
			return err
		}
		isos := reg.List()
		if len(isos) == 0 {
			fmt.Fprintln(Stdout, "No images registered.")
			return nil
		}
		w := tabwriter.NewWriter(Stdout, 5, 3, 2, ' ', 0)
		fmt.Fprintln(w, "Name\tFamily\tSize\tAdded\tFilename")
		for _, rec := range isos {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				rec.DisplayName, rec.Family, formatSize(rec.Size),
				rec.AddedAt.Format("2006-01-02"), rec.Filename)
		}
		return w.Flush()
	})
}

type cmdISOVerify struct {
	Positional struct {
		Device string `positional-arg-name:"<device>" required:"yes"`
		Image  string `positional-arg-name:"<id-or-filename>" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

func (c *cmdISOVerify) Execute([]string) error {
	return withMountedDevice(c.Positional.Device, func(dataMnt, bootMnt string) error {
		obs := &consoleObserver{}
		fmt.Fprintf(Stdout, "Verifying %s ...\n", c.Positional.Image)
		err := iso.Verify(dataMnt, c.Positional.Image, func(done, total uint64) {
			obs.Progress("", done, total)
		})
		obs.FinishStep("")
		if err != nil {
			return err
		}
		fmt.Fprintf(Stdout, "%s verified.\n", c.Positional.Image)
		return nil
	})
}
