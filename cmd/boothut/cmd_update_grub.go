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

	"github.com/boothut/boothut/bootloader"
	"github.com/boothut/boothut/config"
	"github.com/boothut/boothut/metadata"
	"github.com/boothut/boothut/osutil"
)

type cmdUpdateGrub struct {
	Positional struct {
		Device string `positional-arg-name:"<device>" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

func init() {
	addCommand("update-grub",
		"Regenerate the boot menu from the ISO registry",
		`The update-grub command rewrites the grub configuration of a
prepared device from scratch and recreates one menu entry per image in
the registry. Use it when the menu and the registry have gone out of
sync.`,
		&cmdUpdateGrub{})
}

func (c *cmdUpdateGrub) Execute([]string) error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}
	return withMountedDevice(c.Positional.Device, func(dataMnt, bootMnt string) error {
		opts := &bootloader.Options{Timeout: cfg.BootTimeout, Theme: cfg.Theme}
		// the device remembers the settings it was formatted with
		if devCfg, err := metadata.LoadDeviceConfig(dataMnt); err != nil {
			return err
		} else if devCfg != nil {
			opts.Timeout = devCfg.BootTimeout
			opts.Theme = devCfg.Theme
		}
		n, err := regenerateMenu(dataMnt, bootMnt, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(Stdout, "Regenerated boot menu with %d image entries.\n", n)
		return nil
	})
}

// regenerateMenu rewrites the grub configuration from scratch and adds
// one entry per registered image, returning the number of entries.
func regenerateMenu(dataMnt, bootMnt string, opts *bootloader.Options) (int, error) {
	reg, err := metadata.OpenRegistry(dataMnt)
	if err != nil {
		return 0, err
	}
	cfgPath := filepath.Join(bootMnt, "grub", "grub.cfg")
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		return 0, err
	}
	if err := osutil.AtomicWriteFile(cfgPath, []byte(bootloader.GenerateConfig(opts)), 0644); err != nil {
		return 0, err
	}
	for _, rec := range reg.List() {
		entry := &bootloader.MenuEntry{
			Title:   rec.DisplayName,
			ISOPath: "/" + metadata.ISODir + "/" + rec.Filename,
			Family:  bootloader.Family(rec.Family),
		}
		if err := bootloader.AddMenuEntry(cfgPath, entry); err != nil {
			return 0, err
		}
	}
	return len(reg.List()), nil
}
