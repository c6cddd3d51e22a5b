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

	"github.com/boothut/boothut/cleanup"
	"github.com/boothut/boothut/config"
)

type cmdClean struct {
	DryRun bool `long:"dry-run" description:"Show what would be removed without removing anything"`

	Positional struct {
		Device string `positional-arg-name:"<device>" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

func init() {
	addCommand("clean",
		"Remove OS junk files from the data partition",
		`The clean command removes files that desktop systems scatter over
removable media, like .DS_Store, Thumbs.db and trash directories. The
image directory and the tool metadata are never touched.`,
		&cmdClean{})
}

func (c *cmdClean) Execute([]string) error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}
	return withMountedDevice(c.Positional.Device, func(dataMnt, bootMnt string) error {
		removed, err := cleanup.Run(dataMnt, cfg.CleanupRules, c.DryRun)
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			fmt.Fprintln(Stdout, "Nothing to clean.")
			return nil
		}
		for _, rel := range removed {
			fmt.Fprintf(Stdout, "%s\n", rel)
		}
		if c.DryRun {
			fmt.Fprintf(Stdout, "Would remove %d entries.\n", len(removed))
		} else {
			fmt.Fprintf(Stdout, "Removed %d entries.\n", len(removed))
		}
		return nil
	})
}
