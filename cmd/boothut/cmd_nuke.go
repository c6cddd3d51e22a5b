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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/boothut/boothut/config"
	"github.com/boothut/boothut/device"
	"github.com/boothut/boothut/osutil"
	"github.com/boothut/boothut/plan"
	"github.com/boothut/boothut/wipe"
)

type cmdNuke struct {
	Pattern string `long:"pattern" choice:"random" choice:"zeros" choice:"dod" description:"Overwrite pattern"`
	Force   bool   `long:"force" description:"Allow wiping a non-removable device"`
	Yes     bool   `long:"yes" short:"y" description:"Skip the confirmation prompt"`

	Positional struct {
		Device string `positional-arg-name:"<device>" required:"yes" description:"Block device node, e.g. /dev/sdb"`
	} `positional-args:"yes" required:"yes"`
}

func init() {
	addCommand("nuke",
		"Securely wipe a whole device",
		`The nuke command overwrites every byte of the device with the
selected pattern, without creating any partitions afterwards. All data
on the device is destroyed beyond recovery.`,
		&cmdNuke{})
}

func (c *cmdNuke) Execute([]string) error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}
	pattern := cfg.WipePattern
	if c.Pattern != "" {
		pattern = plan.WipePattern(c.Pattern)
	}

	profile, err := device.Resolve(c.Positional.Device)
	if err != nil {
		return err
	}
	if !profile.Removable && !c.Force {
		return &plan.NotRemovableError{Device: profile.Device}
	}
	mounted, err := osutil.MountedDevicePaths(profile.Device)
	if err != nil {
		return err
	}
	if len(mounted) > 0 {
		return &plan.ProtectedError{
			Device: profile.Device,
			Reason: fmt.Sprintf("device is mounted at %s", mounted[0]),
		}
	}

	if !c.Yes {
		if err := confirmDestruction(profile); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs := &consoleObserver{}
	obs.StartStep(plan.StepWipe, fmt.Sprintf("Securely wiping %s (%s)", profile.Device, pattern))
	err = wipe.Run(ctx, profile.Device, pattern, func(written, total uint64) {
		obs.Progress(plan.StepWipe, written, total)
	})
	obs.FinishStep(plan.StepWipe)
	if err != nil {
		return err
	}
	fmt.Fprintf(Stdout, "%s has been securely wiped.\n", profile.Device)
	return nil
}
