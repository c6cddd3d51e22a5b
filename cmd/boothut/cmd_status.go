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
	"strings"

	"github.com/boothut/boothut/device"
	"github.com/boothut/boothut/logger"
	"github.com/boothut/boothut/luks2"
	"github.com/boothut/boothut/osutil"
	"github.com/boothut/boothut/state"
)

type cmdStatus struct {
	Positional struct {
		Device string `positional-arg-name:"<device>" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

func init() {
	addCommand("status",
		"Show the state of a device",
		`The status command shows the partition layout, encryption state
and last recorded format outcome of a device.`,
		&cmdStatus{})
}

func (c *cmdStatus) Execute([]string) error {
	profile, err := device.Resolve(c.Positional.Device)
	if err != nil {
		return err
	}

	model := strings.TrimSpace(strings.TrimSpace(profile.Vendor) + " " + strings.TrimSpace(profile.Model))
	if model == "" {
		model = "-"
	}
	schema := profile.Schema
	if schema == "" {
		schema = "none"
	}
	fmt.Fprintf(Stdout, "Device:      %s\n", profile.Device)
	fmt.Fprintf(Stdout, "Model:       %s\n", model)
	fmt.Fprintf(Stdout, "Size:        %s\n", formatSize(profile.SizeBytes))
	fmt.Fprintf(Stdout, "Removable:   %v\n", profile.Removable)
	fmt.Fprintf(Stdout, "Schema:      %s\n", schema)
	for _, part := range profile.Partitions {
		fmt.Fprintf(Stdout, "Partition:   %s  %s  %s\n",
			part.Node, formatSize(part.SizeSectors*profile.SectorSize), part.Name)
	}

	if luks2.IsLUKS(profile.PartitionNode(3)) {
		mapped := "/dev/mapper/" + mapperNameFor(profile)
		if osutil.FileExists(mapped) {
			fmt.Fprintf(Stdout, "Encryption:  LUKS2 (unlocked at %s)\n", mapped)
		} else {
			fmt.Fprintf(Stdout, "Encryption:  LUKS2 (locked)\n")
		}
	} else {
		fmt.Fprintf(Stdout, "Encryption:  none\n")
	}

	fmt.Fprintf(Stdout, "Last format: %s\n", lastFormatSummary(profile.Device))
	return nil
}

// lastFormatSummary consults the run journal; the journal is advisory
// so errors degrade to "unknown".
func lastFormatSummary(devicePath string) string {
	journal, err := state.Open(state.DefaultPath())
	if err != nil {
		logger.Debugf("cannot open run journal: %v", err)
		return "unknown"
	}
	defer journal.Close()
	last, err := journal.LastRun(devicePath)
	if err != nil {
		logger.Debugf("cannot read run journal: %v", err)
		return "unknown"
	}
	if last == nil {
		return "never"
	}
	if last.Failed {
		return fmt.Sprintf("failed at stage %q on %s (%s)",
			last.Stage, last.FinishedAt.Format("2006-01-02"), last.Cause)
	}
	return fmt.Sprintf("completed on %s", last.FinishedAt.Format("2006-01-02"))
}
