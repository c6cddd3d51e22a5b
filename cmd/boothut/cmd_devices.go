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
	"text/tabwriter"

	"github.com/boothut/boothut/device"
)

type cmdDevices struct{}

func init() {
	addCommand("devices",
		"List removable devices that can be formatted",
		`The devices command lists the removable block devices visible on
this system together with their size and current partitioning.`,
		&cmdDevices{})
}

func (c *cmdDevices) Execute([]string) error {
	profiles, err := device.Enumerate()
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		fmt.Fprintln(Stdout, "No removable devices found.")
		return nil
	}
	w := tabwriter.NewWriter(Stdout, 5, 3, 2, ' ', 0)
	fmt.Fprintln(w, "Device\tSize\tModel\tSchema\tPartitions")
	for _, p := range profiles {
		model := strings.TrimSpace(strings.TrimSpace(p.Vendor) + " " + strings.TrimSpace(p.Model))
		if model == "" {
			model = "-"
		}
		schema := p.Schema
		if schema == "" {
			schema = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			p.Device, formatSize(p.SizeBytes), model, schema, len(p.Partitions))
	}
	return w.Flush()
}

func formatSize(size uint64) string {
	switch {
	case size >= 1024*1024*1024:
		return fmt.Sprintf("%.1fG", float64(size)/(1024*1024*1024))
	case size >= 1024*1024:
		return fmt.Sprintf("%.1fM", float64(size)/(1024*1024))
	default:
		return fmt.Sprintf("%d", size)
	}
}
