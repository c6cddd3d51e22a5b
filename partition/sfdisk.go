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

// Package partition writes GPT partition tables through sfdisk.
package partition

import (
	"bytes"
	"fmt"
	"os/exec"
	"time"

	"gopkg.in/retry.v1"

	"github.com/boothut/boothut/osutil"
	"github.com/boothut/boothut/plan"
)

// Error is returned when the partition table write fails. After this
// error the partition table of the device must be considered
// indeterminate.
type Error struct {
	ExitCode int
	Stderr   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("sfdisk failed with exit code %d: %s", e.ExitCode, e.Stderr)
}

var ensureNodesExist = ensureNodesExistImpl

// nodeWaitStrategy bounds how long we wait for the kernel to expose the
// partition device nodes after the table write.
var nodeWaitStrategy = retry.LimitTime(10*time.Second,
	retry.Exponential{
		Initial: 100 * time.Millisecond,
		Factor:  1.5,
	},
)

// sfdiskScript renders the plan's partition specs as an sfdisk input
// script. The whole table is written in one atomic sfdisk invocation.
func sfdiskScript(p *plan.Plan) []byte {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "label: gpt\n")
	for _, part := range p.Partitions {
		fmt.Fprintf(buf, "start=%d, size=%d, type=%s, name=%q\n",
			part.StartSector, part.SizeSectors, part.Type, part.Name)
	}
	return buf.Bytes()
}

// Create writes the partition table defined by the plan. Either all
// three partitions exist exactly as specified afterwards, or an Error is
// returned and no partial recovery is attempted.
func Create(p *plan.Plan, nodes []string) error {
	// sfdisk will try to re-read the partition table with the BLKRRPART
	// ioctl by default; use --no-reread and rescan with partx below.
	cmd := exec.Command("sfdisk", "--no-reread", "--wipe", "always", p.Device)
	cmd.Stdin = bytes.NewReader(sfdiskScript(p))
	output, stderr, err := osutil.RunCmd(cmd)
	if err != nil {
		exitCode, _ := osutil.ExitCode(err)
		return &Error{
			ExitCode: exitCode,
			Stderr:   string(bytes.TrimSpace(append(output, stderr...))),
		}
	}

	if err := reloadPartitionTable(p.Device); err != nil {
		return err
	}

	if err := ensureNodesExist(nodes); err != nil {
		return fmt.Errorf("partition not available: %v", err)
	}
	return nil
}

// reloadPartitionTable instructs the kernel to re-read the partition
// table of a given block device.
func reloadPartitionTable(device string) error {
	// Use the BLKPG ioctl via partx, which doesn't remove existing
	// partitions, only appends new partitions with the right size and
	// offset.
	if output, err := exec.Command("partx", "-u", device).CombinedOutput(); err != nil {
		return osutil.OutputErr(output, err)
	}
	// Trigger udev and wait until all events in the queue are handled,
	// so that by-label symlinks are in place.
	if output, err := exec.Command("udevadm", "trigger", "--settle", device).CombinedOutput(); err != nil {
		return osutil.OutputErr(output, err)
	}
	return nil
}

// ensureNodesExistImpl waits until all given device nodes are available.
func ensureNodesExistImpl(nodes []string) error {
	for _, node := range nodes {
		found := false
		for attempt := retry.Start(nodeWaitStrategy, nil); attempt.Next(); {
			if osutil.FileExists(node) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("device %s not available", node)
		}
	}
	return nil
}
