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

// Package mkfs creates filesystems on block devices through the
// platform formatter tools.
package mkfs

import (
	"fmt"
	"os/exec"

	"github.com/boothut/boothut/osutil"
)

// MakeFunc defines a function signature that is used by all of the
// mkfs.<filesystem> handlers supported in this package.
type MakeFunc func(node, label string, sectorSize uint64) error

var mkfsHandlers = map[string]MakeFunc{
	"vfat": mkfsVfat,
	"ext4": mkfsExt4,
}

// Error carries the formatter's exit code for error reporting that
// distinguishes tool failure from tool absence.
type Error struct {
	Node     string
	ExitCode int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cannot create filesystem on %s: %v", e.Node, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Make creates a filesystem of the given type, with the given label, on
// the device node. The sector size provides a hint for additional tuning
// of the created filesystem.
func Make(typ, node, label string, sectorSize uint64) error {
	h, ok := mkfsHandlers[typ]
	if !ok {
		return fmt.Errorf("cannot create unsupported filesystem %q", typ)
	}
	return h(node, label, sectorSize)
}

func runMkfs(node string, args ...string) error {
	output, err := exec.Command(args[0], args[1:]...).CombinedOutput()
	if err != nil {
		exitCode, _ := osutil.ExitCode(err)
		return &Error{Node: node, ExitCode: exitCode, Err: osutil.OutputErr(output, err)}
	}
	return nil
}

// mkfsExt4 creates an ext4 filesystem with the given label. The defaults
// of mke2fs are used, -F suppresses the "not a whole disk" prompt when
// formatting a mapper device.
func mkfsExt4(node, label string, sectorSize uint64) error {
	args := []string{"mkfs.ext4", "-F"}
	if label != "" {
		args = append(args, "-L", label)
	}
	args = append(args, node)
	return runMkfs(node, args...)
}

// mkfsVfat creates a FAT32 filesystem with the given label.
func mkfsVfat(node, label string, sectorSize uint64) error {
	// mkfs.fat will automatically increase the logical sector size to
	// the internal sector size of the disk if the specified size is too
	// small, but be explicit when the disk sector size is known to be
	// larger than the default 512.
	args := []string{"mkfs.fat"}
	if sectorSize > 512 {
		args = append(args, "-S", fmt.Sprintf("%d", sectorSize))
	}
	args = append(args, "-F", "32")
	if label != "" {
		args = append(args, "-n", label)
	}
	args = append(args, node)
	return runMkfs(node, args...)
}
