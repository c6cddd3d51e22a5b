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

package osutil

import (
	"os"
)

// Mount mounts the given device node on the mount point, creating the
// mount point first if needed.
func Mount(node, mountPoint string) error {
	if err := os.MkdirAll(mountPoint, 0755); err != nil {
		return err
	}
	output, stderr, err := RunSplitOutput("mount", node, mountPoint)
	if err != nil {
		return OutputErrCombine(output, stderr, err)
	}
	return nil
}

// Umount unmounts the given mount point.
func Umount(mountPoint string) error {
	output, stderr, err := RunSplitOutput("umount", mountPoint)
	if err != nil {
		return OutputErrCombine(output, stderr, err)
	}
	return nil
}
