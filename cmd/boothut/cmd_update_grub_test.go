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
	"os"
	"path/filepath"

	. "gopkg.in/check.v1"

	"github.com/boothut/boothut/bootloader"
	"github.com/boothut/boothut/metadata"
	"github.com/boothut/boothut/testutil"
)

func (s *mainSuite) TestRegenerateMenu(c *C) {
	dataMnt, bootMnt := c.MkDir(), c.MkDir()
	c.Assert(metadata.Initialize(dataMnt, false, 10, ""), IsNil)
	reg, err := metadata.OpenRegistry(dataMnt)
	c.Assert(err, IsNil)
	c.Assert(reg.Add(&metadata.ISO{
		ID:          "id-1",
		Filename:    "ubuntu-24.04.iso",
		DisplayName: "Ubuntu 24.04",
		Family:      "ubuntu",
	}), IsNil)

	n, err := regenerateMenu(dataMnt, bootMnt, &bootloader.Options{Timeout: 7})
	c.Assert(err, IsNil)
	c.Check(n, Equals, 1)

	cfg := filepath.Join(bootMnt, "grub", "grub.cfg")
	c.Check(cfg, testutil.FileContains, "set timeout=7")
	c.Check(cfg, testutil.FileContains, `menuentry "Ubuntu 24.04"`)
	c.Check(cfg, testutil.FileContains, "/isos/ubuntu-24.04.iso")
	c.Check(cfg, testutil.FileContains, `menuentry "System Settings"`)
}

func (s *mainSuite) TestRegenerateMenuDropsStaleEntries(c *C) {
	dataMnt, bootMnt := c.MkDir(), c.MkDir()
	c.Assert(metadata.Initialize(dataMnt, false, 10, ""), IsNil)

	cfg := filepath.Join(bootMnt, "grub", "grub.cfg")
	c.Assert(os.MkdirAll(filepath.Dir(cfg), 0755), IsNil)
	stale := "menuentry \"Removed Long Ago\" {\n    loopback loop /isos/gone.iso\n}\n"
	c.Assert(os.WriteFile(cfg, []byte(stale), 0644), IsNil)

	n, err := regenerateMenu(dataMnt, bootMnt, &bootloader.Options{Timeout: 10})
	c.Assert(err, IsNil)
	c.Check(n, Equals, 0)

	buf, err := os.ReadFile(cfg)
	c.Assert(err, IsNil)
	c.Check(string(buf), Not(testutil.Contains), "Removed Long Ago")
	c.Check(cfg, testutil.FileContains, `menuentry "System Settings"`)
}
