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

	"github.com/boothut/boothut/osutil"
	"github.com/boothut/boothut/testutil"
)

func (s *mainSuite) TestUnlockOpensAndMounts(c *C) {
	dev := s.mockStick(c)
	sfdisk := testutil.MockCommand(c, "sfdisk", "exit 1")
	s.AddCleanup(sfdisk.Restore)
	cmd := testutil.MockCommand(c, "cryptsetup", "")
	s.AddCleanup(cmd.Restore)
	cmd.Also("mount", "")
	restore := mockReadPassphrase(func() (string, error) {
		return "Tr0pical-Thunderstorm!", nil
	})
	defer restore()

	mnt := filepath.Join(c.MkDir(), "stick")
	err := run([]string{"unlock", "--mount", mnt, dev})
	c.Assert(err, IsNil)

	c.Check(cmd.Calls(), DeepEquals, [][]string{
		{"cryptsetup", "isLuks", "/dev/sdy3"},
		{"cryptsetup", "open", "--type", "luks2", "--key-file", "-", "/dev/sdy3", "boothut-sdy"},
		{"mount", "/dev/mapper/boothut-sdy", mnt},
	})
	c.Check(s.stdout.String(), testutil.Contains, "Unlocked /dev/sdy at "+mnt)
}

func (s *mainSuite) TestUnlockRejectsPlainDevice(c *C) {
	dev := s.mockStick(c)
	sfdisk := testutil.MockCommand(c, "sfdisk", "exit 1")
	s.AddCleanup(sfdisk.Restore)
	cmd := testutil.MockCommand(c, "cryptsetup", "exit 1")
	s.AddCleanup(cmd.Restore)

	err := run([]string{"unlock", dev})
	c.Check(err, ErrorMatches, "data partition /dev/sdy3 is not encrypted")
	c.Check(cmd.Calls(), DeepEquals, [][]string{
		{"cryptsetup", "isLuks", "/dev/sdy3"},
	})
}

func (s *mainSuite) TestLockUnmountsAndCloses(c *C) {
	dev := s.mockStick(c)
	sfdisk := testutil.MockCommand(c, "sfdisk", "exit 1")
	s.AddCleanup(sfdisk.Restore)
	cmd := testutil.MockCommand(c, "cryptsetup", "")
	s.AddCleanup(cmd.Restore)
	cmd.Also("umount", "")

	mountInfo := filepath.Join(c.MkDir(), "mountinfo")
	line := "26 27 0:23 / /run/boothut/sdy rw,relatime shared:7 - ext4 /dev/mapper/boothut-sdy rw\n"
	c.Assert(os.WriteFile(mountInfo, []byte(line), 0644), IsNil)
	s.AddCleanup(osutil.MockMountInfo(mountInfo))

	err := run([]string{"lock", dev})
	c.Assert(err, IsNil)

	c.Check(cmd.Calls(), DeepEquals, [][]string{
		{"umount", "/run/boothut/sdy"},
		{"cryptsetup", "close", "boothut-sdy"},
	})
	c.Check(s.stdout.String(), testutil.Contains, "Locked /dev/sdy")
}

func (s *mainSuite) TestLockWithoutMountStillCloses(c *C) {
	dev := s.mockStick(c)
	sfdisk := testutil.MockCommand(c, "sfdisk", "exit 1")
	s.AddCleanup(sfdisk.Restore)
	cmd := testutil.MockCommand(c, "cryptsetup", "")
	s.AddCleanup(cmd.Restore)

	err := run([]string{"lock", dev})
	c.Assert(err, IsNil)
	c.Check(cmd.Calls(), DeepEquals, [][]string{
		{"cryptsetup", "close", "boothut-sdy"},
	})
}
