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
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	. "gopkg.in/check.v1"

	"github.com/boothut/boothut/device"
	"github.com/boothut/boothut/osutil"
	"github.com/boothut/boothut/pipeline"
	"github.com/boothut/boothut/plan"
	"github.com/boothut/boothut/testutil"
)

const nukeTargetSize = 64 * 1024

// mockNukeTarget creates a fake device node backed by a regular file
// full of 0xa5 bytes, with a matching sysfs entry.
func (s *mainSuite) mockNukeTarget(c *C, removable bool) string {
	dir := c.MkDir()
	devPath := filepath.Join(dir, "sdy")
	content := bytes.Repeat([]byte{0xa5}, nukeTargetSize)
	c.Assert(os.WriteFile(devPath, content, 0600), IsNil)

	sysBlock := c.MkDir()
	sys := filepath.Join(sysBlock, "sdy")
	c.Assert(os.MkdirAll(filepath.Join(sys, "queue"), 0755), IsNil)
	write := func(rel, content string) {
		c.Assert(os.WriteFile(filepath.Join(sys, rel), []byte(content+"\n"), 0644), IsNil)
	}
	write("size", strconv.FormatUint(nukeTargetSize/512, 10))
	removableFlag := "0"
	if removable {
		removableFlag = "1"
	}
	write("removable", removableFlag)
	write("ro", "0")
	write("queue/logical_block_size", "512")
	s.AddCleanup(device.MockSysBlockDir(sysBlock))

	cmd := testutil.MockCommand(c, "sfdisk", "exit 1")
	s.AddCleanup(cmd.Restore)
	return devPath
}

func (s *mainSuite) TestNukeZerosOverwritesDevice(c *C) {
	devPath := s.mockNukeTarget(c, true)

	err := run([]string{"nuke", "--yes", "--pattern", "zeros", devPath})
	c.Assert(err, IsNil)

	buf, err := os.ReadFile(devPath)
	c.Assert(err, IsNil)
	c.Check(buf, DeepEquals, make([]byte, nukeTargetSize))
	c.Check(s.stdout.String(), testutil.Contains, "has been securely wiped")
}

func (s *mainSuite) TestNukeRefusesFixedDisk(c *C) {
	devPath := s.mockNukeTarget(c, false)

	err := run([]string{"nuke", "--yes", devPath})
	c.Check(err, FitsTypeOf, &plan.NotRemovableError{})
	c.Check(exitCodeFor(err), Equals, exitValidation)

	buf, err := os.ReadFile(devPath)
	c.Assert(err, IsNil)
	c.Check(buf, DeepEquals, bytes.Repeat([]byte{0xa5}, nukeTargetSize))
}

func (s *mainSuite) TestNukeRefusesMountedDevice(c *C) {
	devPath := s.mockNukeTarget(c, true)

	mountInfo := filepath.Join(c.MkDir(), "mountinfo")
	line := "26 27 0:23 / /media/user/stick rw,relatime shared:7 - ext4 " + devPath + " rw\n"
	c.Assert(os.WriteFile(mountInfo, []byte(line), 0644), IsNil)
	s.AddCleanup(osutil.MockMountInfo(mountInfo))

	err := run([]string{"nuke", "--yes", devPath})
	c.Check(err, FitsTypeOf, &plan.ProtectedError{})
	c.Check(err, ErrorMatches, ".*mounted at /media/user/stick.*")
}

func (s *mainSuite) TestNukeConfirmationRequired(c *C) {
	devPath := s.mockNukeTarget(c, true)

	Stdin = strings.NewReader("yes\n")
	err := run([]string{"nuke", devPath})
	c.Check(err, FitsTypeOf, &pipeline.CancelledError{})

	buf, err := os.ReadFile(devPath)
	c.Assert(err, IsNil)
	c.Check(buf, DeepEquals, bytes.Repeat([]byte{0xa5}, nukeTargetSize))
}
