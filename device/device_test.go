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

package device_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/boothut/boothut/device"
	"github.com/boothut/boothut/testutil"
)

func Test(t *testing.T) { TestingT(t) }

type deviceSuite struct {
	testutil.BaseTest

	sysBlock string
}

var _ = Suite(&deviceSuite{})

func (s *deviceSuite) SetUpTest(c *C) {
	s.BaseTest.SetUpTest(c)

	s.sysBlock = c.MkDir()
	s.AddCleanup(device.MockSysBlockDir(s.sysBlock))

	// sfdisk fails on blank devices, Resolve must cope
	cmd := testutil.MockCommand(c, "sfdisk", "exit 1")
	s.AddCleanup(cmd.Restore)
}

// addDevice creates a fake sysfs entry. sizeSectors is in the 512 byte
// units sysfs always uses.
func (s *deviceSuite) addDevice(c *C, name string, sizeSectors uint64, removable bool, attrs map[string]string) {
	dir := filepath.Join(s.sysBlock, name)
	c.Assert(os.MkdirAll(filepath.Join(dir, "queue"), 0755), IsNil)
	c.Assert(os.MkdirAll(filepath.Join(dir, "device"), 0755), IsNil)

	write := func(rel, content string) {
		c.Assert(os.WriteFile(filepath.Join(dir, rel), []byte(content+"\n"), 0644), IsNil)
	}
	write("size", strconv.FormatUint(sizeSectors, 10))
	if removable {
		write("removable", "1")
	} else {
		write("removable", "0")
	}
	write("ro", "0")
	write("queue/logical_block_size", "512")
	for rel, content := range attrs {
		write(rel, content)
	}
}

func (s *deviceSuite) TestResolveHappy(c *C) {
	s.addDevice(c, "sdb", 125829120, true, map[string]string{
		"device/model":  "DataTraveler 3.0",
		"device/vendor": "Kingston",
	})

	profile, err := device.Resolve("/dev/sdb")
	c.Assert(err, IsNil)
	c.Check(profile.Device, Equals, "/dev/sdb")
	c.Check(profile.Name, Equals, "sdb")
	c.Check(profile.SizeBytes, Equals, uint64(125829120*512))
	c.Check(profile.SectorSize, Equals, uint64(512))
	c.Check(profile.Removable, Equals, true)
	c.Check(profile.ReadOnly, Equals, false)
	c.Check(profile.Model, Equals, "DataTraveler 3.0")
	c.Check(profile.Vendor, Equals, "Kingston")
	c.Check(profile.Schema, Equals, "")
	c.Check(profile.Partitions, HasLen, 0)
}

func (s *deviceSuite) TestResolveReadsPartitionTable(c *C) {
	s.addDevice(c, "sdb", 125829120, true, nil)
	cmd := testutil.MockCommand(c, "sfdisk", `cat <<'EOF'
{"partitiontable": {"label": "gpt", "partitions": [
  {"node": "/dev/sdb1", "start": 2048, "size": 1048576, "type": "C12A7328-F81F-11D2-BA4B-00A0C93EC93B", "name": "EFI System Partition"}
]}}
EOF`)
	s.AddCleanup(cmd.Restore)

	profile, err := device.Resolve("/dev/sdb")
	c.Assert(err, IsNil)
	c.Check(profile.Schema, Equals, "gpt")
	c.Assert(profile.Partitions, HasLen, 1)
	c.Check(profile.Partitions[0].Node, Equals, "/dev/sdb1")
	c.Check(profile.Partitions[0].StartSector, Equals, uint64(2048))
	c.Check(cmd.Calls(), DeepEquals, [][]string{
		{"sfdisk", "--json", "/dev/sdb"},
	})
}

func (s *deviceSuite) TestResolveUnknownDevice(c *C) {
	_, err := device.Resolve("/dev/sdx")
	c.Assert(err, NotNil)
	c.Check(err, FitsTypeOf, &device.NotFoundError{})
	c.Check(err, ErrorMatches, `cannot find block device "/dev/sdx"`)
}

func (s *deviceSuite) TestResolveMissingQueueDir(c *C) {
	s.addDevice(c, "sdb", 1000, true, nil)
	c.Assert(os.Remove(filepath.Join(s.sysBlock, "sdb", "queue", "logical_block_size")), IsNil)

	profile, err := device.Resolve("/dev/sdb")
	c.Assert(err, IsNil)
	c.Check(profile.SectorSize, Equals, uint64(512))
}

func (s *deviceSuite) TestEnumerateSkipsVirtualAndFixed(c *C) {
	s.addDevice(c, "sdb", 125829120, true, nil)
	s.addDevice(c, "sda", 2000000000, false, nil)
	s.addDevice(c, "loop0", 8192, true, nil)
	s.addDevice(c, "zram0", 8192, true, nil)
	s.addDevice(c, "dm-0", 8192, true, nil)

	profiles, err := device.Enumerate()
	c.Assert(err, IsNil)
	c.Assert(profiles, HasLen, 1)
	c.Check(profiles[0].Name, Equals, "sdb")
}

func (s *deviceSuite) TestPartitionNode(c *C) {
	sd := &device.Profile{Device: "/dev/sdb", Name: "sdb"}
	c.Check(sd.PartitionNode(3), Equals, "/dev/sdb3")
	nvme := &device.Profile{Device: "/dev/nvme0n1", Name: "nvme0n1"}
	c.Check(nvme.PartitionNode(1), Equals, "/dev/nvme0n1p1")
	mmc := &device.Profile{Device: "/dev/mmcblk0", Name: "mmcblk0"}
	c.Check(mmc.PartitionNode(2), Equals, "/dev/mmcblk0p2")
}

func (s *deviceSuite) TestSizeSectors(c *C) {
	p := &device.Profile{SizeBytes: 64424509440, SectorSize: 512}
	c.Check(p.SizeSectors(), Equals, uint64(125829120))
	c.Check((&device.Profile{}).SizeSectors(), Equals, uint64(0))
}
