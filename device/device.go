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

// Package device inspects block devices and produces immutable profiles
// of them. A profile is a read-only snapshot, nothing in this package
// writes to a device.
package device

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/boothut/boothut/osutil"
)

// NotFoundError is returned when a path does not resolve to a block device.
type NotFoundError struct {
	Device string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cannot find block device %q", e.Device)
}

// Partition describes one existing partition of a profiled device.
type Partition struct {
	Node        string `json:"node"`
	StartSector uint64 `json:"start"`
	SizeSectors uint64 `json:"size"`
	Type        string `json:"type"`
	Name        string `json:"name,omitempty"`
}

// Profile is an immutable snapshot of a block device, taken once at the
// start of a format request and never refreshed mid-pipeline.
type Profile struct {
	// Device is the device node, e.g. /dev/sdb.
	Device string
	// Name is the kernel name, e.g. sdb.
	Name string
	// SizeBytes is the total addressable size.
	SizeBytes uint64
	// SectorSize is the logical sector size, typically 512.
	SectorSize uint64
	Removable  bool
	ReadOnly   bool
	Model      string
	Vendor     string
	// Schema is the current partition table type ("gpt", "dos" or "").
	Schema string
	// Partitions summarizes the current partition table.
	Partitions []Partition
}

// SizeSectors returns the device size in logical sectors.
func (p *Profile) SizeSectors() uint64 {
	if p.SectorSize == 0 {
		return 0
	}
	return p.SizeBytes / p.SectorSize
}

// PartitionNode returns the device node of the num-th partition, taking
// into account the "p" separator used by nvme and mmcblk devices.
func (p *Profile) PartitionNode(num int) string {
	if strings.Contains(p.Name, "nvme") || strings.Contains(p.Name, "mmcblk") {
		return fmt.Sprintf("%sp%d", p.Device, num)
	}
	return fmt.Sprintf("%s%d", p.Device, num)
}

var sysBlockDir = "/sys/block"

// MockSysBlockDir mocks the location of /sys/block for testing.
func MockSysBlockDir(dir string) (restore func()) {
	old := sysBlockDir
	sysBlockDir = dir
	return func() {
		sysBlockDir = old
	}
}

// Resolve inspects the block device at the given path and returns its
// profile. Only read-only metadata queries are performed.
func Resolve(devicePath string) (*Profile, error) {
	name := filepath.Base(devicePath)
	sysPath := filepath.Join(sysBlockDir, name)
	if !osutil.IsDirectory(sysPath) {
		return nil, &NotFoundError{Device: devicePath}
	}

	sectors, err := readSysfsUint(filepath.Join(sysPath, "size"))
	if err != nil {
		return nil, fmt.Errorf("cannot read device size: %v", err)
	}
	sectorSize, err := readSysfsUint(filepath.Join(sysPath, "queue", "logical_block_size"))
	if err != nil {
		// not all sysfs layouts expose the queue directory
		sectorSize = 512
	}

	profile := &Profile{
		Device: devicePath,
		Name:   name,
		// the sysfs size attribute is always in 512-byte units
		SizeBytes:  sectors * 512,
		SectorSize: sectorSize,
		Removable:  readSysfsFlag(filepath.Join(sysPath, "removable")),
		ReadOnly:   readSysfsFlag(filepath.Join(sysPath, "ro")),
		Model:      readSysfsString(filepath.Join(sysPath, "device", "model")),
		Vendor:     readSysfsString(filepath.Join(sysPath, "device", "vendor")),
	}

	schema, parts, err := partitionTableSummary(devicePath)
	if err != nil {
		return nil, err
	}
	profile.Schema = schema
	profile.Partitions = parts

	return profile, nil
}

// Enumerate returns profiles for all removable block devices of the
// system, skipping virtual devices.
func Enumerate() ([]*Profile, error) {
	entries, err := os.ReadDir(sysBlockDir)
	if err != nil {
		return nil, err
	}
	var profiles []*Profile
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") || strings.HasPrefix(name, "dm-") || strings.HasPrefix(name, "zram") {
			continue
		}
		if !readSysfsFlag(filepath.Join(sysBlockDir, name, "removable")) {
			continue
		}
		profile, err := Resolve("/dev/" + name)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

// SystemDiskName returns the kernel name of the disk backing the root
// filesystem, e.g. "sda", or "" if it cannot be determined.
func SystemDiskName() string {
	var st unix.Stat_t
	if err := unix.Stat("/", &st); err != nil {
		return ""
	}
	major := unix.Major(uint64(st.Dev))
	minor := unix.Minor(uint64(st.Dev))
	// /sys/dev/block/MAJ:MIN resolves to the partition directory, whose
	// parent is the whole disk for partitioned devices.
	link, err := filepath.EvalSymlinks(fmt.Sprintf("/sys/dev/block/%d:%d", major, minor))
	if err != nil {
		return ""
	}
	if osutil.FileExists(filepath.Join(link, "partition")) {
		return filepath.Base(filepath.Dir(link))
	}
	return filepath.Base(link)
}

// sfdiskOutput and friends mirror the JSON dump format of sfdisk.
type sfdiskOutput struct {
	PartitionTable sfdiskPartitionTable `json:"partitiontable"`
}

type sfdiskPartitionTable struct {
	Label      string            `json:"label"`
	Partitions []sfdiskPartition `json:"partitions"`
}

type sfdiskPartition struct {
	Node  string `json:"node"`
	Start uint64 `json:"start"`
	Size  uint64 `json:"size"`
	Type  string `json:"type"`
	Name  string `json:"name"`
}

func partitionTableSummary(devicePath string) (schema string, parts []Partition, err error) {
	output, err := exec.Command("sfdisk", "--json", devicePath).Output()
	if err != nil {
		// sfdisk fails on devices without a partition table, which is
		// a perfectly fine state for a device about to be formatted
		return "", nil, nil
	}
	var dump sfdiskOutput
	if err := json.Unmarshal(output, &dump); err != nil {
		return "", nil, fmt.Errorf("cannot parse sfdisk output: %v", err)
	}
	for _, p := range dump.PartitionTable.Partitions {
		parts = append(parts, Partition{
			Node:        p.Node,
			StartSector: p.Start,
			SizeSectors: p.Size,
			Type:        p.Type,
			Name:        p.Name,
		})
	}
	return dump.PartitionTable.Label, parts, nil
}

func readSysfsUint(path string) (uint64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64)
}

func readSysfsFlag(path string) bool {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(raw)) == "1"
}

func readSysfsString(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
