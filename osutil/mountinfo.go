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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// MountInfoEntry describes a single /proc/self/mountinfo entry, reduced
// to the fields this tool cares about.
type MountInfoEntry struct {
	MountDir    string
	FsType      string
	MountSource string
}

var procSelfMountInfo = "/proc/self/mountinfo"

// MockMountInfo mocks the location of the mountinfo file for testing.
func MockMountInfo(path string) (restore func()) {
	old := procSelfMountInfo
	procSelfMountInfo = path
	return func() {
		procSelfMountInfo = old
	}
}

// LoadMountInfo loads the mount table of the current process.
func LoadMountInfo() ([]*MountInfoEntry, error) {
	f, err := os.Open(procSelfMountInfo)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadMountInfo(f)
}

// ReadMountInfo parses mountinfo-formatted data from the given reader.
func ReadMountInfo(reader io.Reader) ([]*MountInfoEntry, error) {
	scanner := bufio.NewScanner(reader)
	var entries []*MountInfoEntry
	for scanner.Scan() {
		entry, err := parseMountInfoEntry(scanner.Text())
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func parseMountInfoEntry(line string) (*MountInfoEntry, error) {
	// The format is described in proc(5). The optional fields are
	// terminated by a lone dash, everything after it is fs type,
	// mount source and super options.
	fields := strings.Fields(line)
	if len(fields) < 10 {
		return nil, fmt.Errorf("incorrect number of fields, expected at least 10 but found %d", len(fields))
	}
	sep := -1
	for i, field := range fields {
		if field == "-" {
			sep = i
			break
		}
	}
	if sep == -1 || len(fields) < sep+3 {
		return nil, fmt.Errorf("list of optional fields is not terminated properly")
	}
	return &MountInfoEntry{
		MountDir:    unescape(fields[4]),
		FsType:      unescape(fields[sep+1]),
		MountSource: unescape(fields[sep+2]),
	}, nil
}

// unescape replaces the octal escapes mountinfo uses for space, tab,
// newline and backslash.
func unescape(s string) string {
	for _, pair := range [][2]string{
		{`\040`, " "}, {`\011`, "\t"}, {`\012`, "\n"}, {`\134`, `\`},
	} {
		s = strings.ReplaceAll(s, pair[0], pair[1])
	}
	return s
}

// MountedDevicePaths returns the mount points of every mount whose source
// starts with the given device node prefix, e.g. /dev/sdb matches /dev/sdb
// and /dev/sdb1.
func MountedDevicePaths(devicePrefix string) ([]string, error) {
	entries, err := LoadMountInfo()
	if err != nil {
		return nil, err
	}
	var mounted []string
	for _, entry := range entries {
		if entry.MountSource == devicePrefix || isPartitionOf(devicePrefix, entry.MountSource) {
			mounted = append(mounted, entry.MountDir)
		}
	}
	return mounted, nil
}

// isPartitionOf reports whether node names a partition of the given disk
// device, i.e. the disk node followed by a number, with an optional "p"
// separator as used by nvme and mmcblk devices. A plain prefix match is
// not enough, /dev/sda must not claim /dev/sdab1.
func isPartitionOf(disk, node string) bool {
	if !strings.HasPrefix(node, disk) {
		return false
	}
	rest := strings.TrimPrefix(node, disk)
	rest = strings.TrimPrefix(rest, "p")
	if rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
