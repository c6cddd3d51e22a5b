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

// Package iso inspects ISO 9660 images and manages the images stored on
// a prepared device.
package iso

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/boothut/boothut/bootloader"
)

const (
	// sector 16 of a 2048-byte-sector image holds the primary volume
	// descriptor
	pvdOffset     = 16 * 2048
	bootRecOffset = 17 * 2048

	isoMagic = "CD001"
	// boot system identifier of an El Torito boot record
	elTorito = "EL TORITO SPECIFICATION"
)

// NotISOError reports a file that is not a valid ISO 9660 image.
type NotISOError struct {
	Path   string
	Reason string
}

func (e *NotISOError) Error() string {
	return fmt.Sprintf("%s is not a usable ISO image: %s", e.Path, e.Reason)
}

// Info is what inspection learns about an image.
type Info struct {
	VolumeID string
	Size     uint64
	Bootable bool
	Family   bootloader.Family
}

// Inspect validates the ISO 9660 structure of the file and extracts the
// volume identifier and bootability.
func Inspect(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() < bootRecOffset+2048 {
		return nil, &NotISOError{Path: path, Reason: "file is too small"}
	}

	pvd := make([]byte, 2048)
	if _, err := f.ReadAt(pvd, pvdOffset); err != nil {
		return nil, err
	}
	// descriptor type 1, standard identifier "CD001"
	if pvd[0] != 1 || !bytes.Equal(pvd[1:6], []byte(isoMagic)) {
		return nil, &NotISOError{Path: path, Reason: "no primary volume descriptor"}
	}
	volumeID := strings.TrimRight(string(pvd[40:72]), " \x00")

	bootRec := make([]byte, 2048)
	if _, err := f.ReadAt(bootRec, bootRecOffset); err != nil {
		return nil, err
	}
	bootable := bootRec[0] == 0 &&
		bytes.Equal(bootRec[1:6], []byte(isoMagic)) &&
		bytes.Contains(bootRec[7:39], []byte(elTorito))

	info := &Info{
		VolumeID: volumeID,
		Size:     uint64(st.Size()),
		Bootable: bootable,
		Family:   DetectFamily(volumeID, path),
	}
	return info, nil
}

// DetectFamily guesses the distribution family from the volume
// identifier and the file name. Unknown images fall back to the custom
// family, which needs explicit kernel parameters.
func DetectFamily(volumeID, path string) bootloader.Family {
	probe := strings.ToLower(volumeID + " " + path)
	switch {
	case strings.Contains(probe, "ubuntu"),
		strings.Contains(probe, "mint"),
		strings.Contains(probe, "elementary"),
		strings.Contains(probe, "pop-os"), strings.Contains(probe, "pop_os"):
		return bootloader.FamilyUbuntu
	case strings.Contains(probe, "debian"),
		strings.Contains(probe, "kali"),
		strings.Contains(probe, "tails"):
		return bootloader.FamilyDebian
	case strings.Contains(probe, "arch"),
		strings.Contains(probe, "manjaro"),
		strings.Contains(probe, "endeavouros"):
		return bootloader.FamilyArch
	case strings.Contains(probe, "win10"), strings.Contains(probe, "win11"),
		strings.Contains(probe, "windows"),
		strings.Contains(probe, "ccoma"), strings.Contains(probe, "ccsa"):
		return bootloader.FamilyWindows
	default:
		return bootloader.FamilyCustom
	}
}

// copyChunkSize is the unit of copy and hash progress reporting.
const copyChunkSize = 4 * 1024 * 1024

// ProgressFunc is called between chunks while copying or hashing.
type ProgressFunc func(done, total uint64)

// Checksum computes the SHA-256 digest of the file, reporting progress
// between chunks.
func Checksum(path string, progress ProgressFunc) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", err
	}

	h := sha256.New()
	if err := copyChunks(h, f, uint64(st.Size()), progress); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CopyFile copies src to dst, syncing before close so that a completed
// copy is really on the medium.
func CopyFile(src, dst string, progress ProgressFunc) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	st, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := copyChunks(out, in, uint64(st.Size()), progress); err != nil {
		os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

func copyChunks(dst io.Writer, src io.Reader, total uint64, progress ProgressFunc) error {
	buf := make([]byte, copyChunkSize)
	var done uint64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			done += uint64(n)
			if progress != nil {
				progress(done, total)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
