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

package iso

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/boothut/boothut/bootloader"
	"github.com/boothut/boothut/logger"
	"github.com/boothut/boothut/metadata"
)

var timeNow = time.Now

// grubCfgPath locates the generated boot menu on the mounted boot
// partition.
func grubCfgPath(bootMnt string) string {
	return filepath.Join(bootMnt, "grub", "grub.cfg")
}

// Add inspects, copies and registers a new image on a prepared device
// and adds its boot menu entry. dataMnt and bootMnt are the mounted
// data and boot partitions.
func Add(dataMnt, bootMnt, srcPath, displayName string, progress ProgressFunc) (*metadata.ISO, error) {
	info, err := Inspect(srcPath)
	if err != nil {
		return nil, err
	}
	if !info.Bootable {
		logger.Noticef("warning: %s has no El Torito boot record", srcPath)
	}

	reg, err := metadata.OpenRegistry(dataMnt)
	if err != nil {
		return nil, err
	}

	filename := filepath.Base(srcPath)
	if reg.Find(filename) != nil {
		return nil, fmt.Errorf("ISO %q is already registered", filename)
	}
	if displayName == "" {
		displayName = displayNameFor(info.VolumeID, filename)
	}

	sum, err := Checksum(srcPath, progress)
	if err != nil {
		return nil, err
	}

	dst := filepath.Join(dataMnt, metadata.ISODir, filename)
	if err := CopyFile(srcPath, dst, progress); err != nil {
		return nil, fmt.Errorf("cannot copy %s to device: %v", srcPath, err)
	}

	rec := &metadata.ISO{
		ID:          uuid.NewString(),
		Filename:    filename,
		DisplayName: displayName,
		Family:      string(info.Family),
		Size:        info.Size,
		SHA256:      sum,
		AddedAt:     timeNow().UTC(),
	}
	if err := reg.Add(rec); err != nil {
		os.Remove(dst)
		return nil, err
	}

	entry := &bootloader.MenuEntry{
		Title:   displayName,
		ISOPath: "/" + metadata.ISODir + "/" + filename,
		Family:  info.Family,
	}
	if err := bootloader.AddMenuEntry(grubCfgPath(bootMnt), entry); err != nil {
		return nil, fmt.Errorf("cannot add boot menu entry: %v", err)
	}
	return rec, nil
}

// Remove deletes the image, its registry record and its boot menu
// entry.
func Remove(dataMnt, bootMnt, idOrFilename string) error {
	reg, err := metadata.OpenRegistry(dataMnt)
	if err != nil {
		return err
	}
	rec, err := reg.Remove(idOrFilename)
	if err != nil {
		return err
	}
	if err := bootloader.RemoveMenuEntry(grubCfgPath(bootMnt), rec.DisplayName); err != nil {
		return fmt.Errorf("cannot remove boot menu entry: %v", err)
	}
	path := filepath.Join(dataMnt, metadata.ISODir, rec.Filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Verify recomputes the checksum of a registered image and compares it
// to the recorded one, updating the verification timestamp on match.
func Verify(dataMnt, idOrFilename string, progress ProgressFunc) error {
	reg, err := metadata.OpenRegistry(dataMnt)
	if err != nil {
		return err
	}
	rec := reg.Find(idOrFilename)
	if rec == nil {
		return fmt.Errorf("ISO %q is not registered", idOrFilename)
	}
	sum, err := Checksum(filepath.Join(dataMnt, metadata.ISODir, rec.Filename), progress)
	if err != nil {
		return err
	}
	if sum != rec.SHA256 {
		return fmt.Errorf("checksum mismatch for %q: image is corrupted", rec.Filename)
	}
	now := timeNow().UTC()
	rec.LastVerified = &now
	return reg.Save()
}

// displayNameFor derives a readable menu title from the volume id, or
// from the filename when the volume id is unhelpful.
func displayNameFor(volumeID, filename string) string {
	name := strings.TrimSpace(volumeID)
	if name == "" {
		name = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}
