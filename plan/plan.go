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

// Package plan turns a device profile and a format request into a fully
// resolved format plan. Everything in this package is free of side
// effects, planning never touches the device.
package plan

import (
	"fmt"

	"github.com/boothut/boothut/device"
)

const (
	// MinDeviceSize is the smallest device accepted for formatting.
	MinDeviceSize = 4 * 1024 * 1024 * 1024
	// ESPSize is the size of the EFI system partition.
	ESPSize = 512 * 1024 * 1024
	// BootSize is the size of the boot partition holding grub.
	BootSize = 512 * 1024 * 1024
	// MinDataSize is the floor for the remaining data partition.
	MinDataSize = 1 * 1024 * 1024 * 1024
	// AlignmentBytes is the partition alignment granularity.
	AlignmentBytes = 1024 * 1024
)

// Filesystem labels fixed by the on-device layout contract.
const (
	ESPLabel  = "USB_ESP"
	BootLabel = "USB_BOOT"
	DataLabel = "USB_DATA"
)

// WipePattern selects how the secure wipe overwrites the device.
type WipePattern string

const (
	WipeRandom WipePattern = "random"
	WipeZeros  WipePattern = "zeros"
	// WipeDoD is the DoD 5220.22-M three pass scheme.
	WipeDoD WipePattern = "dod"
)

// Request captures the user's intent for a format run. It is constructed
// once from CLI and config input and never modified.
type Request struct {
	Encrypt     bool
	SecureWipe  bool
	WipePattern WipePattern
	// Passphrase is only set when Encrypt is true. It never appears in
	// the serialized plan.
	Passphrase string
	// Theme names the grub theme to install, empty for none.
	Theme string
}

// FilesystemKind is the target content of one partition.
type FilesystemKind string

const (
	FAT32 FilesystemKind = "vfat"
	Ext4  FilesystemKind = "ext4"
	// LUKS2Container marks the partition as an encrypted container
	// that wraps an ext4 filesystem.
	LUKS2Container FilesystemKind = "luks2"
)

// PartitionSpec describes exactly one partition to create.
type PartitionSpec struct {
	Name        string         `yaml:"name"`
	Label       string         `yaml:"label"`
	StartSector uint64         `yaml:"start-sector"`
	SizeSectors uint64         `yaml:"size-sectors"`
	Filesystem  FilesystemKind `yaml:"filesystem"`
	// GPT partition type identifier, e.g. the ESP type GUID alias.
	Type string `yaml:"type"`
}

// EncryptionParams are the fixed parameters of the LUKS2 container.
type EncryptionParams struct {
	Cipher      string `yaml:"cipher"`
	KeySizeBits int    `yaml:"key-size"`
	KDF         string `yaml:"kdf"`
	// KDFTimeMs is the target wall clock cost of the key derivation
	// benchmark in milliseconds.
	KDFTimeMs int `yaml:"kdf-time-ms"`
}

// Step names one stage of the execution pipeline, in order.
type Step string

const (
	StepWipe        Step = "wipe"
	StepPartition   Step = "partition"
	StepEncrypt     Step = "encrypt"
	StepFilesystems Step = "filesystems"
	StepBootloader  Step = "bootloader"
	StepMetadata    Step = "metadata"
)

// Plan is the fully resolved, immutable description of what a format run
// will write. A plan only ever reaches execution via a ValidatedDevice,
// so it is guaranteed to have passed safety validation.
type Plan struct {
	Device     string            `yaml:"device"`
	SectorSize uint64            `yaml:"sector-size"`
	Partitions [3]PartitionSpec  `yaml:"partitions"`
	Encryption *EncryptionParams `yaml:"encryption,omitempty"`
	Steps      []Step            `yaml:"steps"`
}

// ESP, Boot and Data return the respective partition specs.
func (p *Plan) ESP() PartitionSpec  { return p.Partitions[0] }
func (p *Plan) Boot() PartitionSpec { return p.Partitions[1] }
func (p *Plan) Data() PartitionSpec { return p.Partitions[2] }

// TooSmallError is returned when the device cannot hold the layout.
type TooSmallError struct {
	Device string
	Size   uint64
	Min    uint64
}

func (e *TooSmallError) Error() string {
	return fmt.Sprintf("device %s is too small: %d bytes, minimum is %d bytes", e.Device, e.Size, e.Min)
}

// NotRemovableError is returned for fixed disks.
type NotRemovableError struct {
	Device string
}

func (e *NotRemovableError) Error() string {
	return fmt.Sprintf("device %s is not removable", e.Device)
}

// ProtectedError is returned when formatting the device could damage the
// running system.
type ProtectedError struct {
	Device string
	Reason string
}

func (e *ProtectedError) Error() string {
	return fmt.Sprintf("device %s is protected: %s", e.Device, e.Reason)
}

// Environment carries the system facts the validator needs. It is
// gathered by the caller so that validation itself stays a pure function.
type Environment struct {
	// SystemDisk is the kernel name of the disk backing the root
	// filesystem, e.g. "sda".
	SystemDisk string
	// MountedAt lists mount points currently backed by the device or
	// any of its partitions.
	MountedAt []string
}

// ValidatedDevice is the accepted token produced by ValidateDevice. Build
// requires it, so no code path can plan a format without validation.
type ValidatedDevice struct {
	profile *device.Profile
}

// Profile returns the profile the validation decision was made over.
func (v *ValidatedDevice) Profile() *device.Profile {
	return v.profile
}

// ValidateDevice decides whether the device is safe to destroy. It is a
// pure function over the profile, the request and the environment.
func ValidateDevice(profile *device.Profile, req *Request, env *Environment) (*ValidatedDevice, error) {
	if !profile.Removable {
		return nil, &NotRemovableError{Device: profile.Device}
	}
	if profile.ReadOnly {
		return nil, &ProtectedError{Device: profile.Device, Reason: "device is read-only"}
	}
	if profile.SizeBytes < MinDeviceSize {
		return nil, &TooSmallError{Device: profile.Device, Size: profile.SizeBytes, Min: MinDeviceSize}
	}
	if env.SystemDisk != "" && profile.Name == env.SystemDisk {
		return nil, &ProtectedError{Device: profile.Device, Reason: "device holds the running system"}
	}
	if len(env.MountedAt) > 0 {
		return nil, &ProtectedError{
			Device: profile.Device,
			Reason: fmt.Sprintf("device is mounted at %s", env.MountedAt[0]),
		}
	}
	if profile.SizeBytes < ESPSize+BootSize+MinDataSize+AlignmentBytes {
		return nil, &TooSmallError{
			Device: profile.Device,
			Size:   profile.SizeBytes,
			Min:    ESPSize + BootSize + MinDataSize + AlignmentBytes,
		}
	}
	return &ValidatedDevice{profile: profile}, nil
}

// Defaults are the process wide configuration values planning depends
// on, passed in explicitly so that Build stays pure.
type Defaults struct {
	// KDFTimeMs tunes the argon2id benchmark target.
	KDFTimeMs int
}

// Build produces the format plan for a validated device. It is
// deterministic and performs no I/O.
func Build(validated *ValidatedDevice, req *Request, defaults Defaults) (*Plan, error) {
	profile := validated.Profile()
	sectorSize := profile.SectorSize
	if sectorSize == 0 {
		sectorSize = 512
	}

	alignSectors := AlignmentBytes / sectorSize
	totalSectors := profile.SizeBytes / sectorSize

	espStart := alignSectors
	espSize := ESPSize / sectorSize
	bootStart := espStart + espSize
	bootSize := BootSize / sectorSize
	dataStart := bootStart + bootSize

	// the data partition spans the remainder, aligned down
	dataEnd := totalSectors / alignSectors * alignSectors
	if dataEnd <= dataStart || (dataEnd-dataStart)*sectorSize < MinDataSize {
		return nil, &TooSmallError{
			Device: profile.Device,
			Size:   profile.SizeBytes,
			Min:    ESPSize + BootSize + MinDataSize + AlignmentBytes,
		}
	}
	dataSize := dataEnd - dataStart

	dataFilesystem := Ext4
	var enc *EncryptionParams
	steps := make([]Step, 0, 6)
	if req.SecureWipe {
		steps = append(steps, StepWipe)
	}
	steps = append(steps, StepPartition)
	if req.Encrypt {
		dataFilesystem = LUKS2Container
		kdfTime := defaults.KDFTimeMs
		if kdfTime == 0 {
			kdfTime = 5000
		}
		enc = &EncryptionParams{
			Cipher:      "aes-xts-plain64",
			KeySizeBits: 512,
			KDF:         "argon2id",
			KDFTimeMs:   kdfTime,
		}
		steps = append(steps, StepEncrypt)
	}
	steps = append(steps, StepFilesystems, StepBootloader, StepMetadata)

	return &Plan{
		Device:     profile.Device,
		SectorSize: sectorSize,
		Partitions: [3]PartitionSpec{
			{
				Name:        "EFI System Partition",
				Label:       ESPLabel,
				StartSector: espStart,
				SizeSectors: espSize,
				Filesystem:  FAT32,
				Type:        "U",
			},
			{
				Name:        "Boot Partition",
				Label:       BootLabel,
				StartSector: bootStart,
				SizeSectors: bootSize,
				Filesystem:  Ext4,
				Type:        "L",
			},
			{
				Name:        "Data Partition",
				Label:       DataLabel,
				StartSector: dataStart,
				SizeSectors: dataSize,
				Filesystem:  dataFilesystem,
				Type:        "L",
			},
		},
		Encryption: enc,
		Steps:      steps,
	}, nil
}
