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

// Package bootloader installs grub on the prepared device and manages
// the generated boot menu configuration.
package bootloader

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/boothut/boothut/logger"
	"github.com/boothut/boothut/osutil"
)

// InstallError describes a failed bootloader installation together with
// the sub-stage that failed.
type InstallError struct {
	Stage  string
	Detail string
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("cannot install bootloader (%s): %s", e.Stage, e.Detail)
}

// Options tune the generated boot menu.
type Options struct {
	// Timeout is the menu timeout in seconds.
	Timeout int
	// Theme names the theme to install, empty for none.
	Theme string
}

// grubTarget returns the grub platform target for the build
// architecture.
func grubTarget() string {
	if runtime.GOARCH == "arm64" {
		return "arm64-efi"
	}
	return "x86_64-efi"
}

// Install mounts the ESP and boot partitions, installs the grub EFI
// program and writes the generated boot menu. Both partitions are
// unmounted again on every exit path.
func Install(device, espNode, bootNode, runDir string, opts *Options) (err error) {
	if opts == nil {
		opts = &Options{Timeout: 10}
	}
	espMnt := filepath.Join(runDir, "esp")
	bootMnt := filepath.Join(runDir, "boot")

	if err := osutil.Mount(espNode, espMnt); err != nil {
		return &InstallError{Stage: "mount", Detail: err.Error()}
	}
	defer func() {
		if uerr := osutil.Umount(espMnt); uerr != nil && err == nil {
			err = &InstallError{Stage: "unmount", Detail: uerr.Error()}
		}
	}()
	if err := osutil.Mount(bootNode, bootMnt); err != nil {
		return &InstallError{Stage: "mount", Detail: err.Error()}
	}
	defer func() {
		if uerr := osutil.Umount(bootMnt); uerr != nil && err == nil {
			err = &InstallError{Stage: "unmount", Detail: uerr.Error()}
		}
	}()

	return installGrub(device, espMnt, bootMnt, opts)
}

func installGrub(device, espMnt, bootMnt string, opts *Options) error {
	// --removable places the EFI program at the fallback path
	// EFI/BOOT/BOOTX64.EFI so that firmware boots the stick without a
	// registered boot entry.
	output, stderr, err := osutil.RunSplitOutput("grub-install",
		"--target", grubTarget(),
		"--efi-directory", espMnt,
		"--boot-directory", bootMnt,
		"--removable",
		"--recheck",
		device,
	)
	if err != nil {
		return &InstallError{
			Stage:  "grub-install",
			Detail: osutil.OutputErrCombine(output, stderr, err).Error(),
		}
	}

	grubDir := filepath.Join(bootMnt, "grub")
	if err := os.MkdirAll(grubDir, 0755); err != nil {
		return &InstallError{Stage: "config", Detail: err.Error()}
	}
	cfg := GenerateConfig(opts)
	if err := osutil.AtomicWriteFile(filepath.Join(grubDir, "grub.cfg"), []byte(cfg), 0644); err != nil {
		return &InstallError{Stage: "config", Detail: err.Error()}
	}
	logger.Debugf("wrote grub configuration to %s", grubDir)

	if opts.Theme != "" {
		if err := installTheme(grubDir, opts.Theme); err != nil {
			return &InstallError{Stage: "theme", Detail: err.Error()}
		}
	}
	return nil
}

func installTheme(grubDir, theme string) error {
	themeDir := filepath.Join(grubDir, "themes", theme)
	if err := os.MkdirAll(themeDir, 0755); err != nil {
		return err
	}
	return osutil.AtomicWriteFile(filepath.Join(themeDir, "theme.txt"), []byte(themeText), 0644)
}
