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

// Package metadata owns the on-device directory layout and the ISO
// registry stored on the data partition.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/boothut/boothut/osutil"
)

const (
	// ISODir holds the ISO images, referenced from the boot menu.
	ISODir = "isos"
	// ToolDir holds the registry and device configuration.
	ToolDir = ".boothut"

	deviceConfigFile = "device.yaml"
)

// WriteError is returned when the on-device metadata cannot be written.
// This is the single non-fatal execution error of the format pipeline,
// the device is bootable without its metadata.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("cannot write device metadata under %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// DeviceConfig is the per-device configuration document stored in the
// tool directory.
type DeviceConfig struct {
	CreatedAt   time.Time `yaml:"created-at"`
	Encrypted   bool      `yaml:"encrypted"`
	BootTimeout int       `yaml:"boot-timeout"`
	Theme       string    `yaml:"theme,omitempty"`
}

var timeNow = time.Now

// Initialize creates the on-device directory structure and the empty
// registries on the mounted data partition.
func Initialize(dataMnt string, encrypted bool, bootTimeout int, theme string) error {
	for _, dir := range []string{ISODir, ToolDir} {
		if err := os.MkdirAll(filepath.Join(dataMnt, dir), 0755); err != nil {
			return &WriteError{Path: dataMnt, Err: err}
		}
	}

	reg := &Registry{path: registryPath(dataMnt)}
	if err := reg.Save(); err != nil {
		return &WriteError{Path: dataMnt, Err: err}
	}

	cfg := &DeviceConfig{
		CreatedAt:   timeNow().UTC(),
		Encrypted:   encrypted,
		BootTimeout: bootTimeout,
		Theme:       theme,
	}
	buf, err := yaml.Marshal(cfg)
	if err != nil {
		return &WriteError{Path: dataMnt, Err: err}
	}
	target := filepath.Join(dataMnt, ToolDir, deviceConfigFile)
	if err := osutil.AtomicWriteFile(target, buf, 0644); err != nil {
		return &WriteError{Path: dataMnt, Err: err}
	}
	return nil
}

// LoadDeviceConfig reads the device configuration document back, or
// returns nil if the device has none.
func LoadDeviceConfig(dataMnt string) (*DeviceConfig, error) {
	buf, err := os.ReadFile(filepath.Join(dataMnt, ToolDir, deviceConfigFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg DeviceConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse device configuration: %v", err)
	}
	return &cfg, nil
}
