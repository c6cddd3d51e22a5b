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

package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boothut/boothut/osutil"
)

const registryFile = "metadata.json"

// ISO is one registry record describing an image stored on the device.
type ISO struct {
	ID           string     `json:"id"`
	Filename     string     `json:"filename"`
	DisplayName  string     `json:"display_name"`
	Family       string     `json:"family"`
	Size         uint64     `json:"size"`
	SHA256       string     `json:"sha256"`
	AddedAt      time.Time  `json:"added_date"`
	LastVerified *time.Time `json:"last_verified,omitempty"`
}

// Registry is the JSON-backed ISO registry on the data partition. It is
// a plain file so that other tooling on the host can read it without
// this tool.
type Registry struct {
	path string
	ISOs []*ISO
}

func registryPath(dataMnt string) string {
	return filepath.Join(dataMnt, ToolDir, registryFile)
}

// OpenRegistry loads the registry of the mounted data partition,
// starting empty when none exists yet.
func OpenRegistry(dataMnt string) (*Registry, error) {
	reg := &Registry{path: registryPath(dataMnt)}
	buf, err := os.ReadFile(reg.path)
	if os.IsNotExist(err) {
		return reg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(buf, &reg.ISOs); err != nil {
		return nil, fmt.Errorf("cannot parse ISO registry: %v", err)
	}
	return reg, nil
}

// List returns all registered ISOs.
func (r *Registry) List() []*ISO {
	return r.ISOs
}

// Find returns the record with the given id or filename, or nil.
func (r *Registry) Find(idOrFilename string) *ISO {
	for _, iso := range r.ISOs {
		if iso.ID == idOrFilename || iso.Filename == idOrFilename {
			return iso
		}
	}
	return nil
}

// Add registers a new ISO and persists the registry.
func (r *Registry) Add(iso *ISO) error {
	if r.Find(iso.Filename) != nil {
		return fmt.Errorf("ISO %q is already registered", iso.Filename)
	}
	r.ISOs = append(r.ISOs, iso)
	return r.Save()
}

// Remove deletes the record with the given id or filename and persists
// the registry.
func (r *Registry) Remove(idOrFilename string) (*ISO, error) {
	for i, iso := range r.ISOs {
		if iso.ID == idOrFilename || iso.Filename == idOrFilename {
			r.ISOs = append(r.ISOs[:i], r.ISOs[i+1:]...)
			return iso, r.Save()
		}
	}
	return nil, fmt.Errorf("ISO %q is not registered", idOrFilename)
}

// Save writes the registry out atomically.
func (r *Registry) Save() error {
	isos := r.ISOs
	if isos == nil {
		isos = []*ISO{}
	}
	buf, err := json.MarshalIndent(isos, "", "  ")
	if err != nil {
		return err
	}
	return osutil.AtomicWriteFile(r.path, append(buf, '\n'), 0644)
}
