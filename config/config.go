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

// Package config loads the user configuration file. All settings have
// defaults, a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/boothut/boothut/plan"
)

// Config is the user configuration, stored as YAML under the user
// config directory.
type Config struct {
	// DefaultEncryption requests encryption for new formats unless
	// overridden on the command line.
	DefaultEncryption bool `yaml:"default-encryption"`
	// BootTimeout is the boot menu timeout in seconds.
	BootTimeout int `yaml:"boot-timeout"`
	// Theme names the boot menu theme, empty for none.
	Theme string `yaml:"theme,omitempty"`
	// WipePattern selects the secure wipe pattern.
	WipePattern plan.WipePattern `yaml:"wipe-pattern"`
	// CleanupRules overrides the built-in cleanup rules.
	CleanupRules []string `yaml:"cleanup-rules,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultEncryption: false,
		BootTimeout:       10,
		WipePattern:       plan.WipeRandom,
	}
}

// Path returns the configuration file location.
func Path() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "/root"
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "boothut", "boothut.yaml")
}

// Load reads the configuration at path, falling back to defaults for a
// missing file and for unset fields.
func Load(path string) (*Config, error) {
	cfg := Default()
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse %s: %v", path, err)
	}
	if cfg.BootTimeout <= 0 {
		cfg.BootTimeout = Default().BootTimeout
	}
	switch cfg.WipePattern {
	case plan.WipeRandom, plan.WipeZeros, plan.WipeDoD:
	case "":
		cfg.WipePattern = Default().WipePattern
	default:
		return nil, fmt.Errorf("cannot parse %s: unknown wipe pattern %q", path, cfg.WipePattern)
	}
	return cfg, nil
}
