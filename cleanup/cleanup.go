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

// Package cleanup removes OS junk files from the data partition. Rules
// are glob patterns relative to the partition root, the managed
// directories are never touched.
package cleanup

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/boothut/boothut/logger"
	"github.com/boothut/boothut/metadata"
)

// DefaultRules matches the junk that desktop systems scatter over
// removable media.
var DefaultRules = []string{
	"**/.DS_Store",
	"**/._*",
	".Spotlight-V100/**",
	".Trashes/**",
	".fseventsd/**",
	"**/Thumbs.db",
	"**/desktop.ini",
	"System Volume Information/**",
	"$RECYCLE.BIN/**",
	"**/*~",
	"**/*.tmp",
	".Trash-*/**",
}

// protectedPrefixes are never removed regardless of rules.
var protectedPrefixes = []string{
	metadata.ISODir + "/",
	metadata.ToolDir + "/",
	"grub/",
}

func protected(rel string) bool {
	for _, p := range protectedPrefixes {
		if strings.HasPrefix(rel, p) || rel == strings.TrimSuffix(p, "/") {
			return true
		}
	}
	return false
}

// Scan walks the mounted data partition and returns the paths, relative
// to root, that the rules select for removal.
func Scan(root string, rules []string) ([]string, error) {
	if rules == nil {
		rules = DefaultRules
	}
	var matches []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// unreadable entries are skipped, not fatal
			logger.Debugf("cannot scan %s: %v", path, err)
			return nil
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if protected(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		for _, rule := range rules {
			ok, merr := doublestar.Match(rule, rel)
			if merr != nil {
				return merr
			}
			if !ok && info.IsDir() {
				// a rule like ".Trashes/**" selects the directory itself
				if base, found := strings.CutSuffix(rule, "/**"); found {
					ok, _ = doublestar.Match(base, rel)
				}
			}
			if ok {
				matches = append(matches, rel)
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// Run removes the selected paths. With dryRun set nothing is removed
// and the would-be victims are returned unchanged.
func Run(root string, rules []string, dryRun bool) ([]string, error) {
	matches, err := Scan(root, rules)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return matches, nil
	}
	for _, rel := range matches {
		if err := os.RemoveAll(filepath.Join(root, rel)); err != nil {
			return matches, err
		}
		logger.Debugf("removed %s", rel)
	}
	return matches, nil
}
