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

package testutil

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/check.v1"
)

type filePresenceChecker struct {
	*check.CheckerInfo
	present bool
}

// FilePresent verifies that the given file exists.
var FilePresent check.Checker = &filePresenceChecker{
	CheckerInfo: &check.CheckerInfo{Name: "FilePresent", Params: []string{"filename"}},
	present:     true,
}

// FileAbsent verifies that the given file does not exist.
var FileAbsent check.Checker = &filePresenceChecker{
	CheckerInfo: &check.CheckerInfo{Name: "FileAbsent", Params: []string{"filename"}},
	present:     false,
}

func (c *filePresenceChecker) Check(params []interface{}, names []string) (result bool, error string) {
	filename, ok := params[0].(string)
	if !ok {
		return false, "filename must be a string"
	}
	_, err := os.Stat(filename)
	if os.IsNotExist(err) && c.present {
		return false, fmt.Sprintf("file %q is absent but should exist", filename)
	}
	if err == nil && !c.present {
		return false, fmt.Sprintf("file %q is present but should not exist", filename)
	}
	return true, ""
}

type containsChecker struct {
	*check.CheckerInfo
}

// Contains verifies that the string provided is a substring of the
// obtained string.
var Contains check.Checker = &containsChecker{
	CheckerInfo: &check.CheckerInfo{Name: "Contains", Params: []string{"obtained", "substring"}},
}

func (c *containsChecker) Check(params []interface{}, names []string) (result bool, error string) {
	obtained, ok := params[0].(string)
	if !ok {
		return false, "obtained value must be a string"
	}
	substring, ok := params[1].(string)
	if !ok {
		return false, "substring must be a string"
	}
	return strings.Contains(obtained, substring), ""
}

type fileContentChecker struct {
	*check.CheckerInfo
	exact bool
}

// FileEquals verifies that the given file's content is equal to the string
// (or byte slice) provided.
var FileEquals check.Checker = &fileContentChecker{
	CheckerInfo: &check.CheckerInfo{Name: "FileEquals", Params: []string{"filename", "contents"}},
	exact:       true,
}

// FileContains verifies that the given file's content contains the string
// (or byte slice) provided.
var FileContains check.Checker = &fileContentChecker{
	CheckerInfo: &check.CheckerInfo{Name: "FileContains", Params: []string{"filename", "contents"}},
}

func (c *fileContentChecker) Check(params []interface{}, names []string) (result bool, error string) {
	filename, ok := params[0].(string)
	if !ok {
		return false, "filename must be a string"
	}
	buf, err := os.ReadFile(filename)
	if err != nil {
		return false, fmt.Sprintf("cannot read file %q: %v", filename, err)
	}
	var content string
	switch v := params[1].(type) {
	case string:
		content = v
	case []byte:
		content = string(v)
	default:
		return false, "contents must be a string or []byte"
	}
	if c.exact {
		if string(buf) != content {
			return false, fmt.Sprintf("file %q does not equal the expected content:\n%s", filename, buf)
		}
		return true, ""
	}
	if !strings.Contains(string(buf), content) {
		return false, fmt.Sprintf("file %q does not contain the expected content:\n%s", filename, buf)
	}
	return true, ""
}
