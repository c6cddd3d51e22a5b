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

package main

import (
	"fmt"
	"time"

	. "gopkg.in/check.v1"

	"github.com/boothut/boothut/pipeline"
	"github.com/boothut/boothut/testutil"
)

func (s *mainSuite) TestStatusPlainDevice(c *C) {
	dev := s.mockStick(c)
	sfdisk := testutil.MockCommand(c, "sfdisk", "exit 1")
	s.AddCleanup(sfdisk.Restore)
	cryptsetup := testutil.MockCommand(c, "cryptsetup", "exit 1")
	s.AddCleanup(cryptsetup.Restore)

	err := run([]string{"status", dev})
	c.Assert(err, IsNil)

	out := s.stdout.String()
	c.Check(out, testutil.Contains, "Device:      /dev/sdy")
	c.Check(out, testutil.Contains, "Size:        60.0G")
	c.Check(out, testutil.Contains, "Schema:      none")
	c.Check(out, testutil.Contains, "Encryption:  none")
	c.Check(out, testutil.Contains, "Last format: never")
}

func (s *mainSuite) TestStatusEncryptedWithFailedRun(c *C) {
	dev := s.mockStick(c)
	sfdisk := testutil.MockCommand(c, "sfdisk", "exit 1")
	s.AddCleanup(sfdisk.Restore)
	cryptsetup := testutil.MockCommand(c, "cryptsetup", "")
	s.AddCleanup(cryptsetup.Restore)

	st := &pipeline.State{Stage: pipeline.Validated}
	st.Failure = &pipeline.Failure{Stage: pipeline.Encrypted, Cause: fmt.Errorf("boom")}
	recordRun(dev, time.Now(), st, st.Failure)

	err := run([]string{"status", dev})
	c.Assert(err, IsNil)

	out := s.stdout.String()
	c.Check(out, testutil.Contains, "Encryption:  LUKS2 (locked)")
	c.Check(out, testutil.Contains, `Last format: failed at stage "encrypted"`)
}
