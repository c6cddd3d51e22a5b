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
	"github.com/boothut/boothut/plan"
	"github.com/boothut/boothut/testutil"
)

func (s *mainSuite) TestJournalSkipsMissingTool(c *C) {
	st := &pipeline.State{Stage: pipeline.Validated}
	recordRun("/dev/sdz", time.Now(), st, &pipeline.ToolMissingError{Tool: "grub-install"})

	warnAboutPreviousRun("/dev/sdz")
	c.Check(s.stderr.String(), Equals, "")
}

func (s *mainSuite) TestJournalSkipsEarlyCancellation(c *C) {
	st := &pipeline.State{Stage: pipeline.Validated}
	st.Failure = &pipeline.Failure{Stage: pipeline.Partitioned, Cause: &pipeline.CancelledError{}}
	recordRun("/dev/sdz", time.Now(), st, st.Failure)

	warnAboutPreviousRun("/dev/sdz")
	c.Check(s.stderr.String(), Equals, "")
}

func (s *mainSuite) TestJournalWarnsAfterDestructiveFailure(c *C) {
	st := &pipeline.State{Stage: pipeline.Validated}
	st.Failure = &pipeline.Failure{Stage: pipeline.Partitioned, Cause: fmt.Errorf("sfdisk exploded")}
	recordRun("/dev/sdz", time.Now(), st, st.Failure)

	warnAboutPreviousRun("/dev/sdz")
	c.Check(s.stderr.String(), testutil.Contains, `failed at stage "partitioned"`)
	c.Check(s.stderr.String(), testutil.Contains, "partial state")
}

func (s *mainSuite) TestJournalWarnsAfterLateCancellation(c *C) {
	st := &pipeline.State{Stage: pipeline.Wiped, Completed: []plan.Step{plan.StepWipe}}
	st.Failure = &pipeline.Failure{Stage: pipeline.Partitioned, Cause: &pipeline.CancelledError{}}
	recordRun("/dev/sdz", time.Now(), st, st.Failure)

	warnAboutPreviousRun("/dev/sdz")
	c.Check(s.stderr.String(), testutil.Contains, "partial state")
}

func (s *mainSuite) TestJournalSuccessReplacesFailure(c *C) {
	st := &pipeline.State{Stage: pipeline.Validated}
	st.Failure = &pipeline.Failure{Stage: pipeline.Partitioned, Cause: fmt.Errorf("boom")}
	recordRun("/dev/sdz", time.Now(), st, st.Failure)

	recordRun("/dev/sdz", time.Now(), &pipeline.State{Stage: pipeline.Complete}, nil)

	warnAboutPreviousRun("/dev/sdz")
	c.Check(s.stderr.String(), Equals, "")
}
