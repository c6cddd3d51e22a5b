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

package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/boothut/boothut/bootloader"
	"github.com/boothut/boothut/device"
	"github.com/boothut/boothut/osutil"
	"github.com/boothut/boothut/pipeline"
	"github.com/boothut/boothut/plan"
	"github.com/boothut/boothut/testutil"
	"github.com/boothut/boothut/wipe"
)

func Test(t *testing.T) { TestingT(t) }

type pipelineSuite struct {
	testutil.BaseTest

	dev    string
	runDir string
	calls  []string
	tools  *pipeline.Tools
}

var _ = Suite(&pipelineSuite{})

const passphrase = "Tr0pical-Thunderstorm!"

func (s *pipelineSuite) SetUpTest(c *C) {
	s.BaseTest.SetUpTest(c)

	// the device node must exist for the exclusive lock
	s.dev = filepath.Join(c.MkDir(), "sdz")
	c.Assert(os.WriteFile(s.dev, nil, 0600), IsNil)
	s.runDir = c.MkDir()

	s.calls = nil
	record := func(name string) {
		s.calls = append(s.calls, name)
	}
	s.tools = &pipeline.Tools{
		Wipe: func(ctx context.Context, device string, pattern plan.WipePattern, progress wipe.ProgressFunc) error {
			record("wipe " + device)
			return nil
		},
		CreatePartitions: func(p *plan.Plan, nodes []string) error {
			record("partition " + p.Device)
			return nil
		},
		LuksFormat: func(node, pass string, params *plan.EncryptionParams) error {
			c.Check(pass, Equals, passphrase)
			record("luksFormat " + node)
			return nil
		},
		LuksOpen: func(node, pass, name string) (string, error) {
			record("luksOpen " + node)
			return "/dev/mapper/" + name, nil
		},
		LuksClose: func(name string) error {
			record("luksClose")
			return nil
		},
		Mkfs: func(typ, node, label string, sectorSize uint64) error {
			record(fmt.Sprintf("mkfs %s %s %s", typ, node, label))
			return nil
		},
		InstallBoot: func(device, espNode, bootNode, runDir string, opts *bootloader.Options) error {
			record("grub " + device)
			return nil
		},
		Mount: func(node, mountPoint string) error {
			record("mount " + node)
			return nil
		},
		Umount: func(mountPoint string) error {
			record("umount")
			return nil
		},
		InitMetadata: func(dataMnt string, encrypted bool, bootTimeout int, theme string) error {
			record("metadata")
			return nil
		},
		CommandExists: func(string) bool { return true },
	}
}

func (s *pipelineSuite) validated(c *C) *plan.ValidatedDevice {
	profile := &device.Profile{
		Device:     s.dev,
		Name:       "sdz",
		SizeBytes:  64 * 1024 * 1024 * 1024,
		SectorSize: 512,
		Removable:  true,
	}
	validated, err := plan.ValidateDevice(profile, &plan.Request{}, &plan.Environment{})
	c.Assert(err, IsNil)
	return validated
}

func (s *pipelineSuite) run(c *C, ctx context.Context, req *plan.Request) (*pipeline.State, error) {
	validated := s.validated(c)
	p, err := plan.Build(validated, req, plan.Defaults{})
	c.Assert(err, IsNil)
	return pipeline.Run(ctx, validated, p, req, s.tools, &pipeline.Options{
		RunDir:      s.runDir,
		BootTimeout: 10,
	})
}

func (s *pipelineSuite) TestFullRunWithEverything(c *C) {
	req := &plan.Request{Encrypt: true, SecureWipe: true, Passphrase: passphrase}
	state, err := s.run(c, context.Background(), req)
	c.Assert(err, IsNil)
	c.Check(state.Stage, Equals, pipeline.Complete)
	c.Check(state.Failure, IsNil)
	c.Check(state.Warning, IsNil)
	c.Check(state.Completed, DeepEquals, []plan.Step{
		plan.StepWipe, plan.StepPartition, plan.StepEncrypt,
		plan.StepFilesystems, plan.StepBootloader, plan.StepMetadata,
	})
	c.Check(s.calls, DeepEquals, []string{
		"wipe " + s.dev,
		"partition " + s.dev,
		"luksFormat " + s.dev + "3",
		"luksOpen " + s.dev + "3",
		"mkfs vfat " + s.dev + "1 USB_ESP",
		"mkfs ext4 " + s.dev + "2 USB_BOOT",
		// the data filesystem goes into the opened container
		"mkfs ext4 /dev/mapper/" + mapperNameFrom(s.calls) + " USB_DATA",
		"grub " + s.dev,
		"mount /dev/mapper/" + mapperNameFrom(s.calls),
		"metadata",
		"umount",
		"luksClose",
	})
}

// mapperNameFrom digs the random mapper name out of the recorded
// luksOpen call result.
func mapperNameFrom(calls []string) string {
	for _, call := range calls {
		const prefix = "mkfs ext4 /dev/mapper/"
		if len(call) > len(prefix) && call[:len(prefix)] == prefix {
			rest := call[len(prefix):]
			for i := range rest {
				if rest[i] == ' ' {
					return rest[:i]
				}
			}
		}
	}
	return ""
}

func (s *pipelineSuite) TestPlainRunSkipsWipeAndEncrypt(c *C) {
	state, err := s.run(c, context.Background(), &plan.Request{})
	c.Assert(err, IsNil)
	c.Check(state.Stage, Equals, pipeline.Complete)
	// skipped steps do not appear in the completed list
	c.Check(state.Completed, DeepEquals, []plan.Step{
		plan.StepPartition, plan.StepFilesystems, plan.StepBootloader, plan.StepMetadata,
	})
	c.Check(s.calls, DeepEquals, []string{
		"partition " + s.dev,
		"mkfs vfat " + s.dev + "1 USB_ESP",
		"mkfs ext4 " + s.dev + "2 USB_BOOT",
		"mkfs ext4 " + s.dev + "3 USB_DATA",
		"grub " + s.dev,
		"mount " + s.dev + "3",
		"metadata",
		"umount",
	})
}

func (s *pipelineSuite) TestPartitioningFailureStopsEverything(c *C) {
	s.tools.CreatePartitions = func(p *plan.Plan, nodes []string) error {
		s.calls = append(s.calls, "partition")
		return fmt.Errorf("boom")
	}
	state, err := s.run(c, context.Background(), &plan.Request{})
	c.Assert(err, NotNil)
	failure, ok := err.(*pipeline.Failure)
	c.Assert(ok, Equals, true)
	c.Check(failure.Stage, Equals, pipeline.Partitioned)
	c.Check(failure.Cause, ErrorMatches, "boom")
	c.Check(state.Failure, Equals, failure)
	// nothing ran after the failed step
	c.Check(s.calls, DeepEquals, []string{"partition"})
	c.Check(state.Completed, HasLen, 0)
}

func (s *pipelineSuite) TestCancellationBeforePartitioning(c *C) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state, err := s.run(c, ctx, &plan.Request{})
	c.Assert(err, NotNil)
	failure, ok := err.(*pipeline.Failure)
	c.Assert(ok, Equals, true)
	c.Check(failure.Stage, Equals, pipeline.Partitioned)
	c.Check(failure.Cause, FitsTypeOf, &pipeline.CancelledError{})
	c.Check(state.Stage, Equals, pipeline.Validated)
	// zero destructive calls were issued
	c.Check(s.calls, HasLen, 0)
}

func (s *pipelineSuite) TestToolMissing(c *C) {
	s.tools.CommandExists = func(name string) bool {
		return name != "grub-install"
	}
	_, err := s.run(c, context.Background(), &plan.Request{})
	c.Assert(err, NotNil)
	missing, ok := err.(*pipeline.ToolMissingError)
	c.Assert(ok, Equals, true)
	c.Check(missing.Tool, Equals, "grub-install")
	c.Check(s.calls, HasLen, 0)
}

func (s *pipelineSuite) TestCryptsetupOnlyRequiredForEncryption(c *C) {
	s.tools.CommandExists = func(name string) bool {
		return name != "cryptsetup"
	}
	_, err := s.run(c, context.Background(), &plan.Request{})
	c.Assert(err, IsNil)

	s.calls = nil
	req := &plan.Request{Encrypt: true, Passphrase: passphrase}
	_, err = s.run(c, context.Background(), req)
	c.Check(err, FitsTypeOf, &pipeline.ToolMissingError{})
}

func (s *pipelineSuite) TestWeakPassphraseRejectedBeforeAnyCall(c *C) {
	req := &plan.Request{Encrypt: true, Passphrase: "short"}
	_, err := s.run(c, context.Background(), req)
	c.Check(err, ErrorMatches, `passphrase is too weak: .*`)
	c.Check(s.calls, HasLen, 0)
}

func (s *pipelineSuite) TestOpenFailureSkipsClose(c *C) {
	s.tools.LuksOpen = func(node, pass, name string) (string, error) {
		s.calls = append(s.calls, "luksOpen")
		return "", fmt.Errorf("cannot open")
	}
	req := &plan.Request{Encrypt: true, Passphrase: passphrase}
	state, err := s.run(c, context.Background(), req)
	c.Assert(err, NotNil)
	failure := err.(*pipeline.Failure)
	c.Check(failure.Stage, Equals, pipeline.Encrypted)
	c.Check(state.Stage, Equals, pipeline.Partitioned)
	// the mapping was never established, so it must not be closed
	c.Check(s.calls, DeepEquals, []string{
		"partition " + s.dev,
		"luksFormat " + s.dev + "3",
		"luksOpen",
	})
}

func (s *pipelineSuite) TestContainerClosedOnLaterFailure(c *C) {
	s.tools.Mkfs = func(typ, node, label string, sectorSize uint64) error {
		return fmt.Errorf("mkfs exploded")
	}
	req := &plan.Request{Encrypt: true, Passphrase: passphrase}
	_, err := s.run(c, context.Background(), req)
	c.Assert(err, NotNil)
	c.Check(err.(*pipeline.Failure).Stage, Equals, pipeline.FilesystemsReady)
	c.Check(s.calls[len(s.calls)-1], Equals, "luksClose")
}

func (s *pipelineSuite) TestMetadataFailureIsNonFatal(c *C) {
	s.tools.InitMetadata = func(string, bool, int, string) error {
		return fmt.Errorf("disk full")
	}
	state, err := s.run(c, context.Background(), &plan.Request{})
	c.Assert(err, IsNil)
	c.Check(state.Stage, Equals, pipeline.Complete)
	c.Check(state.Warning, ErrorMatches, "disk full")
	// the step only produced a warning, it did not complete
	c.Check(state.Completed, DeepEquals, []plan.Step{
		plan.StepPartition, plan.StepFilesystems, plan.StepBootloader,
	})
}

func (s *pipelineSuite) TestMetadataMountFailureIsNonFatal(c *C) {
	s.tools.Mount = func(node, mountPoint string) error {
		return fmt.Errorf("mount refused")
	}
	state, err := s.run(c, context.Background(), &plan.Request{})
	c.Assert(err, IsNil)
	c.Check(state.Stage, Equals, pipeline.Complete)
	c.Check(state.Warning, ErrorMatches, `cannot write device metadata under .*: mount refused`)
	c.Check(state.Completed, DeepEquals, []plan.Step{
		plan.StepPartition, plan.StepFilesystems, plan.StepBootloader,
	})
}

func (s *pipelineSuite) TestDeviceLockedByAnotherProcess(c *C) {
	lock, err := osutil.NewFileLock(s.dev)
	c.Assert(err, IsNil)
	defer lock.Close()
	c.Assert(lock.Lock(), IsNil)

	_, err = s.run(c, context.Background(), &plan.Request{})
	c.Check(err, ErrorMatches, `cannot acquire exclusive use of .*`)
	c.Check(s.calls, HasLen, 0)
}
