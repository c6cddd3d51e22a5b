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

// Package pipeline sequences the destructive steps that turn a
// validated device into a bootable multi-boot medium. Steps run in a
// fixed order, the first failure stops the pipeline, and no destructive
// step is ever retried automatically.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/boothut/boothut/bootloader"
	"github.com/boothut/boothut/logger"
	"github.com/boothut/boothut/luks2"
	"github.com/boothut/boothut/metadata"
	"github.com/boothut/boothut/osutil"
	"github.com/boothut/boothut/osutil/mkfs"
	"github.com/boothut/boothut/partition"
	"github.com/boothut/boothut/plan"
	"github.com/boothut/boothut/wipe"
)

// Stage is a position in the pipeline state machine.
type Stage string

const (
	Idle                Stage = "idle"
	Validated           Stage = "validated"
	Wiped               Stage = "wiped"
	Partitioned         Stage = "partitioned"
	Encrypted           Stage = "encrypted"
	FilesystemsReady    Stage = "filesystems-ready"
	BootloaderInstalled Stage = "bootloader-installed"
	MetadataInitialized Stage = "metadata-initialized"
	Complete            Stage = "complete"
)

// Failure is the terminal failed state, reachable from every
// non-terminal stage.
type Failure struct {
	// Stage is the stage the failing step was about to reach.
	Stage Stage
	Cause error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("pipeline failed at stage %q: %v", f.Stage, f.Cause)
}

func (f *Failure) Unwrap() error { return f.Cause }

// State tracks the progress of one pipeline run. It is owned
// exclusively by the orchestrator.
type State struct {
	Stage     Stage
	Completed []plan.Step
	Failure   *Failure
	// Warning carries the non-fatal metadata failure, if any.
	Warning error
}

// CancelledError reports a cancellation honoured at a step boundary.
type CancelledError struct{}

func (*CancelledError) Error() string { return "cancelled by user" }

// ToolMissingError reports a missing external tool, detected before any
// destructive call.
type ToolMissingError struct {
	Tool string
}

func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("required tool %q is not installed", e.Tool)
}

// Observer receives progress notifications between fixed-size chunks of
// work. Implementations must not block for long, the pipeline is
// single-threaded.
type Observer interface {
	StartStep(step plan.Step, summary string)
	Progress(step plan.Step, done, total uint64)
	FinishStep(step plan.Step)
}

type nullObserver struct{}

func (nullObserver) StartStep(plan.Step, string)        {}
func (nullObserver) Progress(plan.Step, uint64, uint64) {}
func (nullObserver) FinishStep(plan.Step)               {}

// Tools bundles the external tool adapters consumed by the pipeline.
// Every destructive call goes through one of these so the whole
// pipeline can run against mocks.
type Tools struct {
	Wipe             func(ctx context.Context, device string, pattern plan.WipePattern, progress wipe.ProgressFunc) error
	CreatePartitions func(p *plan.Plan, nodes []string) error
	LuksFormat       func(node, passphrase string, params *plan.EncryptionParams) error
	LuksOpen         func(node, passphrase, name string) (string, error)
	LuksClose        func(name string) error
	Mkfs             func(typ, node, label string, sectorSize uint64) error
	InstallBoot      func(device, espNode, bootNode, runDir string, opts *bootloader.Options) error
	Mount            func(node, mountPoint string) error
	Umount           func(mountPoint string) error
	InitMetadata     func(dataMnt string, encrypted bool, bootTimeout int, theme string) error
	CommandExists    func(name string) bool
}

// DefaultTools returns adapters wired to the real external tools.
func DefaultTools() *Tools {
	return &Tools{
		Wipe:             wipe.Run,
		CreatePartitions: partition.Create,
		LuksFormat:       luks2.Format,
		LuksOpen:         luks2.Open,
		LuksClose:        luks2.Close,
		Mkfs:             mkfs.Make,
		InstallBoot:      bootloader.Install,
		Mount:            osutil.Mount,
		Umount:           osutil.Umount,
		InitMetadata:     metadata.Initialize,
		CommandExists:    osutil.CommandExists,
	}
}

// Options carry the non-plan tunables of a run.
type Options struct {
	// RunDir is the directory for temporary mount points.
	RunDir string
	// BootTimeout is the boot menu timeout in seconds.
	BootTimeout int
	Observer    Observer
}

// requiredTools lists the external commands a plan needs.
func requiredTools(p *plan.Plan) []string {
	tools := []string{"sfdisk", "partx", "udevadm", "mkfs.fat", "mkfs.ext4", "mount", "umount", "grub-install"}
	if p.Encryption != nil {
		tools = append(tools, "cryptsetup")
	}
	return tools
}

// CheckTools fails fast with ToolMissingError before any destructive
// call when the platform lacks a required tool.
func CheckTools(p *plan.Plan, commandExists func(string) bool) error {
	for _, tool := range requiredTools(p) {
		if !commandExists(tool) {
			return &ToolMissingError{Tool: tool}
		}
	}
	return nil
}

// Run executes the plan. The validated token is required so that no
// caller can execute a plan that bypassed safety validation. On failure
// the device is left exactly as the failed step left it; recovery is to
// start over from validation, never an in-place repair.
func Run(ctx context.Context, validated *plan.ValidatedDevice, p *plan.Plan, req *plan.Request, tools *Tools, opts *Options) (*State, error) {
	if tools == nil {
		tools = DefaultTools()
	}
	obs := opts.Observer
	if obs == nil {
		obs = nullObserver{}
	}

	state := &State{Stage: Validated}

	if err := CheckTools(p, tools.CommandExists); err != nil {
		return state, err
	}
	if p.Encryption != nil {
		if err := luks2.ValidatePassphrase(req.Passphrase); err != nil {
			return state, err
		}
	}

	// Exclusive ownership of the device node for the lifetime of the
	// pipeline; released on every exit path.
	lock, err := osutil.OpenExistingLockForWriting(p.Device)
	if err != nil {
		return state, fmt.Errorf("cannot open device for locking: %v", err)
	}
	defer lock.Close()
	if err := lock.TryLock(); err != nil {
		return state, fmt.Errorf("cannot acquire exclusive use of %s: %v", p.Device, err)
	}

	profile := validated.Profile()
	nodes := []string{
		profile.PartitionNode(1),
		profile.PartitionNode(2),
		profile.PartitionNode(3),
	}

	fail := func(stage Stage, cause error) (*State, error) {
		state.Failure = &Failure{Stage: stage, Cause: cause}
		logger.Noticef("format of %s failed at %s: %v", p.Device, stage, cause)
		return state, state.Failure
	}
	advance := func(stage Stage, step plan.Step) {
		state.Stage = stage
		state.Completed = append(state.Completed, step)
		obs.FinishStep(step)
	}
	// cancellation is honoured between steps only; once a destructive
	// call was issued it runs to completion or native failure
	cancelled := func(nextStage Stage) (*State, error, bool) {
		if ctx.Err() == nil {
			return nil, nil, false
		}
		st, err := fail(nextStage, &CancelledError{})
		return st, err, true
	}

	if req.SecureWipe {
		if st, err, done := cancelled(Wiped); done {
			return st, err
		}
		obs.StartStep(plan.StepWipe, fmt.Sprintf("Securely wiping %s", p.Device))
		err := tools.Wipe(ctx, p.Device, req.WipePattern, func(written, total uint64) {
			obs.Progress(plan.StepWipe, written, total)
		})
		if err != nil {
			return fail(Wiped, err)
		}
		advance(Wiped, plan.StepWipe)
	}

	if st, err, done := cancelled(Partitioned); done {
		return st, err
	}
	obs.StartStep(plan.StepPartition, "Writing GPT partition table")
	if err := tools.CreatePartitions(p, nodes); err != nil {
		return fail(Partitioned, err)
	}
	advance(Partitioned, plan.StepPartition)

	// the node the data filesystem is created on; replaced by the
	// mapper node when encryption is requested
	dataNode := nodes[2]

	if p.Encryption != nil {
		if st, err, done := cancelled(Encrypted); done {
			return st, err
		}
		obs.StartStep(plan.StepEncrypt, "Setting up encrypted container")
		if err := tools.LuksFormat(nodes[2], req.Passphrase, p.Encryption); err != nil {
			return fail(Encrypted, err)
		}
		mapperName := "boothut-" + uuid.NewString()
		mapped, err := tools.LuksOpen(nodes[2], req.Passphrase, mapperName)
		if err != nil {
			return fail(Encrypted, err)
		}
		// scoped-resource obligation: the mapping is removed on
		// success and abort alike
		defer func() {
			if cerr := tools.LuksClose(mapperName); cerr != nil {
				logger.Noticef("cannot close encrypted container %s: %v", mapperName, cerr)
			}
		}()
		dataNode = mapped
		advance(Encrypted, plan.StepEncrypt)
	}

	if st, err, done := cancelled(FilesystemsReady); done {
		return st, err
	}
	obs.StartStep(plan.StepFilesystems, "Creating filesystems")
	for i, part := range p.Partitions {
		node := nodes[i]
		typ := string(part.Filesystem)
		if part.Filesystem == plan.LUKS2Container {
			node = dataNode
			typ = string(plan.Ext4)
		}
		if err := tools.Mkfs(typ, node, part.Label, p.SectorSize); err != nil {
			return fail(FilesystemsReady, err)
		}
	}
	advance(FilesystemsReady, plan.StepFilesystems)

	if st, err, done := cancelled(BootloaderInstalled); done {
		return st, err
	}
	obs.StartStep(plan.StepBootloader, "Installing bootloader")
	bootOpts := &bootloader.Options{Timeout: opts.BootTimeout, Theme: req.Theme}
	if err := tools.InstallBoot(p.Device, nodes[0], nodes[1], opts.RunDir, bootOpts); err != nil {
		return fail(BootloaderInstalled, err)
	}
	advance(BootloaderInstalled, plan.StepBootloader)

	if st, err, done := cancelled(MetadataInitialized); done {
		return st, err
	}
	obs.StartStep(plan.StepMetadata, "Initializing device metadata")
	if err := initializeMetadata(tools, dataNode, p.Encryption != nil, opts, req.Theme); err != nil {
		// low blast radius: the device is bootable without its
		// metadata, report and continue to Complete
		state.Warning = err
		logger.Noticef("warning: %v", err)
	} else {
		state.Completed = append(state.Completed, plan.StepMetadata)
	}
	state.Stage = MetadataInitialized
	obs.FinishStep(plan.StepMetadata)

	state.Stage = Complete
	logger.Noticef("format of %s complete", p.Device)
	return state, nil
}

func initializeMetadata(tools *Tools, dataNode string, encrypted bool, opts *Options, theme string) error {
	dataMnt := filepath.Join(opts.RunDir, "data")
	if err := tools.Mount(dataNode, dataMnt); err != nil {
		return &metadata.WriteError{Path: dataMnt, Err: err}
	}
	defer func() {
		if err := tools.Umount(dataMnt); err != nil {
			logger.Noticef("cannot unmount %s: %v", dataMnt, err)
		}
	}()
	return tools.InitMetadata(dataMnt, encrypted, opts.BootTimeout, theme)
}
