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
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/boothut/boothut/config"
	"github.com/boothut/boothut/device"
	"github.com/boothut/boothut/logger"
	"github.com/boothut/boothut/luks2"
	"github.com/boothut/boothut/osutil"
	"github.com/boothut/boothut/pipeline"
	"github.com/boothut/boothut/plan"
	"github.com/boothut/boothut/state"
)

type cmdFormat struct {
	Encrypt     bool   `long:"encrypt" description:"Encrypt the data partition with LUKS2"`
	SecureWipe  bool   `long:"secure-wipe" description:"Overwrite the whole device before partitioning"`
	WipePattern string `long:"wipe-pattern" choice:"random" choice:"zeros" choice:"dod" description:"Secure wipe pattern"`
	Theme       string `long:"theme" description:"Boot menu theme to install"`
	Yes         bool   `long:"yes" short:"y" description:"Skip the confirmation prompt"`
	DryRun      bool   `long:"dry-run" description:"Show the plan without touching the device"`

	Positional struct {
		Device string `positional-arg-name:"<device>" required:"yes" description:"Block device node, e.g. /dev/sdb"`
	} `positional-args:"yes" required:"yes"`
}

func init() {
	addCommand("format",
		"Format a removable device as a multi-boot stick",
		`The format command partitions the device with an EFI system
partition, a boot partition carrying grub and a data partition for ISO
images, optionally wrapped in a LUKS2 encrypted container. All existing
data on the device is destroyed.`,
		&cmdFormat{})
}

// mockable for tests
var (
	timeNow        = time.Now
	readPassphrase = func() (string, error) {
		buf, err := term.ReadPassword(int(syscall.Stdin))
		return string(buf), err
	}
	runPipeline = pipeline.Run
)

func (c *cmdFormat) Execute([]string) error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}

	req := &plan.Request{
		Encrypt:     c.Encrypt || cfg.DefaultEncryption,
		SecureWipe:  c.SecureWipe,
		WipePattern: cfg.WipePattern,
		Theme:       cfg.Theme,
	}
	if c.WipePattern != "" {
		req.WipePattern = plan.WipePattern(c.WipePattern)
	}
	if c.Theme != "" {
		req.Theme = c.Theme
	}

	profile, err := device.Resolve(c.Positional.Device)
	if err != nil {
		return err
	}
	mounted, err := osutil.MountedDevicePaths(profile.Device)
	if err != nil {
		return err
	}
	env := &plan.Environment{
		SystemDisk: device.SystemDiskName(),
		MountedAt:  mounted,
	}

	validated, err := plan.ValidateDevice(profile, req, env)
	if err != nil {
		return err
	}
	p, err := plan.Build(validated, req, plan.Defaults{})
	if err != nil {
		return err
	}

	if c.DryRun {
		buf, err := yaml.Marshal(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(Stdout, "Would format %s (%s %s, %d bytes):\n\n%s",
			profile.Device, strings.TrimSpace(profile.Vendor), strings.TrimSpace(profile.Model),
			profile.SizeBytes, buf)
		return nil
	}

	warnAboutPreviousRun(profile.Device)

	if !c.Yes {
		if err := confirmDestruction(profile); err != nil {
			return err
		}
	}
	if req.Encrypt {
		passphrase, err := promptPassphrase()
		if err != nil {
			return err
		}
		req.Passphrase = passphrase
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runDir, err := os.MkdirTemp("/run", "boothut-")
	if err != nil {
		// /run may not be writable for tests or containers
		runDir, err = os.MkdirTemp("", "boothut-")
		if err != nil {
			return err
		}
	}
	defer os.RemoveAll(runDir)

	startedAt := timeNow().UTC()
	st, err := runPipeline(ctx, validated, p, req, nil, &pipeline.Options{
		RunDir:      runDir,
		BootTimeout: cfg.BootTimeout,
		Observer:    &consoleObserver{},
	})
	recordRun(profile.Device, startedAt, st, err)
	if err != nil {
		return err
	}
	if st.Warning != nil {
		fmt.Fprintf(Stderr, "warning: %v\n", st.Warning)
	}
	fmt.Fprintf(Stdout, "\n%s is ready. Add images with \"boothut iso add %s <image.iso>\".\n",
		profile.Device, profile.Device)
	return nil
}

// confirmDestruction requires the user to type the device node back,
// a plain "y" is not enough to destroy a disk.
func confirmDestruction(profile *device.Profile) error {
	fmt.Fprintf(Stdout, "This will DESTROY ALL DATA on %s (%s %s, %.1f GiB).\n",
		profile.Device, strings.TrimSpace(profile.Vendor), strings.TrimSpace(profile.Model),
		float64(profile.SizeBytes)/(1024*1024*1024))
	fmt.Fprintf(Stdout, "Type the device path to continue: ")
	line, err := bufio.NewReader(Stdin).ReadString('\n')
	if err != nil {
		return &pipeline.CancelledError{}
	}
	if strings.TrimSpace(line) != profile.Device {
		return &pipeline.CancelledError{}
	}
	return nil
}

func promptPassphrase() (string, error) {
	fmt.Fprintf(Stdout, "Passphrase for the encrypted data partition: ")
	passphrase, err := readPassphrase()
	fmt.Fprintln(Stdout)
	if err != nil {
		return "", err
	}
	if err := luks2.ValidatePassphrase(passphrase); err != nil {
		return "", err
	}
	fmt.Fprintf(Stdout, "Repeat passphrase: ")
	again, err := readPassphrase()
	fmt.Fprintln(Stdout)
	if err != nil {
		return "", err
	}
	if passphrase != again {
		return "", fmt.Errorf("passphrases do not match")
	}
	return passphrase, nil
}

// warnAboutPreviousRun consults the run journal; the journal is
// advisory so every error here is swallowed into a debug log.
func warnAboutPreviousRun(devicePath string) {
	journal, err := state.Open(state.DefaultPath())
	if err != nil {
		logger.Debugf("cannot open run journal: %v", err)
		return
	}
	defer journal.Close()
	last, err := journal.LastRun(devicePath)
	if err != nil {
		logger.Debugf("cannot read run journal: %v", err)
		return
	}
	if last != nil && last.Failed {
		fmt.Fprintf(Stderr, "warning: a previous format of %s failed at stage %q (%s), the device may be in a partial state\n",
			devicePath, last.Stage, last.Cause)
	}
}

func recordRun(devicePath string, startedAt time.Time, st *pipeline.State, runErr error) {
	// errors raised before the first destructive call, like a missing
	// tool, lock contention or an early cancellation, leave the device
	// exactly as it was and must not make the next format warn about a
	// partial state
	if runErr != nil && !deviceTouched(st) {
		return
	}
	journal, err := state.Open(state.DefaultPath())
	if err != nil {
		logger.Debugf("cannot open run journal: %v", err)
		return
	}
	defer journal.Close()
	run := &state.Run{
		Device:     devicePath,
		StartedAt:  startedAt,
		FinishedAt: timeNow().UTC(),
		Stage:      string(st.Stage),
	}
	if st.Failure != nil {
		run.Failed = true
		run.Stage = string(st.Failure.Stage)
		run.Cause = st.Failure.Cause.Error()
	}
	if err := journal.Record(run); err != nil {
		logger.Debugf("cannot record run: %v", err)
	}
}

// deviceTouched reports whether the run issued at least one destructive
// call. Cancellations are honoured at step boundaries, so a cancelled
// run touched the device only if an earlier step already completed.
func deviceTouched(st *pipeline.State) bool {
	if st.Failure == nil {
		return false
	}
	var cancelled *pipeline.CancelledError
	if errors.As(st.Failure.Cause, &cancelled) {
		return len(st.Completed) > 0
	}
	return true
}

// consoleObserver prints one line per step and an in-place percentage
// for the long-running ones.
type consoleObserver struct {
	sawProgress bool
}

func (o *consoleObserver) StartStep(step plan.Step, summary string) {
	o.sawProgress = false
	fmt.Fprintf(Stdout, "%s ...\n", summary)
}

func (o *consoleObserver) Progress(step plan.Step, done, total uint64) {
	if total == 0 {
		return
	}
	o.sawProgress = true
	fmt.Fprintf(Stdout, "\r  %3d%% (%d/%d MiB)", done*100/total, done/(1024*1024), total/(1024*1024))
}

func (o *consoleObserver) FinishStep(step plan.Step) {
	if o.sawProgress {
		fmt.Fprintln(Stdout)
	}
}
