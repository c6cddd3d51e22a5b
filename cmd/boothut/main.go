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

// boothut prepares multi-boot USB sticks: it formats and optionally
// encrypts a removable device, installs grub and manages the ISO images
// the device boots.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/boothut/boothut/device"
	"github.com/boothut/boothut/logger"
	"github.com/boothut/boothut/luks2"
	"github.com/boothut/boothut/pipeline"
	"github.com/boothut/boothut/plan"
	"github.com/boothut/boothut/wipe"
)

// Standard streams, redirected for testing.
var (
	Stdin  io.Reader = os.Stdin
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

var opts struct{}

var parser = flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)

// Exit codes, one per failure category.
const (
	exitOK          = 0
	exitValidation  = 1
	exitToolMissing = 2
	exitExecution   = 3
	exitCancelled   = 4
)

func addCommand(name, shortHelp, longHelp string, data interface{}) *flags.Command {
	cmd, err := parser.AddCommand(name, shortHelp, longHelp, data)
	if err != nil {
		logger.Panicf("cannot add command %q: %v", name, err)
	}
	return cmd
}

// exitCodeFor maps an error to the exit code of its failure category.
func exitCodeFor(err error) int {
	var cancelled *pipeline.CancelledError
	if errors.As(err, &cancelled) {
		return exitCancelled
	}
	var toolMissing *pipeline.ToolMissingError
	if errors.As(err, &toolMissing) {
		return exitToolMissing
	}
	var failure *pipeline.Failure
	if errors.As(err, &failure) {
		return exitExecution
	}
	var wipeErr *wipe.Error
	if errors.As(err, &wipeErr) {
		return exitExecution
	}
	var notFound *device.NotFoundError
	var tooSmall *plan.TooSmallError
	var notRemovable *plan.NotRemovableError
	var protected *plan.ProtectedError
	var weak *luks2.WeakPassphraseError
	if errors.As(err, &notFound) || errors.As(err, &tooSmall) ||
		errors.As(err, &notRemovable) || errors.As(err, &protected) ||
		errors.As(err, &weak) {
		return exitValidation
	}
	return exitValidation
}

func run(args []string) error {
	_, err := parser.ParseArgs(args)
	return err
}

func main() {
	if err := logger.SimpleSetup(); err != nil {
		fmt.Fprintf(Stderr, "cannot set up logging: %v\n", err)
	}

	err := run(os.Args[1:])
	if err == nil {
		os.Exit(exitOK)
	}
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		parser.WriteHelp(Stdout)
		os.Exit(exitOK)
	}
	fmt.Fprintf(Stderr, "error: %v\n", err)
	os.Exit(exitCodeFor(err))
}
