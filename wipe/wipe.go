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

// Package wipe overwrites block devices before formatting. The writes
// happen in bounded chunks so that progress can be reported and a
// pending cancellation honoured without interrupting an in-flight write.
package wipe

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"

	"github.com/boothut/boothut/plan"
)

// chunkSize bounds a single write to the device.
const chunkSize = 4 * 1024 * 1024

// Error reports a failed or interrupted wipe together with the amount of
// data already destroyed, so the caller can tell the user exactly how
// partial the device state is.
type Error struct {
	Device         string
	BytesCompleted uint64
	Err            error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cannot wipe %s after %d bytes: %v", e.Device, e.BytesCompleted, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ProgressFunc is invoked after every written chunk with the total
// number of bytes written so far and the total to write.
type ProgressFunc func(written, total uint64)

// Run overwrites the whole device with the given pattern. Cancellation
// via ctx is honoured between chunks only, leaving the device partially
// wiped; the caller must treat that the same as a failed wipe.
func Run(ctx context.Context, devicePath string, pattern plan.WipePattern, progress ProgressFunc) error {
	switch pattern {
	case plan.WipeRandom, "":
		return onePass(ctx, devicePath, rand.Reader, progress)
	case plan.WipeZeros:
		return onePass(ctx, devicePath, zeroReader{}, progress)
	case plan.WipeDoD:
		// DoD 5220.22-M: zeros, ones, then random
		for _, src := range []io.Reader{zeroReader{}, onesReader{}, rand.Reader} {
			if err := onePass(ctx, devicePath, src, progress); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("cannot use unknown wipe pattern %q", pattern)
}

func onePass(ctx context.Context, devicePath string, source io.Reader, progress ProgressFunc) error {
	f, err := os.OpenFile(devicePath, os.O_WRONLY, 0)
	if err != nil {
		return &Error{Device: devicePath, Err: err}
	}
	defer f.Close()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return &Error{Device: devicePath, Err: err}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return &Error{Device: devicePath, Err: err}
	}

	total := uint64(size)
	buf := make([]byte, chunkSize)
	var written uint64
	for written < total {
		if err := ctx.Err(); err != nil {
			return &Error{Device: devicePath, BytesCompleted: written, Err: err}
		}
		n := uint64(chunkSize)
		if total-written < n {
			n = total - written
		}
		if _, err := io.ReadFull(source, buf[:n]); err != nil {
			return &Error{Device: devicePath, BytesCompleted: written, Err: err}
		}
		if _, err := f.Write(buf[:n]); err != nil {
			return &Error{Device: devicePath, BytesCompleted: written, Err: err}
		}
		written += n
		if progress != nil {
			progress(written, total)
		}
	}
	if err := f.Sync(); err != nil {
		return &Error{Device: devicePath, BytesCompleted: written, Err: err}
	}
	return nil
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

type onesReader struct{}

func (onesReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0xff
	}
	return len(p), nil
}
