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

// Package state keeps a host-side journal of pipeline runs. The journal
// is advisory: it lets the tool warn when a device was left mid-format
// by an earlier run, it never drives automatic recovery.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var runsBucket = []byte("runs")

// Run records the outcome of one pipeline run on one device.
type Run struct {
	// Device is the device node path the run is keyed on.
	Device     string    `json:"device"`
	StartedAt  time.Time `json:"started-at"`
	FinishedAt time.Time `json:"finished-at,omitempty"`
	// Stage is the last stage the run reached.
	Stage string `json:"stage"`
	// Failed is set when the run ended in the failed state.
	Failed bool   `json:"failed,omitempty"`
	Cause  string `json:"cause,omitempty"`
}

// Journal is a bolt-backed store of the most recent run per device.
type Journal struct {
	db *bolt.DB
}

// DefaultPath returns the journal location under the user state
// directory.
func DefaultPath() string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "/root"
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "boothut", "journal.db")
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("cannot open run journal: %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores the run as the latest one for its device, replacing any
// earlier record.
func (j *Journal) Record(run *Run) error {
	buf, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).Put([]byte(run.Device), buf)
	})
}

// LastRun returns the most recent recorded run for the device, or nil
// when the device was never seen.
func (j *Journal) LastRun(device string) (*Run, error) {
	var run *Run
	err := j.db.View(func(tx *bolt.Tx) error {
		buf := tx.Bucket(runsBucket).Get([]byte(device))
		if buf == nil {
			return nil
		}
		run = &Run{}
		return json.Unmarshal(buf, run)
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Runs returns all recorded runs, one per device.
func (j *Journal) Runs() ([]*Run, error) {
	var runs []*Run
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(k, v []byte) error {
			run := &Run{}
			if err := json.Unmarshal(v, run); err != nil {
				return err
			}
			runs = append(runs, run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}
