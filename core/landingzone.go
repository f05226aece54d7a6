/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package core

import (
	"fmt"
	"sync"
)

const activeLogName = "active.log"

// LandingZone is one bucket's append-only inbox for newly-produced orthos,
// grounded on storage/persistence-files.go's FileStorage.OpenLog: workers
// append to a single open file, and the file is handed off to the reader
// side by rename rather than by coordinating readers and writers on the
// same descriptor (the same rescue-by-rename trick WriteSchema uses for
// schema.json.old).
type LandingZone struct {
	backend RunBackend
	dir     string
	bufSize int

	mu     sync.Mutex
	writer *RunWriter
	closer interface{ Close() error }
	seq    int
}

// NewLandingZone opens (creating if absent) dir/active.log for appending.
func NewLandingZone(backend RunBackend, dir string, bufSize int) (*LandingZone, error) {
	lz := &LandingZone{backend: backend, dir: dir, bufSize: bufSize}
	if err := backend.MkdirAll(dir); err != nil {
		return nil, err
	}
	if err := lz.reopen(); err != nil {
		return nil, err
	}
	return lz, nil
}

func (lz *LandingZone) activePath() string {
	return lz.dir + "/" + activeLogName
}

func (lz *LandingZone) reopen() error {
	w, err := lz.backend.OpenAppend(lz.activePath())
	if err != nil {
		return err
	}
	lz.writer = NewRunWriter(w, lz.bufSize)
	lz.closer = w
	return nil
}

// Append writes one ortho to the active log. Safe for concurrent callers.
func (lz *LandingZone) Append(o Ortho) error {
	lz.mu.Lock()
	defer lz.mu.Unlock()
	if _, err := lz.writer.WriteRecord(o); err != nil {
		return err
	}
	return nil
}

// Flush ensures all appended records so far are durable in the backend's
// sense (buffered writer flush; the backend itself decides when bytes hit
// disk/network).
func (lz *LandingZone) Flush() error {
	lz.mu.Lock()
	defer lz.mu.Unlock()
	return lz.writer.Flush()
}

// Drain atomically hands off everything appended so far as a new,
// immutable drain-N.log path, then reopens active.log empty so callers
// keep appending without waiting on the drained file to be processed
// (spec §4.2). Returns the drained path, or ("", false, nil) if nothing
// was appended since the last drain.
func (lz *LandingZone) Drain() (string, bool, error) {
	lz.mu.Lock()
	defer lz.mu.Unlock()
	if err := lz.writer.Flush(); err != nil {
		return "", false, err
	}
	if err := lz.closer.Close(); err != nil {
		return "", false, ioErr("close active log for drain", err)
	}
	size, ok, err := lz.backend.Stat(lz.activePath())
	if err != nil {
		return "", false, err
	}
	if !ok || size == 0 {
		if err := lz.reopen(); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	lz.seq++
	drainPath := fmt.Sprintf("%s/drain-%08d.log", lz.dir, lz.seq)
	if err := lz.backend.Rename(lz.activePath(), drainPath); err != nil {
		return "", false, err
	}
	if err := lz.reopen(); err != nil {
		return "", false, err
	}
	return drainPath, true, nil
}

// Close flushes and releases the active log's handle without draining it;
// a subsequent NewLandingZone on the same dir resumes appending to the
// same active.log (used on graceful shutdown, not on crash recovery —
// recovery deletes the whole job directory per spec §9).
func (lz *LandingZone) Close() error {
	lz.mu.Lock()
	defer lz.mu.Unlock()
	if err := lz.writer.Flush(); err != nil {
		return err
	}
	if err := lz.closer.Close(); err != nil {
		return ioErr("close active log", err)
	}
	return nil
}
