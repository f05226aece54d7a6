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
	"sort"
	"sync"
)

// WorkQueue holds the unordered work segments for one generation's
// bucket: files of orthos to be expanded, consumed whole and deleted
// after a worker finishes with them (spec §3's WorkSegment invariants:
// segments consumed in full, order across and within segments is
// irrelevant).
type WorkQueue struct {
	backend RunBackend
	dir     string
	bufSize int

	mu      sync.Mutex
	pending []string // segment paths not yet popped, oldest first
	seq     int
}

func NewWorkQueue(backend RunBackend, dir string, bufSize int) (*WorkQueue, error) {
	wq := &WorkQueue{backend: backend, dir: dir, bufSize: bufSize}
	if err := backend.MkdirAll(dir); err != nil {
		return nil, err
	}
	names, err := backend.List(dir)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	for _, n := range names {
		wq.pending = append(wq.pending, dir+"/"+n)
	}
	return wq, nil
}

// PushSegment writes orthos as one new unordered segment file.
func (wq *WorkQueue) PushSegment(orthos []Ortho) (string, error) {
	wq.mu.Lock()
	wq.seq++
	seq := wq.seq
	wq.mu.Unlock()

	path := fmt.Sprintf("%s/seg-%08d.dat", wq.dir, seq)
	w, err := wq.backend.Create(path)
	if err != nil {
		return "", err
	}
	rw := NewRunWriter(w, wq.bufSize)
	for _, o := range orthos {
		if _, err := rw.WriteRecord(o); err != nil {
			w.Close()
			return "", err
		}
	}
	if err := rw.Flush(); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", ioErr("close work segment "+path, err)
	}

	wq.mu.Lock()
	wq.pending = append(wq.pending, path)
	wq.mu.Unlock()
	return path, nil
}

// PopSegment returns the next segment's full contents and deletes it from
// the backend, or (nil, false, nil) if the queue is empty. Segments are
// drained sequentially (spec §2's WorkQueue description), but "sequential"
// only bounds which segment is handed out next, never an ordering
// guarantee on the orthos inside it.
func (wq *WorkQueue) PopSegment(codec Codec) ([]Ortho, bool, error) {
	wq.mu.Lock()
	if len(wq.pending) == 0 {
		wq.mu.Unlock()
		return nil, false, nil
	}
	path := wq.pending[0]
	wq.pending = wq.pending[1:]
	wq.mu.Unlock()

	r, err := wq.backend.Open(path)
	if err != nil {
		return nil, false, err
	}
	recs, err := ReadAll(NewRunReader(r, wq.bufSize, codec))
	r.Close()
	if err != nil {
		return nil, false, err
	}
	if err := wq.backend.Remove(path); err != nil {
		return nil, false, err
	}
	out := make([]Ortho, len(recs))
	for i, rec := range recs {
		out[i] = rec.Ortho
	}
	return out, true, nil
}

// Len reports the number of not-yet-popped segments (spec §4.9's
// work_len).
func (wq *WorkQueue) Len() int {
	wq.mu.Lock()
	defer wq.mu.Unlock()
	return len(wq.pending)
}
