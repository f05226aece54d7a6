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
	"container/heap"
	"fmt"
	"io"
)

// mergeCursor is one open run plus its current head record, grounded on
// storage/scan_order.go's shardqueue: that type heap-orders per-shard
// scan cursors by the head row's sort key, advancing one shard at a time
// as its head is consumed. KWayMerger does the same over run files
// instead of shards, keyed by id instead of an arbitrary sort expression.
type mergeCursor struct {
	reader *RunReader
	closer io.Closer
	head   *Record
	done   bool
	runIdx int
}

func (c *mergeCursor) advance() error {
	rec, err := c.reader.Next()
	if err == io.EOF {
		c.head = nil
		c.done = true
		return nil
	}
	if err != nil {
		return err
	}
	c.head = rec
	return nil
}

// cursorHeap orders open cursors by the heap key (current_id, run_index),
// ascending and lexicographic — the same Len/Less/Swap/Push/Pop shape as
// storage/scan_order.go's globalqueue, specialized to spec §4.4's
// two-part key. The run_index tie-break makes which cursor surfaces
// first on an id collision deterministic rather than dependent on
// container/heap's internal sift order.
type cursorHeap []*mergeCursor

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool {
	idI, idJ := h[i].head.Ortho.ID(), h[j].head.Ortho.ID()
	if idI != idJ {
		return idI < idJ
	}
	return h[i].runIdx < h[j].runIdx
}
func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)   { *h = append(*h, x.(*mergeCursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// CollisionLogger is invoked once per id collision where two orthos share
// an id but are not Equal (spec §7's Collision kind): first-seen wins,
// every occurrence after the first is dropped and logged.
type CollisionLogger func(id uint64)

// MergeRuns streams paths (each an ascending-by-id sorted run) through a
// min-heap merge, writing a single UniqueRun to outDir/unique.dat with ids strictly
// increasing. If len(paths) exceeds fanIn, it merges fanIn at a time into
// intermediate passes first (spec §4.4's "supports multi-pass if N >
// fan-in"), returning the path of the single final UniqueRun.
func MergeRuns(backend RunBackend, codec Codec, paths []string, outDir string, fanIn, bufSize int, onCollision CollisionLogger) (string, error) {
	if len(paths) == 0 {
		invariant("MergeRuns called with zero inputs")
	}
	if fanIn < 2 {
		fanIn = 2
	}
	pass := 0
	for len(paths) > fanIn {
		pass++
		var next []string
		for i := 0; i < len(paths); i += fanIn {
			end := i + fanIn
			if end > len(paths) {
				end = len(paths)
			}
			out := fmt.Sprintf("%s/merge-p%d-%08d.dat", outDir, pass, i/fanIn)
			if err := mergeOnePass(backend, codec, paths[i:end], out, bufSize, onCollision); err != nil {
				return "", err
			}
			next = append(next, out)
		}
		paths = next
	}
	out := fmt.Sprintf("%s/unique.dat", outDir)
	if err := mergeOnePass(backend, codec, paths, out, bufSize, onCollision); err != nil {
		return "", err
	}
	return out, nil
}

func mergeOnePass(backend RunBackend, codec Codec, paths []string, outPath string, bufSize int, onCollision CollisionLogger) error {
	cursors := make([]*mergeCursor, 0, len(paths))
	defer func() {
		for _, c := range cursors {
			c.closer.Close()
		}
	}()
	for i, p := range paths {
		r, err := backend.Open(p)
		if err != nil {
			return err
		}
		c := &mergeCursor{reader: NewRunReader(r, bufSize, codec), closer: r, runIdx: i}
		if err := c.advance(); err != nil {
			return err
		}
		if !c.done {
			cursors = append(cursors, c)
		} else {
			r.Close()
		}
	}

	if err := backend.MkdirAll(outDirOf(outPath)); err != nil {
		return err
	}
	w, err := backend.Create(outPath)
	if err != nil {
		return err
	}
	rw := NewRunWriter(w, bufSize)

	h := cursorHeap(cursors)
	heap.Init(&h)

	var last Ortho
	haveLast := false
	for h.Len() > 0 {
		top := h[0]
		rec := top.head
		if haveLast && rec.Ortho.ID() == last.ID() {
			// same id: first-seen wins regardless of equality. If the
			// orthos differ structurally this is a genuine id collision
			// (spec §7's KindCollision) and gets logged; if they're equal
			// it's plain dedupe and logging would be noise.
			if onCollision != nil && !rec.Ortho.Equal(last) {
				onCollision(rec.Ortho.ID())
			}
		} else {
			if _, err := rw.WriteRaw(rec.Payload); err != nil {
				w.Close()
				return err
			}
			last = rec.Ortho
			haveLast = true
		}
		if err := top.advance(); err != nil {
			w.Close()
			return err
		}
		if top.done {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}

	if err := rw.Flush(); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return ioErr("close merged run "+outPath, err)
	}
	return nil
}

func outDirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
