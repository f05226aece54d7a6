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
	"testing"
)

func writeSortedRun(t *testing.T, backend RunBackend, path string, ids []uint64) string {
	t.Helper()
	w, err := backend.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	rw := NewRunWriter(w, 4096)
	for _, id := range ids {
		if _, err := rw.WriteRecord(Int64Ortho(id)); err != nil {
			t.Fatalf("write record: %v", err)
		}
	}
	if err := rw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func TestMergeRunsDedupesAndOrders(t *testing.T) {
	backend := &LocalBackend{Basepath: t.TempDir()}
	backend.MkdirAll("in")
	writeSortedRun(t, backend, "in/a.dat", []uint64{1, 3, 5, 7})
	writeSortedRun(t, backend, "in/b.dat", []uint64{2, 3, 4, 7, 9})
	writeSortedRun(t, backend, "in/c.dat", []uint64{0, 6, 8})

	var collisions []uint64
	out, err := MergeRuns(backend, Int64Codec{}, []string{"in/a.dat", "in/b.dat", "in/c.dat"}, "out", 8, 4096, func(id uint64) {
		collisions = append(collisions, id)
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	got := readLandingRun(t, backend, out)
	want := []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("not sorted/deduped: got %v, want %v", got, want)
		}
	}
	// ids 3 and 7 repeat across runs but with equal orthos (same Int64Ortho
	// value implies Equal), so no collision should have been logged.
	if len(collisions) != 0 {
		t.Fatalf("unexpected collisions: %v", collisions)
	}
}

func TestMergeRunsMultiPass(t *testing.T) {
	backend := &LocalBackend{Basepath: t.TempDir()}
	backend.MkdirAll("in")
	paths := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		p := fmt.Sprintf("in/run-%d.dat", i)
		writeSortedRun(t, backend, p, []uint64{uint64(i), uint64(i + 10)})
		paths = append(paths, p)
	}
	out, err := MergeRuns(backend, Int64Codec{}, paths, "out", 2, 4096, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	got := readLandingRun(t, backend, out)
	if len(got) != 12 {
		t.Fatalf("expected 12 unique ids across multi-pass merge, got %d: %v", len(got), got)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("multi-pass merge not sorted: %v", got)
		}
	}
}
