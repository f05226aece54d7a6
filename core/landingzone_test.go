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

import "testing"

func readLandingRun(t *testing.T, backend RunBackend, path string) []uint64 {
	t.Helper()
	r, err := backend.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer r.Close()
	recs, err := ReadAll(NewRunReader(r, 4096, Int64Codec{}))
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	ids := make([]uint64, len(recs))
	for i, rec := range recs {
		ids[i] = rec.Ortho.ID()
	}
	return ids
}

func TestLandingZoneAppendAndDrain(t *testing.T) {
	backend := &LocalBackend{Basepath: t.TempDir()}
	lz, err := NewLandingZone(backend, "gen-0/bucket-0", 4096)
	if err != nil {
		t.Fatalf("new landing zone: %v", err)
	}

	for _, v := range []uint64{1, 2, 3} {
		if err := lz.Append(Int64Ortho(v)); err != nil {
			t.Fatalf("append %d: %v", v, err)
		}
	}

	path, drained, err := lz.Drain()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if !drained {
		t.Fatalf("expected a drain with pending appends")
	}

	got := readLandingRun(t, backend, path)
	want := []uint64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	// Draining again with nothing appended since must be a no-op.
	if _, drained, err := lz.Drain(); err != nil || drained {
		t.Fatalf("expected no-op drain, got drained=%v err=%v", drained, err)
	}

	if err := lz.Append(Int64Ortho(42)); err != nil {
		t.Fatalf("append after drain: %v", err)
	}
	path2, drained, err := lz.Drain()
	if err != nil || !drained {
		t.Fatalf("second drain: drained=%v err=%v", drained, err)
	}
	if path2 == path {
		t.Fatalf("expected a fresh drain path, got the same %s twice", path)
	}
	got2 := readLandingRun(t, backend, path2)
	if len(got2) != 1 || got2[0] != 42 {
		t.Fatalf("second drain contents = %v, want [42]", got2)
	}
}
