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

func TestAntiJoinEmitsOnlyNovel(t *testing.T) {
	backend := &LocalBackend{Basepath: t.TempDir()}
	backend.MkdirAll("in")
	writeSortedRun(t, backend, "in/gen.dat", []uint64{1, 2, 3, 4, 5})
	writeSortedRun(t, backend, "in/hist-a.dat", []uint64{2, 4})
	writeSortedRun(t, backend, "in/hist-b.dat", []uint64{3})

	res, err := AntiJoin(backend, Int64Codec{}, "in/gen.dat", []string{"in/hist-a.dat", "in/hist-b.dat"}, "out", 8, 4096)
	if err != nil {
		t.Fatalf("antijoin: %v", err)
	}
	// accepted == len(gen_run), not len(novel): history records the
	// whole generation observed, not just the novel subset (spec §4.5).
	if res.Accepted != 5 {
		t.Fatalf("expected 5 accepted (len(gen_run)), got %d", res.Accepted)
	}
	got := readLandingRun(t, backend, res.NovelPath)
	// history = {2, 3, 4}; gen = {1, 2, 3, 4, 5} -> novel = {1, 5}
	expected := map[uint64]bool{1: true, 5: true}
	if len(got) != len(expected) {
		t.Fatalf("got %v, want ids %v", got, expected)
	}
	for _, id := range got {
		if !expected[id] {
			t.Fatalf("unexpected novel id %d in %v", id, got)
		}
	}

	histDelta := readLandingRun(t, backend, res.HistoryRunPath)
	if len(histDelta) != 5 {
		t.Fatalf("history delta should carry the full gen_run (5 ids), got %v", histDelta)
	}
}

func TestAntiJoinNoHistoryPassesEverythingThrough(t *testing.T) {
	backend := &LocalBackend{Basepath: t.TempDir()}
	backend.MkdirAll("in")
	writeSortedRun(t, backend, "in/gen.dat", []uint64{10, 20, 30})

	res, err := AntiJoin(backend, Int64Codec{}, "in/gen.dat", nil, "out", 8, 4096)
	if err != nil {
		t.Fatalf("antijoin: %v", err)
	}
	if res.Accepted != 3 {
		t.Fatalf("expected all 3 accepted with empty history, got %d", res.Accepted)
	}
}
