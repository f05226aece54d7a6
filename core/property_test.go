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
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// =============================================================================
// Property tests (spec §8)
//
// Each of these generates randomized input under a fixed seed and checks
// an invariant the pipeline must hold regardless of the specific input,
// rather than a single hand-picked example.
// =============================================================================

func randInt64Orthos(r *rand.Rand, n int, idSpace uint64) []Int64Ortho {
	out := make([]Int64Ortho, n)
	for i := range out {
		out[i] = Int64Ortho(r.Uint64() % idSpace)
	}
	return out
}

// writeUnsortedRun writes orthos in the given order, unsorted, via
// RunWriter — distinct from kwaymerger_test.go's writeSortedRun, which
// requires pre-sorted input since it feeds the merger directly.
func writeUnsortedRun(t *testing.T, backend RunBackend, path string, orthos []Int64Ortho) string {
	t.Helper()
	w, err := backend.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	rw := NewRunWriter(w, 4096)
	for _, o := range orthos {
		if _, err := rw.WriteRecord(o); err != nil {
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

// TestPropertyArenaSorterOutputIsSorted checks that no matter the
// insertion order or arena budget, every run ArenaSorter flushes is sorted
// by id.
func TestPropertyArenaSorterOutputIsSorted(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	backend := &LocalBackend{Basepath: t.TempDir()}
	codec := Int64Codec{}

	orthos := randInt64Orthos(r, 500, 1<<20)
	arena := NewArenaSorter(backend, "arena", codec, 256, 4096)

	var runs []string
	for _, o := range orthos {
		flushed, err := arena.Add(o)
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		runs = append(runs, flushed...)
	}
	last, err := arena.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if last != "" {
		runs = append(runs, last)
	}

	for _, path := range runs {
		ids := readLandingRun(t, backend, path)
		if got, want := sort.SliceIsSorted(ids, func(i, j int) bool { return ids[i] < ids[j] }), true; got != want {
			t.Fatalf("run %s not sorted: %v", path, ids)
		}
	}
}

// TestPropertyMergeDedupesCompletely checks that after ArenaSorter +
// MergeRuns, every id appears in the output run exactly once, regardless
// of how many times it appeared across input runs.
func TestPropertyMergeDedupesCompletely(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	backend := &LocalBackend{Basepath: t.TempDir()}
	codec := Int64Codec{}

	orthos := randInt64Orthos(r, 2000, 500) // heavy duplication: 500 ids over 2000 draws
	arena := NewArenaSorter(backend, "arena", codec, 1024, 4096)

	want := make(map[uint64]bool)
	var runs []string
	for _, o := range orthos {
		want[o.ID()] = true
		flushed, err := arena.Add(o)
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		runs = append(runs, flushed...)
	}
	last, err := arena.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if last != "" {
		runs = append(runs, last)
	}

	merged, err := MergeRuns(backend, codec, runs, "merge", 4, 4096, nil)
	if err != nil {
		t.Fatalf("merge runs: %v", err)
	}

	ids := readLandingRun(t, backend, merged)
	got := make(map[uint64]bool, len(ids))
	for i, id := range ids {
		if got[id] {
			t.Fatalf("id %d duplicated in merged output", id)
		}
		got[id] = true
		if i > 0 && ids[i-1] > id {
			t.Fatalf("merged output not sorted at index %d: %d > %d", i, ids[i-1], id)
		}
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merged id set mismatch (-want +got):\n%s", diff)
	}
}

// TestPropertyAntiJoinNeverReadmitsHistory checks that for any gen/history
// split of a random id set, AntiJoin's novel output never contains an id
// present in history, and that accepted == len(gen_run) (spec §4.5: the
// history delta records the whole generation observed, not just the
// novel subset).
func TestPropertyAntiJoinNeverReadmitsHistory(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	backend := &LocalBackend{Basepath: t.TempDir()}
	codec := Int64Codec{}

	all := randInt64Orthos(r, 300, 300)
	uniq := make(map[uint64]bool)
	for _, o := range all {
		uniq[o.ID()] = true
	}

	history := make(map[uint64]bool)
	for id := range uniq {
		if r.Intn(2) == 0 {
			history[id] = true
		}
	}

	genRun := writeSortedRun(t, backend, "gen.dat", sortedIDs(uniq))
	histRun := writeSortedRun(t, backend, "hist.dat", sortedIDs(history))

	result, err := AntiJoin(backend, codec, genRun, []string{histRun}, "antijoin", 4, 4096)
	if err != nil {
		t.Fatalf("anti join: %v", err)
	}

	novelIDs := readLandingRun(t, backend, result.NovelPath)
	for _, id := range novelIDs {
		if history[id] {
			t.Fatalf("novel output readmitted historical id %d", id)
		}
	}
	if got, want := result.Accepted, uint64(len(uniq)); got != want {
		t.Fatalf("accepted=%d, want len(gen_run)=%d", got, want)
	}
	if got, want := len(novelIDs), len(uniq)-len(history); got != want {
		t.Fatalf("novel count=%d, want %d", got, want)
	}

	historyDeltaIDs := readLandingRun(t, backend, result.HistoryRunPath)
	if got, want := len(historyDeltaIDs), len(uniq); got != want {
		t.Fatalf("history delta count=%d, want len(gen_run)=%d", got, want)
	}
}

func sortedIDs(m map[uint64]bool) []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TestPropertyBucketRoutingIsDeterministic checks that bucketOfID is a
// pure function of (id, buckets) — calling it twice for the same input
// never disagrees, across many random ids and bucket counts.
func TestPropertyBucketRoutingIsDeterministic(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	for trial := 0; trial < 200; trial++ {
		buckets := 1 << uint(r.Intn(8)) // 1..128
		id := r.Uint64()
		a := bucketOfID(id, buckets)
		b := bucketOfID(id, buckets)
		if a != b {
			t.Fatalf("bucketOfID(%d, %d) not stable: %d vs %d", id, buckets, a, b)
		}
		if a < 0 || a >= buckets {
			t.Fatalf("bucketOfID(%d, %d) = %d out of range", id, buckets, a)
		}
	}
}

// TestPropertyRunRoundTrips checks that any set of ids written through
// RunWriter and read back through RunReader comes back unchanged and in
// the order written (RunIO does no reordering; that's ArenaSorter/merge's
// job).
func TestPropertyRunRoundTrips(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	backend := &LocalBackend{Basepath: t.TempDir()}

	orthos := randInt64Orthos(r, 400, 1<<30)
	path := writeUnsortedRun(t, backend, "roundtrip.dat", orthos)

	got := readLandingRun(t, backend, path)
	want := make([]uint64, len(orthos))
	for i, o := range orthos {
		want[i] = o.ID()
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

// TestPropertyHistoryAcceptedCountIsMonotonic checks that
// SeenLenAccepted never decreases across a sequence of AppendRun calls,
// regardless of how many ids each append contributes.
func TestPropertyHistoryAcceptedCountIsMonotonic(t *testing.T) {
	r := rand.New(rand.NewSource(6))
	backend := &LocalBackend{Basepath: t.TempDir()}
	codec := Int64Codec{}
	hs := NewHistoryStore(backend, "history", 64)

	const bucket = 0
	prev := uint64(0)
	nextID := uint64(0)
	for round := 0; round < 20; round++ {
		n := r.Intn(10)
		ids := make([]uint64, n)
		for i := range ids {
			ids[i] = nextID
			nextID++
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		path := writeSortedRun(t, backend, fmt.Sprintf("round-%d.dat", round), ids)
		if err := hs.AppendRun(bucket, path, uint64(n), codec, 4, 4096); err != nil {
			t.Fatalf("append run: %v", err)
		}
		got := hs.SeenLenAccepted(bucket)
		if got < prev {
			t.Fatalf("seen_len_accepted decreased: %d -> %d", prev, got)
		}
		prev = got
	}
}
