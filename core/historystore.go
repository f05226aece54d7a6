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
	"os"

	nonlocking "github.com/launix-de/NonLockingReadMap"
)

// bucketHistory is one bucket's immutable snapshot: the ordered list of
// UniqueRun paths plus seen_len_accepted. HistoryStore never mutates a
// bucketHistory in place; on_generation_end builds a new one and swaps it
// in, matching NonLockingReadMap's "read often, write rarely" contract
// (history is read on every AntiJoin, written once per generation).
type bucketHistory struct {
	bucket  int
	runs    []string
	seenLen uint64
}

func (h *bucketHistory) GetKey() int { return h.bucket }

func (h *bucketHistory) ComputeSize() uint {
	sz := uint(16 + 8*len(h.runs))
	for _, r := range h.runs {
		sz += uint(len(r))
	}
	return sz
}

// HistoryStore holds, per bucket, the ordered list of immutable UniqueRuns
// already accepted into the frontier plus a monotonic seen_len_accepted
// counter (spec §3's HistoryStore invariants). Grounded on memcp's use of
// NonLockingReadMap for exactly this "read on the hot path, replace
// wholesale on write" shape (third_party/NonLockingReadMap).
type HistoryStore struct {
	backend  RunBackend
	dir      string
	m        nonlocking.NonLockingReadMap[bucketHistory, int]
	compactAt int
}

// NewHistoryStore creates an empty store. compactAt is the run-count
// threshold at which AppendRun opportunistically compacts a bucket's
// history into one run (spec §9's supplemented default is 64 when 0 is
// passed).
func NewHistoryStore(backend RunBackend, dir string, compactAt int) *HistoryStore {
	if compactAt <= 0 {
		compactAt = 64
	}
	return &HistoryStore{backend: backend, dir: dir, m: nonlocking.New[bucketHistory, int](), compactAt: compactAt}
}

// Runs returns bucket b's current ordered run paths, oldest first. The
// returned slice is an immutable snapshot safe to read without locking.
func (hs *HistoryStore) Runs(b int) []string {
	h := hs.m.Get(b)
	if h == nil {
		return nil
	}
	return h.runs
}

// SeenLenAccepted returns bucket b's monotonic accepted-count.
func (hs *HistoryStore) SeenLenAccepted(b int) uint64 {
	h := hs.m.Get(b)
	if h == nil {
		return 0
	}
	return h.seenLen
}

// AppendRun adds a new UniqueRun (at path, holding accepted orthos) to
// bucket b's history, bumping seen_len_accepted by accepted. If the bucket now holds
// more than compactAt runs it is opportunistically compacted into one
// (spec §5's HistoryStore compaction, applied here via a merge-runs pass
// — compaction never changes seen_len_accepted, only the run count).
func (hs *HistoryStore) AppendRun(b int, path string, accepted uint64, codec Codec, fanIn, bufSize int) error {
restart:
	old := hs.m.Get(b)
	var prevRuns []string
	var prevSeen uint64
	if old != nil {
		prevRuns = old.runs
		prevSeen = old.seenLen
	}
	next := &bucketHistory{
		bucket:  b,
		runs:    append(append([]string{}, prevRuns...), path),
		seenLen: prevSeen + accepted,
	}
	prior := hs.m.Set(next)
	if old != nil && prior != old {
		// lost a race with a concurrent AppendRun on the same bucket;
		// bucket fan-out is per-bucket single-writer in practice (spec
		// §4.9's GenerationStore owns one goroutine per bucket), so this
		// only defends against a misuse of the API, not expected traffic.
		goto restart
	}

	if len(next.runs) > hs.compactAt {
		return hs.compact(b, codec, fanIn, bufSize)
	}
	return nil
}

func (hs *HistoryStore) compact(b int, codec Codec, fanIn, bufSize int) error {
	h := hs.m.Get(b)
	if h == nil || len(h.runs) <= 1 {
		return nil
	}
	fmt.Fprintf(os.Stderr, "fold: historystore: compacting %d runs in bucket %d\n", len(h.runs), b)
	// a fresh directory per compaction, so the merged output never
	// overwrites an earlier compaction's run that is one of its inputs
	outDir := fmt.Sprintf("%s/bucket-%d/compacted-%s", hs.dir, b, NewJobID())
	merged, err := MergeRuns(hs.backend, codec, h.runs, outDir, fanIn, bufSize, nil)
	if err != nil {
		return err
	}
	stale := h.runs
	next := &bucketHistory{bucket: b, runs: []string{merged}, seenLen: h.seenLen}
	hs.m.Set(next)
	for _, r := range stale {
		if r != merged {
			hs.backend.Remove(r)
		}
	}
	return nil
}

// Buckets returns every bucket index with a non-empty history.
func (hs *HistoryStore) Buckets() []int {
	all := hs.m.GetAll()
	out := make([]int, 0, len(all))
	for _, h := range all {
		out = append(out, (*h).bucket)
	}
	return out
}
