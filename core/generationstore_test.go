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

// runOneGeneration pops every bucket's work, expands it, records results,
// and runs on_generation_end — the minimal driver loop spec §2's data
// flow diagram describes.
func runOneGeneration(t *testing.T, gs *GenerationStore, buckets int, expander Expander) map[int]uint64 {
	t.Helper()
	for b := 0; b < buckets; b++ {
		for {
			orthos, ok, err := gs.PopWork(b)
			if err != nil {
				t.Fatalf("pop work bucket %d: %v", b, err)
			}
			if !ok {
				break
			}
			for _, o := range orthos {
				for _, child := range expander.Expand(o) {
					if err := gs.RecordResult(child); err != nil {
						t.Fatalf("record result: %v", err)
					}
				}
			}
		}
	}
	accepted, err := gs.OnGenerationEnd()
	if err != nil {
		t.Fatalf("on generation end: %v", err)
	}
	return accepted
}

func TestGenerationStoreEndToEnd(t *testing.T) {
	backend := &LocalBackend{Basepath: t.TempDir()}
	cfg := Config{RunBudgetBytes: 4096, ReadBufBytes: 4096, FanIn: 8}
	const buckets = 4
	gs, err := NewGenerationStore(backend, "job", Int64Codec{}, buckets, cfg)
	if err != nil {
		t.Fatalf("new generation store: %v", err)
	}

	seed := Int64Ortho(0)
	if _, err := gs.SeedWork(bucketOfID(seed.ID(), buckets), []Ortho{seed}); err != nil {
		t.Fatalf("seed work: %v", err)
	}

	expander := Int64RangeExpander{Max: 63}

	totalAccepted := uint64(0)
	for gen := 0; gen < 3; gen++ {
		accepted := runOneGeneration(t, gs, buckets, expander)
		for _, a := range accepted {
			totalAccepted += a
		}
	}

	if totalAccepted == 0 {
		t.Fatalf("expected some orthos to be accepted into history across generations")
	}

	seen := make(map[uint64]bool)
	for b := 0; b < buckets; b++ {
		for _, path := range gs.HistoryIter(b) {
			ids := readLandingRun(t, backend, path)
			for _, id := range ids {
				if seen[id] {
					t.Fatalf("id %d appears in history more than once across buckets", id)
				}
				seen[id] = true
				if bucketOfID(id, buckets) != b {
					t.Fatalf("id %d stored in history bucket %d, but routes to bucket %d", id, b, bucketOfID(id, buckets))
				}
			}
		}
	}
}
