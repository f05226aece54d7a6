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
	"io"
	"os"
	"sync"

	"github.com/jtolds/gls"
)

// GenerationStore is the orchestrator from spec §4.9: owns every
// bucket's LandingZone, WorkQueue and slice of the shared HistoryStore,
// and drives record_result / pop_work / on_generation_end. Concurrency
// pattern and fan-out shape are grounded on storage/partition.go's
// per-shard callback dispatch: one goroutine per bucket, with a Limiter
// of runtime.NumCPU() slots bounding how many of them run at once.
type GenerationStore struct {
	backend RunBackend
	jobDir  string
	codec   Codec
	buckets int
	cfg     Config

	history *HistoryStore
	limiter *Limiter

	mu       sync.Mutex
	gen      int
	lz       map[int]*LandingZone // bucket -> current generation's landing zone
	wqCur    map[int]*WorkQueue   // bucket -> current generation's pop_work source
	wqNext   map[int]*WorkQueue   // bucket -> next generation's work, filled during on_generation_end
}

// NewGenerationStore creates the store for a fresh job directory.
// buckets must be a power of two (spec §3); violating that is an
// Invariant, not a returned error, since it can only come from a caller
// bug, never external input.
func NewGenerationStore(backend RunBackend, jobDir string, codec Codec, buckets int, cfg Config) (*GenerationStore, error) {
	if buckets <= 0 || buckets&(buckets-1) != 0 {
		invariant(fmt.Sprintf("bucket count %d is not a power of two", buckets))
	}
	gs := &GenerationStore{
		backend: backend,
		jobDir:  jobDir,
		codec:   codec,
		buckets: buckets,
		cfg:     cfg,
		history: NewHistoryStore(backend, jobDir+"/history", 0),
		limiter: NewLimiter(0),
		lz:      make(map[int]*LandingZone),
		wqCur:   make(map[int]*WorkQueue),
		wqNext:  make(map[int]*WorkQueue),
	}
	for b := 0; b < buckets; b++ {
		lz, err := NewLandingZone(backend, fmt.Sprintf("%s/gen-%d/bucket-%d/landing", jobDir, gs.gen, b), int(cfg.ReadBufBytes))
		if err != nil {
			return nil, err
		}
		// Generation 0 has no predecessor to populate its work queue from
		// (bootstrap's initial frontier is seeded by the caller directly,
		// see SeedWork), so wqCur starts out genuinely empty here.
		wq, err := NewWorkQueue(backend, fmt.Sprintf("%s/gen-%d/bucket-%d/work", jobDir, gs.gen, b), int(cfg.ReadBufBytes))
		if err != nil {
			return nil, err
		}
		gs.lz[b] = lz
		gs.wqCur[b] = wq
	}
	return gs, nil
}

// SeedWork pushes the initial frontier (generation 0's work) into bucket
// b's current work queue — used once, before the first PopWork, to
// bootstrap a job from whatever starting orthos the driver supplies.
func (gs *GenerationStore) SeedWork(b int, orthos []Ortho) (string, error) {
	gs.mu.Lock()
	wq := gs.wqCur[b]
	gs.mu.Unlock()
	return wq.PushSegment(orthos)
}

func bucketOfID(id uint64, buckets int) int {
	return int(id & uint64(buckets-1))
}

// RecordResult appends a freshly-expanded ortho to its bucket's landing
// zone (spec §4.9's record_result).
func (gs *GenerationStore) RecordResult(o Ortho) error {
	b := bucketOfID(o.ID(), gs.buckets)
	gs.mu.Lock()
	lz := gs.lz[b]
	gs.mu.Unlock()
	return lz.Append(o)
}

// PopWork pulls the next unordered segment of orthos from bucket b's
// current-generation work queue (spec §4.9's pop_work). ok is false once
// the bucket's queue is drained.
func (gs *GenerationStore) PopWork(b int) ([]Ortho, bool, error) {
	gs.mu.Lock()
	wq := gs.wqCur[b]
	gs.mu.Unlock()
	return wq.PopSegment(gs.codec)
}

// WorkLen reports bucket b's remaining segment count (spec §4.9's
// work_len).
func (gs *GenerationStore) WorkLen(b int) int {
	gs.mu.Lock()
	wq := gs.wqCur[b]
	gs.mu.Unlock()
	return wq.Len()
}

// bucketGenerationResult is what one bucket's end-of-generation pipeline
// produces, collected back on the orchestrating goroutine. accepted here
// is the novel count pushed to the next generation's WorkQueue, not
// HistoryStore's seen_len_accepted delta (which is always len(gen_run),
// see runBucketGeneration).
type bucketGenerationResult struct {
	bucket   int
	accepted uint64
	err      error
}

// OnGenerationEnd drains every bucket's landing zone, runs
// ArenaSorter -> KWayMerger -> AntiJoin, appends novel orthos to
// bucket b's next-generation WorkQueue, records the whole generation's
// unique run into bucket b's history regardless of novelty, and advances
// gen. Buckets are processed in parallel (spec §8's concurrency pattern:
// "buckets are independent"), one goroutine per bucket, gated by a
// global Limiter with runtime.NumCPU() slots. The Limiter bounds how many
// buckets run at once; it does not bound their combined arena and
// read-buffer RAM. The returned map is per-bucket novel
// counts (spec §4.8: "count of novel orthos"), used by the driver to
// decide when to stop — it is not HistoryStore's seen_len_accepted.
func (gs *GenerationStore) OnGenerationEnd() (map[int]uint64, error) {
	gs.mu.Lock()
	gen := gs.gen
	buckets := gs.buckets
	gs.mu.Unlock()

	results := make([]bucketGenerationResult, buckets)
	var wg sync.WaitGroup
	wg.Add(buckets)
	for b := 0; b < buckets; b++ {
		gls.Go(func(b int) func() {
			return func() {
				defer wg.Done()
				release := gs.limiter.Acquire()
				defer release()
				accepted, err := gs.runBucketGeneration(gen, b)
				results[b] = bucketGenerationResult{bucket: b, accepted: accepted, err: err}
			}
		}(b))
	}
	wg.Wait()

	accepted := make(map[int]uint64, buckets)
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		accepted[r.bucket] = r.accepted
	}

	gs.mu.Lock()
	gs.gen++
	newGen := gs.gen
	gs.lz = make(map[int]*LandingZone)
	// wqNext (filled by runBucketGeneration just now, for generation
	// newGen) becomes the pop_work source for the generation that's
	// starting; wqNext itself resets so the *next* on_generation_end pass
	// has a clean map to populate for newGen+1.
	gs.wqCur = gs.wqNext
	gs.wqNext = make(map[int]*WorkQueue)
	gs.mu.Unlock()

	for b := 0; b < buckets; b++ {
		lz, err := NewLandingZone(gs.backend, fmt.Sprintf("%s/gen-%d/bucket-%d/landing", gs.jobDir, newGen, b), int(gs.cfg.ReadBufBytes))
		if err != nil {
			return nil, err
		}
		gs.mu.Lock()
		gs.lz[b] = lz
		if gs.wqCur[b] == nil {
			// bucket produced nothing novel this generation; give it an
			// empty queue so PopWork/WorkLen never see a nil map entry.
			wq, werr := NewWorkQueue(gs.backend, fmt.Sprintf("%s/gen-%d/bucket-%d/work", gs.jobDir, newGen, b), int(gs.cfg.ReadBufBytes))
			if werr == nil {
				gs.wqCur[b] = wq
			} else {
				err = werr
			}
		}
		gs.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}

	return accepted, nil
}

// runBucketGeneration does the per-bucket body of OnGenerationEnd: drain,
// sort, merge, anti-join, and push novel orthos as next-generation work.
func (gs *GenerationStore) runBucketGeneration(gen, b int) (uint64, error) {
	gs.mu.Lock()
	lz := gs.lz[b]
	gs.mu.Unlock()

	if err := lz.Flush(); err != nil {
		return 0, err
	}
	drainPath, drained, err := lz.Drain()
	if err != nil {
		return 0, err
	}
	if !drained {
		return 0, nil
	}

	bucketDir := fmt.Sprintf("%s/gen-%d/bucket-%d", gs.jobDir, gen, b)
	arenaDir := bucketDir + "/arena"
	arena := NewArenaSorter(gs.backend, arenaDir, gs.codec, int(gs.cfg.RunBudgetBytes), int(gs.cfg.ReadBufBytes))

	r, err := gs.backend.Open(drainPath)
	if err != nil {
		return 0, err
	}
	reader := NewRunReader(r, int(gs.cfg.ReadBufBytes), gs.codec)
	var runs []string
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if IsCorrupt(err) {
				// landing is ephemeral: the first unreadable record ends the
				// drained stream and is only logged, never fatal.
				fmt.Fprintf(os.Stderr, "fold: generationstore: truncated/corrupt tail in bucket %d drain %s, treating as end of stream: %v\n", b, drainPath, err)
				break
			}
			r.Close()
			return 0, err
		}
		flushed, err := arena.Add(rec.Ortho)
		if err != nil {
			r.Close()
			return 0, err
		}
		runs = append(runs, flushed...)
	}
	r.Close()
	if last, err := arena.Finish(); err != nil {
		return 0, err
	} else if last != "" {
		runs = append(runs, last)
	}

	if len(runs) == 0 {
		return 0, nil
	}

	mergeDir := bucketDir + "/merge"
	uniquePath, err := MergeRuns(gs.backend, gs.codec, runs, mergeDir, gs.cfg.FanIn, int(gs.cfg.ReadBufBytes), func(id uint64) {
		fmt.Fprintf(os.Stderr, "fold: generationstore: id collision in bucket %d at generation %d: id=%d\n", b, gen, id)
	})
	if err != nil {
		return 0, err
	}

	antiJoinDir := bucketDir + "/antijoin"
	result, err := AntiJoin(gs.backend, gs.codec, uniquePath, gs.history.Runs(b), antiJoinDir, gs.cfg.FanIn, int(gs.cfg.ReadBufBytes))
	if err != nil {
		return 0, err
	}

	// AppendRun always runs, independent of novelty: history records what
	// the generation observed (result.Accepted == len(gen_run)), not just
	// the novel subset (spec §4.5). Only the push onto the next
	// generation's work queue is gated on there being anything novel.
	if err := gs.history.AppendRun(b, result.HistoryRunPath, result.Accepted, gs.codec, gs.cfg.FanIn, int(gs.cfg.ReadBufBytes)); err != nil {
		return 0, err
	}

	novelR, err := gs.backend.Open(result.NovelPath)
	if err != nil {
		return 0, err
	}
	novelRecs, err := ReadAll(NewRunReader(novelR, int(gs.cfg.ReadBufBytes), gs.codec))
	novelR.Close()
	if err != nil {
		return 0, err
	}

	var novelCount uint64
	if len(novelRecs) > 0 {
		orthos := make([]Ortho, len(novelRecs))
		for i, rec := range novelRecs {
			orthos[i] = rec.Ortho
		}

		gs.mu.Lock()
		wq := gs.wqNext[b]
		gs.mu.Unlock()
		if wq == nil {
			nextDir := fmt.Sprintf("%s/gen-%d/bucket-%d/work", gs.jobDir, gen+1, b)
			wq, err = NewWorkQueue(gs.backend, nextDir, int(gs.cfg.ReadBufBytes))
			if err != nil {
				return 0, err
			}
			gs.mu.Lock()
			gs.wqNext[b] = wq
			gs.mu.Unlock()
		}
		if _, err := wq.PushSegment(orthos); err != nil {
			return 0, err
		}
		novelCount = uint64(len(orthos))
	}

	return novelCount, nil
}

// Generation returns the current generation number.
func (gs *GenerationStore) Generation() int {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.gen
}

// HistoryIter returns bucket b's ordered history run paths, the
// read-only surface spec §4.9 calls history_iter.
func (gs *GenerationStore) HistoryIter(b int) []string {
	return gs.history.Runs(b)
}
