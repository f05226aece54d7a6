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

import "io"

// AntiJoinResult summarizes one bucket's anti-join for a generation:
// NovelPath holds the orthos not yet in history (next generation's work),
// HistoryRunPath holds the entire gen_run unchanged (novel and
// already-seen alike — history records what the generation observed,
// not just the novel subset), and Accepted is len(gen_run), the
// seen_len_accepted delta (spec §3/§4.5).
type AntiJoinResult struct {
	NovelPath      string
	HistoryRunPath string
	Accepted       uint64
}

// AntiJoin streams genRunPath (a generation's UniqueRun) against the
// already-merged history runs for the same bucket, emitting every id not
// present in history to novelPath (next-gen work) and every gen_run
// record, novel or not, to historyRunPath (to be handed to
// HistoryStore.AppendRun). Both inputs
// must already be sorted ascending by id; historyRuns is merged as part
// of this call via MergeRuns when there's more than one, mirroring spec
// §4.5's "streaming merge of the generation's unique run against the
// bucket's history runs" — a genuinely two-cursor merge only once history
// itself is a single sorted stream.
func AntiJoin(backend RunBackend, codec Codec, genRunPath string, historyRuns []string, outDir string, fanIn, bufSize int) (*AntiJoinResult, error) {
	historyPath := ""
	if len(historyRuns) == 1 {
		historyPath = historyRuns[0]
	} else if len(historyRuns) > 1 {
		merged, err := MergeRuns(backend, codec, historyRuns, outDir+"/history-merge", fanIn, bufSize, nil)
		if err != nil {
			return nil, err
		}
		historyPath = merged
	}

	genR, err := backend.Open(genRunPath)
	if err != nil {
		return nil, err
	}
	defer genR.Close()
	genReader := NewRunReader(genR, bufSize, codec)

	var histReader *RunReader
	var histR io.ReadCloser
	if historyPath != "" {
		histR, err = backend.Open(historyPath)
		if err != nil {
			return nil, err
		}
		defer histR.Close()
		histReader = NewRunReader(histR, bufSize, codec)
	}

	if err := backend.MkdirAll(outDir); err != nil {
		return nil, err
	}
	novelPath := outDir + "/novel.dat"
	histOutPath := outDir + "/history-delta.dat"
	novelW, err := backend.Create(novelPath)
	if err != nil {
		return nil, err
	}
	defer novelW.Close()
	histOutW, err := backend.Create(histOutPath)
	if err != nil {
		return nil, err
	}
	defer histOutW.Close()
	novelRW := NewRunWriter(novelW, bufSize)
	histOutRW := NewRunWriter(histOutW, bufSize)

	var histHead *Record
	var histDone bool
	advanceHist := func() error {
		if histReader == nil {
			histDone = true
			return nil
		}
		rec, err := histReader.Next()
		if err == io.EOF {
			histHead = nil
			histDone = true
			return nil
		}
		if err != nil {
			return err
		}
		histHead = rec
		return nil
	}
	if err := advanceHist(); err != nil {
		return nil, err
	}

	var accepted uint64
	for {
		genRec, err := genReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		// advance history cursor past anything strictly less than genRec
		for !histDone && histHead.Ortho.ID() < genRec.Ortho.ID() {
			if err := advanceHist(); err != nil {
				return nil, err
			}
		}
		inHistory := !histDone && histHead.Ortho.ID() == genRec.Ortho.ID()
		// The history-delta file always gets the full gen_run, novel or
		// not: history semantics record what the generation observed,
		// not just the novel subset (spec §4.5). Only the novel stream
		// is filtered.
		if _, err := histOutRW.WriteRaw(genRec.Payload); err != nil {
			return nil, err
		}
		accepted++
		if inHistory {
			continue
		}
		if _, err := novelRW.WriteRaw(genRec.Payload); err != nil {
			return nil, err
		}
	}

	if err := novelRW.Flush(); err != nil {
		return nil, err
	}
	if err := histOutRW.Flush(); err != nil {
		return nil, err
	}

	return &AntiJoinResult{NovelPath: novelPath, HistoryRunPath: histOutPath, Accepted: accepted}, nil
}
