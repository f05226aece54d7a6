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
)

// ArenaSorter fills an in-memory arena up to ByteBudget, sorts it by id,
// and flushes it as one sorted Run. Grounded on storage/shard.go's
// rebuild cycle: accumulate into a delta buffer, then rebuild into a
// single compact structure, except here "rebuild" means sort-and-flush
// rather than column re-encode, and the arena is reset rather than
// chained as a new delta layer.
type ArenaSorter struct {
	backend RunBackend
	dir     string
	codec   Codec
	byteBudget int
	bufSize    int

	arena     []*Record
	arenaSize int
	seq       int
}

func NewArenaSorter(backend RunBackend, dir string, codec Codec, byteBudget, bufSize int) *ArenaSorter {
	return &ArenaSorter{backend: backend, dir: dir, codec: codec, byteBudget: byteBudget, bufSize: bufSize}
}

// Add buffers o for the current run. Flushes automatically once the
// arena's encoded size reaches byteBudget (spec §4.3's run_budget_bytes).
func (a *ArenaSorter) Add(o Ortho) ([]string, error) {
	payload := o.Encode(nil)
	a.arena = append(a.arena, &Record{Ortho: o, Payload: payload})
	a.arenaSize += lengthPrefixSize + len(payload)
	if a.arenaSize >= a.byteBudget {
		path, err := a.flush()
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}
	return nil, nil
}

// flush sorts the arena by id and writes it as one immutable run,
// clearing the arena for the next fill cycle.
func (a *ArenaSorter) flush() (string, error) {
	if len(a.arena) == 0 {
		return "", nil
	}
	sort.Slice(a.arena, func(i, j int) bool {
		return a.arena[i].Ortho.ID() < a.arena[j].Ortho.ID()
	})
	if err := a.backend.MkdirAll(a.dir); err != nil {
		return "", err
	}
	a.seq++
	path := fmt.Sprintf("%s/run-%08d.dat", a.dir, a.seq)
	w, err := a.backend.Create(path)
	if err != nil {
		return "", err
	}
	rw := NewRunWriter(w, a.bufSize)
	for _, rec := range a.arena {
		if _, err := rw.WriteRaw(rec.Payload); err != nil {
			w.Close()
			return "", err
		}
	}
	if err := rw.Flush(); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", ioErr("close run "+path, err)
	}
	a.arena = a.arena[:0]
	a.arenaSize = 0
	return path, nil
}

// Finish flushes any partially-filled arena and returns its path (empty
// string, no error if the arena was empty — callers should only append
// non-empty paths to their run list).
func (a *ArenaSorter) Finish() (string, error) {
	return a.flush()
}
