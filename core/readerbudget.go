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

import "sync"

// ReaderBudget caps how many run files may be open for reading at once
// across the whole process, adapted from storage/cache.go's CacheManager:
// the same "track live handles, block new admissions past budget, release
// on close" shape, simplified from a byte/LRU budget to a plain counting
// budget since fan_in already bounds per-merge reader counts (spec §4.3) —
// this guards the case where multiple buckets merge concurrently and
// their fan-ins sum past what the process' file descriptor limit allows.
type ReaderBudget struct {
	mu      sync.Mutex
	cond    *sync.Cond
	budget  int
	inUse   int
}

func NewReaderBudget(budget int) *ReaderBudget {
	if budget < 1 {
		budget = 1
	}
	rb := &ReaderBudget{budget: budget}
	rb.cond = sync.NewCond(&rb.mu)
	return rb
}

// Acquire blocks until a reader slot is available.
func (rb *ReaderBudget) Acquire() {
	rb.mu.Lock()
	for rb.inUse >= rb.budget {
		rb.cond.Wait()
	}
	rb.inUse++
	rb.mu.Unlock()
}

// Release returns a reader slot, waking one blocked Acquire if any.
func (rb *ReaderBudget) Release() {
	rb.mu.Lock()
	rb.inUse--
	rb.cond.Signal()
	rb.mu.Unlock()
}

// InUse reports the current number of outstanding reader slots (test/
// diagnostics hook).
func (rb *ReaderBudget) InUse() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.inUse
}
