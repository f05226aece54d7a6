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

import "runtime"

// Limiter is a counting semaphore bounding how many buckets may run their
// sort/merge/anti-join pipeline concurrently, adapted 1:1 from
// storage/limits.go's loadSemaphore — same prefill-then-drain shape, only
// renamed and parameterized on a caller-supplied slot count instead of
// hardcoding GOMAXPROCS.
type Limiter struct {
	slots chan struct{}
}

// NewLimiter creates a Limiter with n concurrent slots. n <= 0 defaults to
// runtime.NumCPU(), same fallback as loadSemaphore's init().
func NewLimiter(n int) *Limiter {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n < 1 {
		n = 1
	}
	l := &Limiter{slots: make(chan struct{}, n)}
	for i := 0; i < n; i++ {
		l.slots <- struct{}{}
	}
	return l
}

// Acquire blocks until a slot is free and returns a release func.
func (l *Limiter) Acquire() func() {
	<-l.slots
	return func() { l.slots <- struct{}{} }
}
