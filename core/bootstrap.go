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

import "encoding/binary"

// Int64Ortho is the bootstrap record type from spec §9: a raw u64 with
// identity as its id, used to exercise the generational engine end to end
// without wiring a real interner/spatial expander. It rides the same
// length-prefixed RunIO framing as production orthos (the fixed 8-byte
// payload makes the length prefix redundant but keeps one record format
// for every backend and test helper).
type Int64Ortho uint64

func (o Int64Ortho) ID() uint64 { return uint64(o) }

func (o Int64Ortho) Equal(other Ortho) bool {
	v, ok := other.(Int64Ortho)
	return ok && v == o
}

func (o Int64Ortho) Encode(dst []byte) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(o))
	return append(dst, buf...)
}

// Int64Codec decodes Int64Ortho payloads.
type Int64Codec struct{}

func (Int64Codec) Decode(payload []byte) (Ortho, error) {
	if len(payload) != 8 {
		return nil, corrupt("int64 ortho payload must be 8 bytes", nil)
	}
	return Int64Ortho(binary.LittleEndian.Uint64(payload)), nil
}

// Int64RangeExpander is a toy Expander for demos and tests: each value n
// expands to {2n+1, 2n+2}, a binary-tree-shaped frontier capped so the
// generational engine terminates instead of exploring forever.
type Int64RangeExpander struct {
	Max uint64
}

func (e Int64RangeExpander) Expand(o Ortho) []Ortho {
	n := uint64(o.(Int64Ortho))
	a, b := 2*n+1, 2*n+2
	var out []Ortho
	if e.Max == 0 || a <= e.Max {
		out = append(out, Int64Ortho(a))
	}
	if e.Max == 0 || b <= e.Max {
		out = append(out, Int64Ortho(b))
	}
	return out
}
