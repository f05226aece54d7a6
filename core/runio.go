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
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// frame: little-endian u32 length, then that many payload bytes. No
// trailing delimiter (spec §6). Bootstrap/integer mode uses a fixed
// 8-byte payload instead (see Int64Codec in bootstrap.go), which
// still rides the same length-prefixed frame.
const lengthPrefixSize = 4

// RunWriter appends length-prefixed records to a buffered sink.
type RunWriter struct {
	w   *bufio.Writer
	buf [lengthPrefixSize]byte
}

// NewRunWriter wraps w with a buffer of at least bufSize bytes, per
// spec §4.1's "writes use a buffered writer of at least read_buf_bytes".
func NewRunWriter(w io.Writer, bufSize int) *RunWriter {
	if bufSize < 4096 {
		bufSize = 4096
	}
	return &RunWriter{w: bufio.NewWriterSize(w, bufSize)}
}

// WriteRecord appends a length-prefixed encoding of o and returns the
// number of bytes written (prefix + payload).
func (rw *RunWriter) WriteRecord(o Ortho) (int, error) {
	payload := o.Encode(nil)
	binary.LittleEndian.PutUint32(rw.buf[:], uint32(len(payload)))
	if _, err := rw.w.Write(rw.buf[:]); err != nil {
		return 0, ioErr("write length prefix", err)
	}
	if _, err := rw.w.Write(payload); err != nil {
		return 0, ioErr("write payload", err)
	}
	return lengthPrefixSize + len(payload), nil
}

// WriteRaw appends an already-framed record's payload verbatim — used by
// AntiJoin to copy gen_run records unchanged into the new history run
// without a decode/re-encode round trip.
func (rw *RunWriter) WriteRaw(payload []byte) (int, error) {
	binary.LittleEndian.PutUint32(rw.buf[:], uint32(len(payload)))
	if _, err := rw.w.Write(rw.buf[:]); err != nil {
		return 0, ioErr("write length prefix", err)
	}
	if _, err := rw.w.Write(payload); err != nil {
		return 0, ioErr("write payload", err)
	}
	return lengthPrefixSize + len(payload), nil
}

// Flush flushes the underlying buffer.
func (rw *RunWriter) Flush() error {
	if err := rw.w.Flush(); err != nil {
		return ioErr("flush", err)
	}
	return nil
}

// Record is a decoded ortho plus its original framed payload bytes
// (needed by ArenaSorter, MergeRuns and AntiJoin to re-emit records
// without re-encoding).
type Record struct {
	Ortho   Ortho
	Payload []byte
}

// RunReader decodes a finite, non-restartable sequence of records from a
// buffered source.
type RunReader struct {
	r     *bufio.Reader
	codec Codec
	err   error
}

// NewRunReader wraps r with a buffer matching the writer's, per spec
// §4.1's "readers use a matching buffer".
func NewRunReader(r io.Reader, bufSize int, codec Codec) *RunReader {
	if bufSize < 4096 {
		bufSize = 4096
	}
	return &RunReader{r: bufio.NewReaderSize(r, bufSize), codec: codec}
}

// Next reads the next record, or (nil, io.EOF) at a clean end of stream.
// A truncated tail (partial length prefix or short payload) is reported
// as a *Error with KindCorrupt, never silently truncated (spec §4.1).
func (rr *RunReader) Next() (*Record, error) {
	if rr.err != nil {
		return nil, rr.err
	}
	var lenBuf [lengthPrefixSize]byte
	n, err := io.ReadFull(rr.r, lenBuf[:])
	if err == io.EOF && n == 0 {
		rr.err = io.EOF
		return nil, io.EOF
	}
	if err != nil {
		rr.err = corrupt("truncated length prefix", err)
		return nil, rr.err
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(rr.r, payload); err != nil {
		rr.err = corrupt("truncated record payload", err)
		return nil, rr.err
	}
	o, err := rr.codec.Decode(payload)
	if err != nil {
		rr.err = corrupt("decode record", err)
		return nil, rr.err
	}
	return &Record{Ortho: o, Payload: payload}, nil
}

// ReadAll drains the reader into a slice. Used by WorkQueue.PopSegment,
// by GenerationStore to read a bucket's novel run, and by small test
// fixtures; merge paths stream via Next instead to keep memory bounded.
func ReadAll(rr *RunReader) ([]*Record, error) {
	var out []*Record
	for {
		rec, err := rr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// IsCorrupt reports whether err is a KindCorrupt *Error.
func IsCorrupt(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindCorrupt
	}
	return false
}
