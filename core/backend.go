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

// RunBackend abstracts where a job directory's ephemeral files physically
// live. Generalized from memcp's per-database PersistenceEngine
// (storage/persistence.go) to per-job-directory scratch space: most jobs
// use the Local backend, but workers without local disk can point a job
// directory at an S3 bucket or Ceph pool instead. None of this weakens
// spec §1's "no durable storage of intermediate runs" Non-goal — whatever
// backend is chosen, files are still deleted on recovery/completion.
type RunBackend interface {
	// Create opens path for writing, truncating any existing content.
	Create(path string) (io.WriteCloser, error)
	// OpenAppend opens path for appending, creating it if absent.
	OpenAppend(path string) (io.WriteCloser, error)
	// Open opens path for reading. Returns a KindIo error if absent.
	Open(path string) (io.ReadCloser, error)
	// Rename atomically moves oldPath to newPath (used by LandingZone's
	// drain hand-off). Backends that cannot rename atomically must still
	// guarantee no reader observes a partial file at newPath.
	Rename(oldPath, newPath string) error
	// Remove deletes path. Missing paths are not an error.
	Remove(path string) error
	// RemoveAll recursively deletes everything under prefix.
	RemoveAll(prefix string) error
	// List returns the base names of entries directly under prefix.
	List(prefix string) ([]string, error)
	// MkdirAll ensures prefix exists as an addressable directory. For
	// object-store backends this is a no-op (object stores have no
	// directories); it exists so callers don't need backend-specific
	// branches.
	MkdirAll(prefix string) error
	// Stat reports whether path exists and, if so, its size.
	Stat(path string) (size int64, ok bool, err error)
	// Touch creates path if absent, or updates its modification marker if
	// present. Used for the heartbeat file.
	Touch(path string) error
	// ModTime returns path's last-modified time as a Unix timestamp
	// (seconds); ok is false if path does not exist.
	ModTime(path string) (unixSeconds int64, ok bool, err error)
}
