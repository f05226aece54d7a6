//go:build !ceph

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

// CephConfig mirrors the real type's fields so callers compile unchanged
// whether or not the ceph build tag is set.
type CephConfig struct {
	UserName    string
	ClusterName string
	ConfFile    string
	Pool        string
	Prefix      string
}

// NewCephBackend panics outside of ceph builds, mirroring
// storage/persistence-ceph-stub.go's stub registration: librados is a cgo
// dependency, so it's only linked in when explicitly requested.
func NewCephBackend(cfg CephConfig) RunBackend {
	invariant("ceph backend requires building with -tags ceph")
	return nil
}
