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
	"io"
	"os"
	"path/filepath"
	"time"
)

// LocalBackend stores job-directory files on the local filesystem,
// rooted at Basepath. This is the default backend and the only one that
// gives LandingZone's drain a true atomic rename (spec §4.2), grounded on
// storage/persistence-files.go's os.Rename-based schema.json rescue.
type LocalBackend struct {
	Basepath string
}

func (b *LocalBackend) full(path string) string {
	return filepath.Join(b.Basepath, path)
}

func (b *LocalBackend) Create(path string) (io.WriteCloser, error) {
	full := b.full(path)
	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return nil, ioErr("mkdir for create", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return nil, ioErr("create "+path, err)
	}
	return f, nil
}

func (b *LocalBackend) OpenAppend(path string) (io.WriteCloser, error) {
	full := b.full(path)
	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return nil, ioErr("mkdir for append", err)
	}
	f, err := os.OpenFile(full, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0750)
	if err != nil {
		return nil, ioErr("open append "+path, err)
	}
	return f, nil
}

func (b *LocalBackend) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(b.full(path))
	if err != nil {
		return nil, ioErr("open "+path, err)
	}
	return f, nil
}

func (b *LocalBackend) Rename(oldPath, newPath string) error {
	full := b.full(newPath)
	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return ioErr("mkdir for rename", err)
	}
	if err := os.Rename(b.full(oldPath), full); err != nil {
		return ioErr("rename "+oldPath+" -> "+newPath, err)
	}
	return nil
}

func (b *LocalBackend) Remove(path string) error {
	if err := os.Remove(b.full(path)); err != nil && !os.IsNotExist(err) {
		return ioErr("remove "+path, err)
	}
	return nil
}

func (b *LocalBackend) RemoveAll(prefix string) error {
	if err := os.RemoveAll(b.full(prefix)); err != nil {
		return ioErr("remove all "+prefix, err)
	}
	return nil
}

func (b *LocalBackend) List(prefix string) ([]string, error) {
	entries, err := os.ReadDir(b.full(prefix))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ioErr("list "+prefix, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (b *LocalBackend) MkdirAll(prefix string) error {
	if err := os.MkdirAll(b.full(prefix), 0750); err != nil {
		return ioErr("mkdir "+prefix, err)
	}
	return nil
}

func (b *LocalBackend) Stat(path string) (int64, bool, error) {
	fi, err := os.Stat(b.full(path))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, ioErr("stat "+path, err)
	}
	return fi.Size(), true, nil
}

func (b *LocalBackend) Touch(path string) error {
	full := b.full(path)
	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return ioErr("mkdir for touch", err)
	}
	now := time.Now()
	if err := os.Chtimes(full, now, now); err == nil {
		return nil
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return ioErr("touch "+path, err)
	}
	return f.Close()
}

func (b *LocalBackend) ModTime(path string) (int64, bool, error) {
	fi, err := os.Stat(b.full(path))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, ioErr("stat "+path, err)
	}
	return fi.ModTime().Unix(), true, nil
}
