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
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchJobRoots watches the local filesystem paths in jobRoots for
// heartbeat writes, calling onTouch(dir) whenever HEARTBEAT is created,
// written, or has its times updated (LocalBackend.Touch refreshes an
// existing heartbeat with Chtimes) inside one of them. Events for other
// files are ignored. This only works against LocalBackend-rooted paths
// (fsnotify watches real inodes); backends without a local filesystem
// rely on RecoverStaleJobs' periodic poll instead. Returned func stops
// the watch and releases the fsnotify handle.
func WatchJobRoots(jobRoots []string, onTouch func(dir string)) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ioErr("create fsnotify watcher", err)
	}
	for _, dir := range jobRoots {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, ioErr("watch "+dir, err)
		}
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod) != 0 && filepath.Base(ev.Name) == heartbeatName {
					onTouch(filepath.Dir(ev.Name))
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return func() error {
		close(done)
		return watcher.Close()
	}, nil
}
