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
	"github.com/dc0d/onexit"
	"github.com/docker/go-units"
)

// Role selects which RAM targets Compute uses: a Leader aims for higher
// utilization than a Follower, and only a Follower can be refused with a
// Resource error.
type Role int

const (
	RoleLeader Role = iota
	RoleFollower
)

// Settings mirrors storage/settings.go's SettingsT shape — a single
// struct of tunables — generalized from a SQL engine's settings to
// fold's generational engine. The package holds no Settings variable and
// nothing in it reads a Settings value; each field matches an argument a
// driver passes to Compute, NewGenerationStore, NewHistoryStore or
// NewHeartbeat, or the choice to wrap a backend in CompressingBackend.
type Settings struct {
	Role Role

	// TotalRAMBudget is the whole-host byte budget this job may dial
	// against; 0 means "ask SysMetrics for live total/available memory
	// instead". Accepts docker/go-units sizes when parsed from config
	// strings (see ParseSize).
	TotalRAMBudget int64

	Buckets int // must be a power of two (spec §3)

	CompactAt int // HistoryStore run-count compaction threshold

	HeartbeatInterval      int // seconds between heartbeat touches
	HeartbeatOrthoInterval int // touch after this many orthos regardless of elapsed time

	CompressRuns bool // wrap the chosen RunBackend in CompressingBackend
}

// DefaultSettings matches spec §9's supplemented defaults.
func DefaultSettings() Settings {
	return Settings{
		Role:                   RoleLeader,
		Buckets:                32,
		CompactAt:              64,
		HeartbeatInterval:      60,
		HeartbeatOrthoInterval: 100000,
	}
}

// ParseSize parses human-readable byte sizes ("512MiB", "4GB") the way
// operators write job config, via docker/go-units — the first real
// caller of that dependency in the teacher's go.mod.
func ParseSize(s string) (int64, error) {
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, ioErr("parse size "+s, err)
	}
	return n, nil
}

// FormatSize renders a byte count the way operators expect to read it
// back in logs, e.g. run_budget_bytes.
func FormatSize(n int64) string {
	return units.BytesSize(float64(n))
}

// InitSettings registers the process-exit flush hook, mirroring
// storage/settings.go's InitSettings/onexit.Register pairing: fold's
// equivalent of "close the trace file" is "flush every still-open
// LandingZone writer" so a clean shutdown never loses buffered appends
// that haven't hit a drain yet.
func InitSettings(flushers ...func() error) {
	for _, flush := range flushers {
		f := flush
		onexit.Register(func() {
			_ = f()
		})
	}
}
