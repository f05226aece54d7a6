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
	"errors"
	"testing"
)

func TestComputeLeaderVsFollowerTargets(t *testing.T) {
	const totalRAM = 16 * 1024 * 1024 * 1024 // 16GiB

	leaderLow, err := Compute(RoleLeader, totalRAM, 0.10)
	if err != nil {
		t.Fatalf("leader compute: %v", err)
	}
	followerLow, err := Compute(RoleFollower, totalRAM, 0.10)
	if err != nil {
		t.Fatalf("follower compute: %v", err)
	}
	if leaderLow.RunBudgetBytes <= followerLow.RunBudgetBytes {
		t.Fatalf("expected leader budget > follower budget at low RSS, got leader=%d follower=%d",
			leaderLow.RunBudgetBytes, followerLow.RunBudgetBytes)
	}

	leaderHigh, err := Compute(RoleLeader, totalRAM, 0.90)
	if err != nil {
		t.Fatalf("leader high-rss compute: %v", err)
	}
	if leaderHigh.RunBudgetBytes >= leaderLow.RunBudgetBytes {
		t.Fatalf("expected leader to back off its budget at high RSS: low=%d high=%d",
			leaderLow.RunBudgetBytes, leaderHigh.RunBudgetBytes)
	}
}

func TestComputeFanInWithinBounds(t *testing.T) {
	cfg, err := Compute(RoleLeader, 16*1024*1024*1024, 0.10)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if cfg.FanIn < minFanIn || cfg.FanIn > maxFanIn {
		t.Fatalf("fan_in %d out of bounds [%d, %d]", cfg.FanIn, minFanIn, maxFanIn)
	}
	if cfg.ReadBufBytes < minReadBuf || cfg.ReadBufBytes > maxReadBuf {
		t.Fatalf("read_buf_bytes %d out of bounds", cfg.ReadBufBytes)
	}
}

func TestComputeFollowerBailsOnLowMemoryHighRSS(t *testing.T) {
	// A tiny total RAM drives run_budget_bytes well below the 128MiB
	// floor while global_rss_pct is reported above 70%.
	_, err := Compute(RoleFollower, 64*1024*1024, 0.80)
	if err == nil {
		t.Fatalf("expected a Resource error, got nil")
	}
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindResource {
		t.Fatalf("expected KindResource, got %v", err)
	}
}
