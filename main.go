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
/*
	fold is a generational frontier engine: it expands a seed ortho through
	a bounded-memory, disk-spilling pipeline (sort, merge, anti-join
	against history) until no generation produces anything novel.

	This binary wires the bootstrap Int64Ortho/Int64RangeExpander pair
	into a GenerationStore and drives it to completion against a local
	job directory, printing one line per generation. Real deployments
	plug in their own Ortho/Codec/Expander (spatial, vocabulary-backed
	orthos) in place of the bootstrap types; the engine underneath is
	identical.
*/
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/launix-de/fold/core"
)

func main() {
	fmt.Print(`fold Copyright (C) 2026   Carl-Philip Hänsch
    This program comes with ABSOLUTELY NO WARRANTY;
    This is free software, and you are welcome to redistribute it
    under certain conditions;
`)

	jobDir := flag.String("job-dir", "fold-job", "local directory to spill runs, work and history into")
	buckets := flag.Int("buckets", 8, "number of id-routing buckets, must be a power of two")
	seed := flag.Uint64("seed", 0, "seed ortho value to expand from")
	maxValue := flag.Uint64("max", 1<<20, "cap on expanded values, so the demo frontier terminates")
	role := flag.String("role", "leader", "leader or follower, governs the RAM dial (see core.Compute)")
	flag.Parse()

	roleVal := core.RoleLeader
	if *role == "follower" {
		roleVal = core.RoleFollower
	}
	cfg, err := core.ComputeLive(roleVal)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	fmt.Printf("run_budget=%s read_buf=%s fan_in=%d\n",
		core.FormatSize(cfg.RunBudgetBytes), core.FormatSize(cfg.ReadBufBytes), cfg.FanIn)

	backend := &core.LocalBackend{Basepath: "."}
	codec := core.Int64Codec{}
	gs, err := core.NewGenerationStore(backend, *jobDir, codec, *buckets, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "new generation store:", err)
		os.Exit(1)
	}

	seedOrtho := core.Int64Ortho(*seed)
	bucket := int(seedOrtho.ID() & uint64(*buckets-1))
	if _, err := gs.SeedWork(bucket, []core.Ortho{seedOrtho}); err != nil {
		fmt.Fprintln(os.Stderr, "seed work:", err)
		os.Exit(1)
	}

	expander := core.Int64RangeExpander{Max: *maxValue}
	hb := core.NewHeartbeat(backend, *jobDir, 60, 100000)

	for generation := 0; ; generation++ {
		produced := 0
		for b := 0; b < *buckets; b++ {
			for {
				orthos, ok, err := gs.PopWork(b)
				if err != nil {
					fmt.Fprintln(os.Stderr, "pop work:", err)
					os.Exit(1)
				}
				if !ok {
					break
				}
				for _, o := range orthos {
					for _, child := range expander.Expand(o) {
						if err := gs.RecordResult(child); err != nil {
							fmt.Fprintln(os.Stderr, "record result:", err)
							os.Exit(1)
						}
						produced++
					}
				}
			}
		}
		if err := hb.TouchIfDue(); err != nil {
			fmt.Fprintln(os.Stderr, "heartbeat:", err)
			os.Exit(1)
		}

		accepted, err := gs.OnGenerationEnd()
		if err != nil {
			fmt.Fprintln(os.Stderr, "on generation end:", err)
			os.Exit(1)
		}
		total := uint64(0)
		for _, n := range accepted {
			total += n
		}
		fmt.Printf("generation %d: expanded %d, accepted %d novel\n", generation, produced, total)
		if total == 0 {
			break
		}
	}

	fmt.Println("done, job directory:", *jobDir)
}
