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
	"os"
	"strconv"
	"strings"
)

// readMemInfo reads MemTotal and MemAvailable from /proc/meminfo, lifted
// from scm/metrics.go's function of the same name (stripped of the HTTP/
// CPU sampling it shared a file with — Config only needs the memory
// figures, not the request-rate metrics that reader also tracked).
func readMemInfo() (memTotal, memAvailable int64) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "MemTotal:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				if kb, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
					memTotal = kb * 1024
				}
			}
		} else if strings.HasPrefix(line, "MemAvailable:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				if kb, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
					memAvailable = kb * 1024
				}
			}
		}
		if memTotal > 0 && memAvailable > 0 {
			break
		}
	}
	return
}

// readProcessRSS reads this process's resident set size from
// /proc/self/statm, lifted from scm/metrics.go's readProcessRSS.
func readProcessRSS() int64 {
	data, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0
	}
	pages, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return pages * int64(os.Getpagesize())
}

// SysMetrics is the live RAM/RSS snapshot Config dials its budgets from
// (spec §4.10). Unlike scm/metrics.go's background-goroutine sampler,
// fold reads these on demand at generation boundaries rather than once a
// second in the background — generations are seconds to minutes apart,
// so a background sampler would mostly spin for no reader.
type SysMetrics struct {
	TotalMemory     int64
	AvailableMemory int64
	ProcessRSS      int64
}

// ReadSysMetrics samples the three figures Config needs right now.
func ReadSysMetrics() SysMetrics {
	total, avail := readMemInfo()
	return SysMetrics{
		TotalMemory:     total,
		AvailableMemory: avail,
		ProcessRSS:      readProcessRSS(),
	}
}
