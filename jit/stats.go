/*
Copyright (C) 2024-2026  Carl-Philip Hänsch

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
package jit

import "sync/atomic"

// Stats is a point-in-time snapshot of compile/runtime counters, returned
// by Jit.Stats(). Grounded on the teacher's dashboard metrics sampler
// (originally scm/metrics.go): that file samples CPU load, HTTP RPS and
// connection counts behind a single atomically-swapped snapshot struct
// (metricsSnapshot) — none of which a translator core has any use for, so
// every field here is replaced with compiler/cache counters, but the
// shape (atomic counters on the hot path, a plain value type handed to
// readers) is kept.
type Stats struct {
	BlocksCompiled       int64
	BytesEmitted         int64
	CacheOverflows       int64
	InvalidationsApplied int64
	CacheClears          int64
}

// jitStats holds the live atomic counters embedded in Jit. Each field is
// bumped from the single goroutine allowed inside Run/Compile at a time
// (spec.md §5), so plain atomic.Int64 rather than a mutex-guarded struct
// is enough to let Stats() be called safely from any other goroutine
// concurrently.
type jitStats struct {
	blocksCompiled       atomic.Int64
	bytesEmitted         atomic.Int64
	cacheOverflows       atomic.Int64
	invalidationsApplied atomic.Int64
	cacheClears          atomic.Int64
}

func (s *jitStats) snapshot() Stats {
	return Stats{
		BlocksCompiled:       s.blocksCompiled.Load(),
		BytesEmitted:         s.bytesEmitted.Load(),
		CacheOverflows:       s.cacheOverflows.Load(),
		InvalidationsApplied: s.invalidationsApplied.Load(),
		CacheClears:          s.cacheClears.Load(),
	}
}
