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

// InvalidateCacheRanges discards every compiled block whose guest interval
// overlaps any of ranges: it unpatches every site that jumps directly into
// one of those blocks (redirecting it back to the dispatcher's
// compile-on-demand stub) and then removes the blocks from the cache.
// Grounded on dynarmic's BlockOfCode::InvalidateCacheRanges in
// emit_x64.cpp; the two-pass erase_set-then-unpatch-then-remove structure
// is transliterated as-is because the ordering matters: a site belonging
// to one doomed block may itself live inside another doomed block, and
// Unpatch must run before either block's bytes are considered free.
//
// Must never run while the calling goroutine is already inside Run
// (spec.md §5) — a HostCallbacks callback invoked synchronously from Run
// must not call back into this method on the same goroutine.
func (j *Jit) InvalidateCacheRanges(ranges []GuestInterval) {
	assertNotInsideRun("InvalidateCacheRanges")

	eraseSet := make(map[Location]*BlockDescriptor)
	for _, iv := range ranges {
		j.cache.FindOverlapping(iv, func(desc *BlockDescriptor) {
			eraseSet[desc.Location] = desc
		})
	}
	if len(eraseSet) == 0 {
		return
	}

	dispatchStub := j.dispatchStub
	for loc := range eraseSet {
		j.patches.Unpatch(j.buf, loc, dispatchStub)
	}
	for loc := range eraseSet {
		j.cache.Remove(loc)
		j.patches.Forget(loc)
	}
	j.stats.invalidationsApplied.Add(1)
	j.trace.Event("invalidate", uint64(len(eraseSet)))
}

// ClearCache discards every compiled block unconditionally, resets the
// code buffer cursor to the start of the executable region (the response
// spec.md §7 prescribes to ExitCacheOverflow) and sets the BlocksCompiled
// counter back to zero. The patch registry is replaced along with the
// cache, and every old patch site lived in the discarded region, so
// nothing still refers to the old code. The dispatch stub lives in that
// same region, so it is re-emitted immediately after the reset:
// j.dispatchStub must never point at bytes Reset just invalidated.
func (j *Jit) ClearCache() {
	assertNotInsideRun("ClearCache")

	for loc := range j.cache.blocks {
		j.patches.Forget(loc)
	}
	j.cache = NewBlockCache()
	j.patches = NewPatchRegistry()
	j.buf.Reset()
	j.dispatchStub = emitDispatchStub(j.buf)
	j.stats.blocksCompiled.Store(0)
	j.stats.cacheClears.Add(1)
	j.trace.Event("clear-cache", 0)
}
