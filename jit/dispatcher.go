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

// Run enters emitted code at state.Upcoming and loops until a terminal
// produces a real exit reason, compiling and patching unresolved targets
// along the way — spec.md §2's "host calls Run" control flow and §9's
// "Run loops { enter block; inspect reason; if unresolved, compile +
// patch; re-enter }" note, implemented directly rather than as a
// coroutine.
func (j *Jit) Run(state *State) RunExitReason {
	var reason RunExitReason
	before := state.CyclesRemaining
	runOnThisGoroutine(func() {
		reason = j.dispatch(state)
	})
	if consumed := before - state.CyclesRemaining; consumed > 0 {
		j.cfg.Callbacks.AddTicks(uint64(consumed))
	}
	return reason
}

// dispatch is Run's body, split out so runOnThisGoroutine's closure stays
// tiny. It mediates every HostCallbacks invocation a dispatch-sentinel or
// terminal exit code calls for — ownership.go's own doc comment names
// exactly this (InterpretInstruction/ExceptionRaised "calling back into
// InvalidateCacheRanges") as the reason the "inside Run" marker must
// already be set before any such callback runs, which is why dispatch
// only ever runs from inside runOnThisGoroutine's closure above.
func (j *Jit) dispatch(state *State) RunExitReason {
	for {
		entry, overflowed := j.compileIfMissing(state.Upcoming)
		if overflowed {
			return ExitCacheOverflow
		}

		raw := callBlock(entry, state)
		if raw != exitReasonDispatch {
			reason := RunExitReason(raw)
			switch reason {
			case ExitInterpretRequested:
				j.cfg.Callbacks.InterpretInstruction(state, state.InterpretCount)
				continue
			case ExitException:
				j.cfg.Callbacks.ExceptionRaised(state.Upcoming.PC(), ExceptionReason(state.PendingExceptionReason))
				return reason
			default:
				return reason
			}
		}

		if j.halt.isSet() {
			return ExitHaltRequested
		}
	}
}

// compileIfMissing returns loc's entry point, compiling it first if the
// cache has no block there yet.
func (j *Jit) compileIfMissing(loc Location) (entry uintptr, overflowed bool) {
	if desc, ok := j.cache.GetBasicBlock(loc); ok {
		return desc.EntryPoint, false
	}
	return j.compile(loc)
}

// compile translates loc via Config.Translate, emits it, and installs it
// into the cache and patch registry — the Compile(desc) operation from
// spec.md §4.C. buffer.go's CodeBuffer signals running out of room by
// panicking with cacheOverflow rather than threading an error return
// through every amd64.go Emit* helper; this is the one place that panic
// is recovered and turned into the typed ExitCacheOverflow exit spec.md
// §7 calls for. The half-emitted bytes from the failed attempt are
// abandoned in place: the cursor is not rewound, so they stay unused until
// ClearCache resets the buffer, and the block is never inserted into the
// cache, so nothing dispatches into them.
func (j *Jit) compile(loc Location) (entry uintptr, overflowed bool) {
	block := j.cfg.Translate(loc)
	start := j.buf.CurrentPos()

	var desc *BlockDescriptor
	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(cacheOverflow); ok {
					overflowed = true
					return
				}
				panic(r)
			}
		}()
		entryPoint := EmitBlock(j.buf, j.cache, j.patches, j.dispatchStub, block)
		desc = &BlockDescriptor{
			Location:   loc,
			Guest:      block.Guest,
			EntryPoint: entryPoint,
			CodeStart:  j.buf.HostAddr(start),
			CodeEnd:    j.buf.HostAddr(j.buf.CurrentPos()),
		}
	}()

	if overflowed {
		j.stats.cacheOverflows.Add(1)
		return 0, true
	}

	j.cache.Insert(desc)
	j.patches.Patch(j.buf, loc, desc.EntryPoint)

	size := uint64(desc.CodeEnd - desc.CodeStart)
	j.stats.blocksCompiled.Add(1)
	j.stats.bytesEmitted.Add(int64(size))
	j.trace.Event("compile", size)
	return desc.EntryPoint, false
}
