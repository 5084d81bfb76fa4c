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

import "testing"

// stubCallbacks answers every HostCallbacks query with a fixed, inert
// default, modeled on cmd/armjitrepl/main.go's nopCallbacks: enough to let
// Run make progress without needing a real embedder behind it.
type stubCallbacks struct {
	interpretCalls int
	exceptions     []ExceptionReason
}

func (*stubCallbacks) MemoryRead8(addr uint64) uint8    { return 0 }
func (*stubCallbacks) MemoryRead16(addr uint64) uint16  { return 0 }
func (*stubCallbacks) MemoryRead32(addr uint64) uint32  { return 0 }
func (*stubCallbacks) MemoryRead64(addr uint64) uint64  { return 0 }
func (*stubCallbacks) MemoryWrite8(addr uint64, v uint8)    {}
func (*stubCallbacks) MemoryWrite16(addr uint64, v uint16)  {}
func (*stubCallbacks) MemoryWrite32(addr uint64, v uint32)  {}
func (*stubCallbacks) MemoryWrite64(addr uint64, v uint64)  {}
func (*stubCallbacks) MemoryReadCode(addr uint64) uint32 { return 0 }
func (c *stubCallbacks) InterpretInstruction(state *State, count uint32) { c.interpretCalls++ }
func (*stubCallbacks) CallSVC(svc uint32)                                {}
func (c *stubCallbacks) ExceptionRaised(pc uint64, reason ExceptionReason) {
	c.exceptions = append(c.exceptions, reason)
}
func (*stubCallbacks) AddTicks(cycles uint64)    {}
func (*stubCallbacks) GetTicksRemaining() uint64 { return 0 }

// linkChainTranslate stands in for the decoder/IR-builder/optimizer
// pipeline this package declares out of scope: every location compiles to
// a one-cycle block that unconditionally links onward to the next guest
// word, exactly mirroring trivialTranslate in cmd/armjitrepl/main.go. A
// call counter lets tests tell a cache hit (no Translate call) apart from
// a genuine recompile.
func linkChainTranslate(calls *int) func(Location) *Block {
	return func(loc Location) *Block {
		if calls != nil {
			*calls++
		}
		next := NewLocation(loc.PC()+4, loc.Mode())
		return &Block{
			Location:   loc,
			Guest:      GuestInterval{First: loc.PC(), Last: loc.PC() + 3},
			Condition:  CondAL,
			CycleCount: 1,
			Terminal: Terminal{
				Kind:   TermLinkBlock,
				Target: next,
			},
		}
	}
}

// checkHaltTranslate compiles every location to a block that yields back
// to the dispatch loop via TermCheckHalt rather than chaining straight
// through: dispatch only polls the halt flag on that internal-sentinel
// path (dispatcher.go), so exercising HaltExecution needs a terminal that
// actually takes it.
func checkHaltTranslate(loc Location) *Block {
	next := NewLocation(loc.PC()+4, loc.Mode())
	return &Block{
		Location:   loc,
		Guest:      GuestInterval{First: loc.PC(), Last: loc.PC() + 3},
		Condition:  CondAL,
		CycleCount: 1,
		Terminal: Terminal{
			Kind:   TermCheckHalt,
			Target: next,
		},
	}
}

func newTestJit(t *testing.T, translate func(Location) *Block) *Jit {
	t.Helper()
	j, err := New(Config{
		Callbacks:     &stubCallbacks{},
		CodeCacheSize: 1 << 16,
		Translate:     translate,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return j
}

func TestRunCompilesOnFirstMissAndLinksToNextBlock(t *testing.T) {
	calls := 0
	j := newTestJit(t, linkChainTranslate(&calls))
	state := &State{CyclesRemaining: 3, Upcoming: NewLocation(0x1000, 0)}

	reason := j.Run(state)
	if reason != ExitCyclesExhausted {
		t.Fatalf("Run: got %v, want ExitCyclesExhausted", reason)
	}
	// Three one-cycle blocks ran (0x1000, 0x1004, 0x1008) before the guard
	// tripped on the fourth, so Translate should have been called three
	// times and never re-asked for a location it already compiled.
	if calls != 3 {
		t.Fatalf("Translate calls: got %d, want 3", calls)
	}
	if got := j.Stats().BlocksCompiled; got != 3 {
		t.Fatalf("BlocksCompiled: got %d, want 3", got)
	}
}

func TestRunHitsCacheOnSecondCallAtSameLocation(t *testing.T) {
	calls := 0
	j := newTestJit(t, linkChainTranslate(&calls))

	state := &State{CyclesRemaining: 1, Upcoming: NewLocation(0x2000, 0)}
	if reason := j.Run(state); reason != ExitCyclesExhausted {
		t.Fatalf("first Run: got %v, want ExitCyclesExhausted", reason)
	}
	if calls != 1 {
		t.Fatalf("Translate calls after first Run: got %d, want 1", calls)
	}

	state2 := &State{CyclesRemaining: 1, Upcoming: NewLocation(0x2000, 0)}
	if reason := j.Run(state2); reason != ExitCyclesExhausted {
		t.Fatalf("second Run: got %v, want ExitCyclesExhausted", reason)
	}
	if calls != 1 {
		t.Fatalf("Translate calls after second Run at same location: got %d, want 1 (cache hit)", calls)
	}
}

func TestInvalidateCacheRangesForcesRecompile(t *testing.T) {
	calls := 0
	j := newTestJit(t, linkChainTranslate(&calls))

	state := &State{CyclesRemaining: 1, Upcoming: NewLocation(0x3000, 0)}
	j.Run(state)
	if calls != 1 {
		t.Fatalf("Translate calls before invalidate: got %d, want 1", calls)
	}

	j.InvalidateCacheRanges([]GuestInterval{{First: 0x3000, Last: 0x3003}})
	if got := j.Stats().InvalidationsApplied; got != 1 {
		t.Fatalf("InvalidationsApplied: got %d, want 1", got)
	}

	state2 := &State{CyclesRemaining: 1, Upcoming: NewLocation(0x3000, 0)}
	j.Run(state2)
	if calls != 2 {
		t.Fatalf("Translate calls after invalidate: got %d, want 2 (recompiled)", calls)
	}
}

func TestInvalidateCacheRangeConvenienceFormMatchesRanges(t *testing.T) {
	calls := 0
	j := newTestJit(t, linkChainTranslate(&calls))

	state := &State{CyclesRemaining: 1, Upcoming: NewLocation(0x4000, 0)}
	j.Run(state)

	j.InvalidateCacheRange(0x4000, 4)
	if got := j.Stats().InvalidationsApplied; got != 1 {
		t.Fatalf("InvalidationsApplied: got %d, want 1", got)
	}

	state2 := &State{CyclesRemaining: 1, Upcoming: NewLocation(0x4000, 0)}
	j.Run(state2)
	if calls != 2 {
		t.Fatalf("Translate calls after InvalidateCacheRange: got %d, want 2 (recompiled)", calls)
	}
}

func TestClearCacheResetsStatsAndStillRuns(t *testing.T) {
	calls := 0
	j := newTestJit(t, linkChainTranslate(&calls))

	state := &State{CyclesRemaining: 1, Upcoming: NewLocation(0x5000, 0)}
	j.Run(state)
	if got := j.Stats().BlocksCompiled; got != 1 {
		t.Fatalf("BlocksCompiled before clear: got %d, want 1", got)
	}

	j.ClearCache()
	stats := j.Stats()
	if stats.BlocksCompiled != 0 {
		t.Fatalf("BlocksCompiled after clear: got %d, want 0", stats.BlocksCompiled)
	}
	if stats.CacheClears != 1 {
		t.Fatalf("CacheClears: got %d, want 1", stats.CacheClears)
	}

	// The dispatch stub must have survived the buffer reset: a block
	// compiled post-clear still has to run correctly.
	state2 := &State{CyclesRemaining: 1, Upcoming: NewLocation(0x5000, 0)}
	if reason := j.Run(state2); reason != ExitCyclesExhausted {
		t.Fatalf("Run after ClearCache: got %v, want ExitCyclesExhausted", reason)
	}
	if calls != 2 {
		t.Fatalf("Translate calls after ClearCache: got %d, want 2 (recompiled post-clear)", calls)
	}
}

// TestResetClearsHaltAndCache checks both of Reset's jobs directly,
// against the unexported halt flag and the BlocksCompiled counter, rather
// than through a second Run call.
func TestResetClearsHaltAndCache(t *testing.T) {
	j := newTestJit(t, linkChainTranslate(nil))

	state := &State{CyclesRemaining: 1, Upcoming: NewLocation(0x6000, 0)}
	j.Run(state)
	if got := j.Stats().BlocksCompiled; got != 1 {
		t.Fatalf("BlocksCompiled before reset: got %d, want 1", got)
	}

	j.HaltExecution()
	if !j.halt.isSet() {
		t.Fatalf("HaltExecution did not set the halt flag")
	}

	j.Reset()
	if j.halt.isSet() {
		t.Fatalf("Reset left the halt flag set")
	}
	if got := j.Stats().BlocksCompiled; got != 0 {
		t.Fatalf("BlocksCompiled after Reset: got %d, want 0", got)
	}
}

// TestHaltExecutionStopsRunAtNextPoll exercises dispatch's halt check,
// which is only consulted on the internal dispatch-sentinel path
// (dispatcher.go): checkHaltTranslate's blocks take TermCheckHalt, which
// returns to that loop every block rather than chaining straight through,
// so the flag, set here before Run, is observed right after the first
// block, long before CyclesRemaining would otherwise exhaust.
func TestHaltExecutionStopsRunAtNextPoll(t *testing.T) {
	j := newTestJit(t, checkHaltTranslate)
	j.HaltExecution()

	state := &State{CyclesRemaining: 1000, Upcoming: NewLocation(0x7000, 0)}
	reason := j.Run(state)
	if reason != ExitHaltRequested {
		t.Fatalf("Run: got %v, want ExitHaltRequested", reason)
	}
	if state.CyclesRemaining != 999 {
		t.Fatalf("CyclesRemaining: got %d, want 999 (exactly one block ran before the halt was observed)", state.CyclesRemaining)
	}
}

func TestInterpretRequestedLoopsBackIntoRunWithoutSurfacing(t *testing.T) {
	calls := 0
	cb := &stubCallbacks{}
	j, err := New(Config{
		Callbacks:     cb,
		CodeCacheSize: 1 << 16,
		Translate: func(loc Location) *Block {
			calls++
			if calls == 1 {
				return &Block{
					Location:   loc,
					Guest:      GuestInterval{First: loc.PC(), Last: loc.PC() + 3},
					Condition:  CondAL,
					CycleCount: 1,
					Terminal: Terminal{
						Kind:            TermInterpret,
						NumInstructions: 2,
						Next:            NewLocation(loc.PC()+4, loc.Mode()),
					},
				}
			}
			return linkChainTranslate(nil)(loc)
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	state := &State{CyclesRemaining: 1, Upcoming: NewLocation(0x8000, 0)}
	reason := j.Run(state)
	if reason != ExitCyclesExhausted {
		t.Fatalf("Run: got %v, want ExitCyclesExhausted", reason)
	}
	if cb.interpretCalls != 1 {
		t.Fatalf("InterpretInstruction calls: got %d, want 1", cb.interpretCalls)
	}
}

func TestRegsAndSetCPSRExposeStateDirectly(t *testing.T) {
	j := newTestJit(t, linkChainTranslate(nil))
	state := &State{}
	state.GPR[3] = 0x42

	regs := j.Regs(state)
	if regs[3] != 0x42 {
		t.Fatalf("Regs()[3]: got %#x, want 0x42", regs[3])
	}
	regs[4] = 0x99
	if state.GPR[4] != 0x99 {
		t.Fatalf("Regs() did not alias state.GPR: state.GPR[4] = %#x, want 0x99", state.GPR[4])
	}

	j.SetCPSR(state, 0xF0000000)
	if state.CPSR != 0xF0000000 {
		t.Fatalf("SetCPSR: state.CPSR = %#x, want 0xf0000000", state.CPSR)
	}
}
