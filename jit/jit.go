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

import (
	"os"

	"github.com/dc0d/onexit"
)

// Jit is the translator core: the assembly of components A-G from
// spec.md §2 behind the public API §6 names. An instance is
// single-threaded (spec.md §5) — at most one goroutine may be inside Run
// or mutating the cache at a time. There is no lock; ownership.go's
// goroutine-local marker only catches InvalidateCacheRanges or ClearCache
// called from inside Run on the same goroutine, not a second goroutine.
type Jit struct {
	cfg Config

	buf          *CodeBuffer
	cache        *BlockCache
	patches      *PatchRegistry
	tlb          *TLB
	dispatchStub uintptr

	halt  haltFlag
	stats jitStats
	trace *Tracefile
}

// New allocates the executable region, an empty block cache and patch
// registry, and (if cfg.TraceFile is set) the trace log, then emits the
// dispatch stub every unresolved patch site defaults to. Grounded on the
// teacher's allocExec-then-mprotect construction sequence (originally
// scm/jit.go), generalized from a one-shot compile-and-run into a
// long-lived, repeatedly-compiled-into instance.
func New(cfg Config) (*Jit, error) {
	buf, err := NewCodeBuffer(cfg.CodeCacheSize)
	if err != nil {
		return nil, err
	}
	onexit.Register(func() { buf.Close() })

	j := &Jit{
		cfg:     cfg,
		buf:     buf,
		cache:   NewBlockCache(),
		patches: NewPatchRegistry(),
	}
	if cfg.TLBEntries != nil {
		j.tlb = NewTLB(cfg.TLBEntries, cfg.TLBEntryCount(), cfg.PageBits)
	}
	if cfg.TraceFile != "" {
		f, err := os.Create(cfg.TraceFile)
		if err != nil {
			buf.Close()
			return nil, err
		}
		j.trace = NewTrace(f)
	}
	j.dispatchStub = emitDispatchStub(buf)
	return j, nil
}

// emitDispatchStub writes the tiny routine every unresolved cross-block
// reference defaults to until Patch retargets it: load the internal
// dispatch sentinel into RAX and return. This is the "return stub" /
// return_from_run_address() spec.md §3-4.A names, specialized to this
// package's CALL-based trampoline (dispatch_amd64.s) — rather than
// literally returning to the embedder, it returns to dispatch()'s own
// loop, which is what actually decides whether to keep going or surface
// an exit reason.
func emitDispatchStub(buf *CodeBuffer) uintptr {
	entry := buf.EntryPoint()
	buf.EmitMovRegImm64(RegRAX, bitsAsUint64(exitReasonDispatch))
	buf.EmitRet()
	return entry
}

// TLB returns the configured software TLB, or nil if Config.TLBEntries
// was nil (TLB fast path disabled, every access falls back to
// Callbacks).
func (j *Jit) TLB() *TLB {
	return j.tlb
}

// Regs returns the guest GPR file backing state, the "&[u32;16]"-style
// view spec.md §6 names for jit.regs(): A32 callers read the low 16
// entries for R0-R15, A64 callers the full 31 for X0-X30.
func (j *Jit) Regs(state *State) *[31]uint64 {
	return &state.GPR
}

// SetCPSR overwrites state's condition flags wholesale.
func (j *Jit) SetCPSR(state *State, cpsr uint32) {
	state.CPSR = cpsr
}

// HaltExecution requests that Run return ExitHaltRequested the next time
// its dispatch loop polls the flag. Safe to call from any goroutine,
// including one with another goroutine currently inside Run — that is
// the entire reason halt.go backs this with a lock-free bitmap rather
// than a plain field.
func (j *Jit) HaltExecution() {
	j.halt.request()
}

// Reset clears the halt request and drops every compiled block, the
// combination spec.md §6's jit.reset() names for returning an instance to
// a freshly constructed state without re-mmapping the code buffer.
func (j *Jit) Reset() {
	j.halt.clear()
	j.ClearCache()
}

// InvalidateCacheRange is the spec.md §6 single-range convenience form of
// InvalidateCacheRanges.
func (j *Jit) InvalidateCacheRange(start uint64, length uint64) {
	j.InvalidateCacheRanges([]GuestInterval{{First: start, Last: start + length - 1}})
}

// Stats returns a point-in-time snapshot of compile/cache counters.
func (j *Jit) Stats() Stats {
	return j.stats.snapshot()
}
