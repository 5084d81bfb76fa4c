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

// RSBCapacity is the number of entries in the return-stack buffer. Must be
// a power of two: rsb_ptr wraps by masking rather than by modulo.
const RSBCapacity = 8

// nzcvShift is the bit position of the N flag within CPSR. Laying NZCV out
// in the top four bits (31=N, 30=Z, 29=C, 28=V) means the condition prelude
// can populate all four from the host's own EFLAGS with a single shift
// after SETO/SETC/LAHF-style extraction, rather than four separate
// bit-tests — see emit_condition.go.
const (
	nzcvShiftN = 31
	nzcvShiftZ = 30
	nzcvShiftC = 29
	nzcvShiftV = 28
	nzcvMask   = uint32(0xF) << nzcvShiftV
)

// bitsAsInt32 reinterprets v's bit pattern as an int32, the same truncation
// a non-constant uint32->int32 conversion performs. It exists only to let
// high-bit masks (e.g. nzcvMask) be passed to Emit*Imm32 helpers that take
// int32 immediates without tripping Go's constant-overflow check.
func bitsAsInt32(v uint32) int32 { return int32(v) }

// bitsAsUint64 is bitsAsInt32's counterpart for negative int64 sentinels
// that must be passed through a uint64-typed parameter unchanged.
func bitsAsUint64(v int64) uint64 { return uint64(v) }

// bitsAsInt64 reinterprets v's bit pattern as an int64, for uint64 literals
// whose top bit is set (e.g. a sign-extended 32-bit negative pattern).
func bitsAsInt64(v uint64) int64 { return int64(v) }

// State is the per-thread mutable record an emitted block reads and
// writes directly. Every field's byte offset is load-bearing: emit_*.go
// helpers compute unsafe.Offsetof against this type to address fields from
// generated machine code, so fields must never be reordered without
// re-checking every such offset.
type State struct {
	// GPR holds the guest general-purpose registers. A32 callers use
	// indices 0-15 (R0-R15, with R15 conventionally unused since PC lives
	// in the Location instead); A64 callers use indices 0-30 for X0-X30
	// and read/write the low 32 bits for the W view.
	GPR [31]uint64

	// FPR holds the guest vector/floating-point registers as raw 128-bit
	// lanes (low, high), reinterpreted by the emitter according to the
	// operation's element size.
	FPR [32][2]uint64

	// CPSR packs the NZCV condition flags into its top four bits per the
	// layout above. Lower bits are reserved for guest mode/IT-state bits
	// a full A32 implementation would also track.
	CPSR uint32

	// FPSCR carries the bits the floating-point emitter consults: rounding
	// mode, flush-to-zero (FZ), default-NaN (DN), and the sticky exception
	// flags IOC/DZC/OFC/UFC/IXC/IDC.
	FPSCR uint32

	// GE holds the four SIMD "greater-equal" side-effect lanes produced by
	// the packed add/subtract family (spec.md §4.D), one byte per lane.
	GE [4]uint8

	// CyclesRemaining counts down as emitted blocks execute; Run returns
	// ExitCyclesExhausted once it goes non-positive. Signed so a block's
	// cost can push it below zero without wrapping.
	CyclesRemaining int64

	// Upcoming is the location the dispatcher resumes at on re-entry: the
	// next block's Location after a LinkBlock/Interpret/exception exit.
	Upcoming Location

	// Return-stack buffer: a ring of (location, host return address) pairs
	// pushed by call-like terminals and popped by PopRSBHint on return.
	// rsbPtr is always masked with RSBCapacity-1 before indexing, so it is
	// free to overflow past RSBCapacity without special-casing the wrap.
	rsbPtr                uint32
	rsbLocationDescriptors [RSBCapacity]Location
	rsbCodePtrs            [RSBCapacity]uintptr

	// InterpretCount is written by a TermInterpret terminal immediately
	// before it returns ExitInterpretRequested: the number of guest
	// instructions dispatch passes to the embedder's InterpretInstruction
	// callback before it resumes at Upcoming within the same Run call.
	// There is no register wide enough left in the
	// dispatcher's RET-value convention (RAX alone carries the exit
	// reason), so this rides along in State instead.
	InterpretCount uint32

	// PendingExceptionReason records why an ExitException return is about
	// to happen, read by dispatcher.go's Run loop when it sees that exit
	// code so it can pass ExceptionReason through to HostCallbacks.
	// Upcoming already carries the faulting location by the time any exit
	// path writes it, so no separate PC field is needed here. No emitter
	// in this package currently raises ExitException (the opcode that
	// would is decoder-owned, spec.md §1), so nothing writes this field
	// yet — the dispatcher-side handling exists so that adding such an
	// opcode later needs no dispatcher change.
	PendingExceptionReason uint8
}

// NZCV unpacks the four condition flags from CPSR.
func (s *State) NZCV() (n, z, c, v bool) {
	return s.CPSR&(1<<nzcvShiftN) != 0,
		s.CPSR&(1<<nzcvShiftZ) != 0,
		s.CPSR&(1<<nzcvShiftC) != 0,
		s.CPSR&(1<<nzcvShiftV) != 0
}

// SetNZCV packs the four condition flags into CPSR, leaving other bits
// untouched.
func (s *State) SetNZCV(n, z, c, v bool) {
	s.CPSR &^= nzcvMask
	if n {
		s.CPSR |= 1 << nzcvShiftN
	}
	if z {
		s.CPSR |= 1 << nzcvShiftZ
	}
	if c {
		s.CPSR |= 1 << nzcvShiftC
	}
	if v {
		s.CPSR |= 1 << nzcvShiftV
	}
}

// PushRSB records a call site: the location to resume at and the host
// code pointer (or dispatcher-return-stub address) to jump to when that
// location's block pops this entry via PopRSBHint. Grounded on dynarmic's
// PushRSBHelper in emit_x64.cpp, transliterated to plain field writes
// since Go has no inline-asm path into State from the dispatcher side.
func (s *State) PushRSB(loc Location, codePtr uintptr) {
	idx := s.rsbPtr & (RSBCapacity - 1)
	s.rsbLocationDescriptors[idx] = loc
	s.rsbCodePtrs[idx] = codePtr
	s.rsbPtr++
}

// RSBLookup scans the ring for an entry matching loc, returning its host
// code pointer and whether one was found. Emitted code does not perform
// this search: PopRSBHint (emit_terminal.go) links to its statically
// predicted Target like a checked LinkBlock.
func (s *State) RSBLookup(loc Location) (uintptr, bool) {
	for i := uint32(0); i < RSBCapacity; i++ {
		if s.rsbLocationDescriptors[i] == loc {
			return s.rsbCodePtrs[i], true
		}
	}
	return 0, false
}
