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

// emitSaturatedAddSub implements SignedSaturatedAdd32/Sub32 via the
// cmovo sentinel trick: compute the wrapping result normally, compute the
// saturation sentinel (a>>31)+0x7FFFFFFF — which evaluates to INT32_MIN
// when a is negative and INT32_MAX when a is non-negative — then
// conditionally move the sentinel over the wrapping result whenever the
// ALU operation actually overflowed (OF=1). This avoids a branch entirely:
// the overflow case is rare but its cost must still be bounded, and CMOVO
// has no misprediction penalty the way a conditional jump would. The
// operands and the sentinel sit in the top 32 bits of 64-bit registers
// while the ADD/SUB runs, so OF reports exactly the 32-bit overflow; the
// result is shifted back down (zero-extended) at the end.
func emitSaturatedAddSub(e *blockEmitter, inst *Inst, idx int) {
	buf := e.buf
	a := e.resolveGPR(inst.Args[0])
	b := e.resolveGPR(inst.Args[1])

	sentinel := e.ra.AllocGPR()
	buf.EmitMovRegReg(sentinel, a)
	buf.EmitShrRegImm8(sentinel, 31)
	buf.EmitAndRegImm32(sentinel, 1) // sign bit of the 32-bit operand: 1 if negative, 0 if not
	addHalf := e.ra.AllocGPR()
	buf.EmitMovRegImm64(addHalf, 0x7FFFFFFF)
	buf.EmitAddRegReg(sentinel, addHalf)
	e.ra.FreeGPR(addHalf)
	buf.EmitShlRegImm8(sentinel, 32)

	dst := e.ra.AllocGPR()
	buf.EmitMovRegReg(dst, a)
	buf.EmitShlRegImm8(dst, 32)
	rhs := e.ra.AllocGPR()
	buf.EmitMovRegReg(rhs, b)
	buf.EmitShlRegImm8(rhs, 32)
	switch inst.Op {
	case OpSignedSaturatedAdd32:
		buf.EmitAddRegReg(dst, rhs)
	case OpSignedSaturatedSub32:
		buf.EmitSubRegReg(dst, rhs)
	}
	e.ra.FreeGPR(rhs)
	buf.EmitCmovO(dst, sentinel)
	e.ra.FreeGPR(sentinel)

	if inst.HasOverflowConsumer {
		materializeOverflowIntoState(e)
	}
	buf.EmitShrRegImm8(dst, 32)
	e.results[idx] = valueSlot{isGPR: true, reg: dst}
}

// emitSaturation implements UnsignedSaturation(a, N) and
// SignedSaturation(a, N): clamp a into an N-bit unsigned or signed range.
// inst.Imm carries N. Built from plain compare-and-cmov rather than the
// sentinel trick above since there is no single ALU instruction whose
// overflow flag already answers "did this clamp", the way ADD/SUB's does
// for the add/sub saturation case.
func emitSaturation(e *blockEmitter, inst *Inst, idx int) {
	buf := e.buf
	a := e.resolveGPR(inst.Args[0])
	n := uint(inst.Imm)

	dst := e.ra.AllocGPR()
	buf.EmitMovRegReg(dst, a)

	hi := e.ra.AllocGPR()
	lo := e.ra.AllocGPR()

	if inst.Op == OpUnsignedSaturation {
		var maxVal uint64
		if n >= 64 {
			maxVal = ^uint64(0)
		} else {
			maxVal = (uint64(1) << n) - 1
		}
		buf.EmitMovRegImm64(lo, 0)
		buf.EmitCmpRegReg(dst, lo)
		// A negative input arrives sign-extended into the full 64-bit
		// register (the convention emit_shift_test.go documents), so the
		// low bound is a signed test (CcL, matching the SignedSaturation
		// branch below) and it runs before the unsigned high bound: compared
		// unsigned against hi first, a negative value would look huge and
		// be clamped to maxVal instead of 0.
		buf.EmitCmovRegReg(CcL, dst, lo) // dst < 0 as a signed value -> clamp low
		buf.EmitMovRegImm64(hi, maxVal)
		buf.EmitCmpRegReg(dst, hi)
		buf.EmitCmovRegReg(CcA, dst, hi) // dst > max -> clamp high
	} else {
		var maxVal, minVal uint64
		if n >= 64 {
			maxVal = uint64(1)<<63 - 1
			minVal = uint64(1) << 63
		} else {
			maxVal = (uint64(1) << (n - 1)) - 1
			minVal = ^maxVal // two's complement min for this width, sign-extended pattern
		}
		buf.EmitMovRegImm64(hi, maxVal)
		buf.EmitCmpRegReg(dst, hi)
		buf.EmitCmovRegReg(CcG, dst, hi)
		buf.EmitMovRegImm64(lo, minVal)
		buf.EmitCmpRegReg(dst, lo)
		buf.EmitCmovRegReg(CcL, dst, lo)
	}

	e.ra.FreeGPR(hi)
	e.ra.FreeGPR(lo)
	e.results[idx] = valueSlot{isGPR: true, reg: dst}
}
