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

// This file covers the ARM DSP-extension packed-arithmetic family: values
// arrive as ordinary 32-bit GPR operands holding either four packed bytes
// or two packed halfwords, not as NEON vector registers. The emitter moves
// each operand into the low lanes of a throwaway XMM register, leans on
// SSE2/SSE4.1 packed instructions to get lane-isolated arithmetic without
// inter-lane carry, then extracts the low 32 bits back into a GPR. The
// upper 96 bits of every XMM register touched here are garbage the host
// never reads back, so no effort is spent clearing them beyond what the
// individual instructions already zero incidentally.

func isByteLaneOp(op Opcode) bool {
	switch op {
	case OpPackedAddU8, OpPackedAddS8, OpPackedSubU8, OpPackedSubS8,
		OpPackedHalvingAddU8, OpPackedHalvingAddS8, OpPackedHalvingSubU8, OpPackedHalvingSubS8:
		return true
	}
	return false
}

func isSignedLaneOp(op Opcode) bool {
	switch op {
	case OpPackedAddS8, OpPackedSubS8, OpPackedAddS16, OpPackedSubS16,
		OpPackedHalvingAddS8, OpPackedHalvingSubS8, OpPackedHalvingAddS16, OpPackedHalvingSubS16:
		return true
	}
	return false
}

func isSubLaneOp(op Opcode) bool {
	switch op {
	case OpPackedSubU8, OpPackedSubS8, OpPackedSubU16, OpPackedSubS16,
		OpPackedHalvingSubU8, OpPackedHalvingSubS8, OpPackedHalvingSubU16, OpPackedHalvingSubS16:
		return true
	}
	return false
}

// emitPackedAddSub implements the non-saturating packed add/subtract
// family (UADD8/SADD8/UADD16/SADD16 and their SUB counterparts), with the
// GE side-effect lanes computed when the caller consumes them.
func emitPackedAddSub(e *blockEmitter, inst *Inst, idx int) {
	buf := e.buf
	a := e.resolveGPR(inst.Args[0])
	b := e.resolveGPR(inst.Args[1])
	byteLanes := isByteLaneOp(inst.Op)

	ax := e.ra.AllocXMM()
	bx := e.ra.AllocXMM()
	buf.EmitMovqGprToXmm(ax, a)
	buf.EmitMovqGprToXmm(bx, b)

	dst := e.ra.AllocXMM()
	buf.EmitMovdqaXmmXmm(dst, ax)
	sub := isSubLaneOp(inst.Op)
	switch {
	case byteLanes && !sub:
		buf.EmitPAddB(dst, bx)
	case byteLanes && sub:
		buf.EmitPSubB(dst, bx)
	case !byteLanes && !sub:
		buf.EmitPAddW(dst, bx)
	default:
		buf.EmitPSubW(dst, bx)
	}

	result := e.ra.AllocGPR()
	buf.EmitMovqXmmToGpr(result, dst)
	buf.EmitZeroExtend32(result)

	if inst.HasGEConsumer {
		emitPackedGE(e, inst.Op, ax, bx, dst, byteLanes)
	}

	e.ra.FreeXMM(ax)
	e.ra.FreeXMM(bx)
	e.ra.FreeXMM(dst)
	e.results[idx] = valueSlot{isGPR: true, reg: result}
}

// emitPackedGE writes State.GE[0..3] for a completed packed add/subtract.
// Unsigned lanes use the standard "flip the sign bit, then signed-compare"
// trick to get an exact unsigned comparison out of PCMPGTB/PCMPGTW; signed
// lanes use the ARM-defined rule that GE reflects the result's own sign bit
// (clear -> GE=1), which packed SIMD can read directly off the result
// without reconstructing the infinite-precision sum.
func emitPackedGE(e *blockEmitter, op Opcode, a, b, dst XMMReg, byteLanes bool) {
	buf := e.buf
	var condMask XMMReg

	if isSignedLaneOp(op) {
		signBit := e.ra.AllocGPR()
		if byteLanes {
			buf.EmitMovRegImm64(signBit, 0x8080808080808080)
		} else {
			buf.EmitMovRegImm64(signBit, 0x8000800080008000)
		}
		signXmm := e.ra.AllocXMM()
		buf.EmitMovqGprToXmm(signXmm, signBit)
		e.ra.FreeGPR(signBit)

		masked := e.ra.AllocXMM()
		buf.EmitMovdqaXmmXmm(masked, dst)
		buf.EmitPAndD(masked, signXmm)
		e.ra.FreeXMM(signXmm)

		zero := e.ra.AllocXMM()
		buf.EmitXorpd(zero)
		if byteLanes {
			buf.EmitPCmpEqB(masked, zero)
		} else {
			buf.EmitPCmpEqW(masked, zero)
		}
		e.ra.FreeXMM(zero)
		condMask = masked
	} else {
		flipConst := e.ra.AllocGPR()
		if byteLanes {
			buf.EmitMovRegImm64(flipConst, 0x8080808080808080)
		} else {
			buf.EmitMovRegImm64(flipConst, 0x8000800080008000)
		}
		flipXmm := e.ra.AllocXMM()
		buf.EmitMovqGprToXmm(flipXmm, flipConst)
		e.ra.FreeGPR(flipConst)

		flipA := e.ra.AllocXMM()
		buf.EmitMovdqaXmmXmm(flipA, a)
		buf.EmitPXor(flipA, flipXmm)
		flipOther := e.ra.AllocXMM() // flip(dst) for add's carry test, flip(b) for sub's borrow test
		if isSubLaneOp(op) {
			buf.EmitMovdqaXmmXmm(flipOther, b)
		} else {
			buf.EmitMovdqaXmmXmm(flipOther, dst)
		}
		buf.EmitPXor(flipOther, flipXmm)
		e.ra.FreeXMM(flipXmm)

		cmp := e.ra.AllocXMM()
		if isSubLaneOp(op) {
			// borrow = a <u b  ==  UGT(b, a); GE reported is "no borrow".
			buf.EmitMovdqaXmmXmm(cmp, flipOther) // flip(b)
			if byteLanes {
				buf.EmitPCmpGtB(cmp, flipA) // flip(b) > flip(a) -> borrow
			} else {
				buf.EmitPCmpGtW(cmp, flipA)
			}
			allOnes := e.ra.AllocXMM()
			buf.EmitPCmpEqB(allOnes, allOnes) // self-compare-equal -> all bits set
			buf.EmitPXor(cmp, allOnes) // invert: GE = !borrow
			e.ra.FreeXMM(allOnes)
		} else {
			// carry = a >u dst  ==  UGT(a, dst).
			buf.EmitMovdqaXmmXmm(cmp, flipA)
			if byteLanes {
				buf.EmitPCmpGtB(cmp, flipOther) // flip(a) > flip(dst) -> carry
			} else {
				buf.EmitPCmpGtW(cmp, flipOther)
			}
		}
		e.ra.FreeXMM(flipA)
		e.ra.FreeXMM(flipOther)
		condMask = cmp
	}

	maskGPR := e.ra.AllocGPR()
	buf.EmitPmovmskb(maskGPR, condMask)
	e.ra.FreeXMM(condMask)

	packed := e.ra.AllocGPR()
	buf.EmitMovRegImm64(packed, 0)
	lane := e.ra.AllocGPR()

	storeLane := func(bitIndex int, geIndex int) {
		buf.EmitMovRegReg(lane, maskGPR)
		buf.EmitShrRegImm8(lane, uint8(bitIndex))
		buf.EmitAndRegImm32(lane, 1)
		buf.EmitShlRegImm8(lane, uint8(geIndex*8))
		buf.EmitOrRegReg(packed, lane)
	}

	if byteLanes {
		storeLane(0, 0)
		storeLane(1, 1)
		storeLane(2, 2)
		storeLane(3, 3)
	} else {
		// Each 16-bit lane occupies two mask bits with identical values;
		// bit 1 of the low word and bit 3 of the high word are the
		// representative bits, replicated across the GE pair ARM defines
		// for UADD16/SADD16 (GE[1:0] and GE[3:2] set together).
		storeLane(1, 0)
		storeLane(1, 1)
		storeLane(3, 2)
		storeLane(3, 3)
	}

	e.ra.FreeGPR(lane)
	e.ra.FreeGPR(maskGPR)
	buf.EmitMovMemReg32(RegRBP, stateOffsetGE, packed)
	e.ra.FreeGPR(packed)
}

// emitPackedHalving implements the halving add/subtract family (UHADD8,
// SHADD8, UHSUB16, ...): (a op b) >> 1 computed without overflow, per lane,
// truncating toward -inf rather than rounding the way x86's own PAVGB/
// PAVGW round — those differ from ARM's definition by a +1 bias and don't
// exist at all for subtraction, so lanes are widened instead.
func emitPackedHalving(e *blockEmitter, inst *Inst, idx int) {
	buf := e.buf
	a := e.resolveGPR(inst.Args[0])
	b := e.resolveGPR(inst.Args[1])
	byteLanes := isByteLaneOp(inst.Op)
	signed := isSignedLaneOp(inst.Op)
	sub := isSubLaneOp(inst.Op)

	ax := e.ra.AllocXMM()
	bx := e.ra.AllocXMM()
	buf.EmitMovqGprToXmm(ax, a)
	buf.EmitMovqGprToXmm(bx, b)

	wideA := widenLanes(e, ax, byteLanes, signed)
	wideB := widenLanes(e, bx, byteLanes, signed)
	e.ra.FreeXMM(ax)
	e.ra.FreeXMM(bx)

	if byteLanes {
		if sub {
			buf.EmitPSubW(wideA, wideB)
		} else {
			buf.EmitPAddW(wideA, wideB)
		}
		if signed {
			buf.EmitPsrawImm8(wideA, 1)
			buf.EmitPacksswb(wideA, wideA)
		} else {
			buf.EmitPsrlwImm8(wideA, 1)
			buf.EmitPackuswb(wideA, wideA)
		}
	} else {
		if sub {
			buf.EmitPSubD(wideA, wideB)
		} else {
			buf.EmitPAddD(wideA, wideB)
		}
		if signed {
			buf.EmitPsradImm8(wideA, 1)
			buf.EmitPackssdw(wideA, wideA)
		} else {
			buf.EmitPsrldImm8(wideA, 1)
			buf.EmitPackusdw(wideA, wideA)
		}
	}

	e.ra.FreeXMM(wideB)

	result := e.ra.AllocGPR()
	buf.EmitMovqXmmToGpr(result, wideA)
	buf.EmitZeroExtend32(result)
	e.ra.FreeXMM(wideA)

	e.results[idx] = valueSlot{isGPR: true, reg: result}
}

// widenLanes doubles the element width of the low lanes of src (byte lanes
// become word lanes, word lanes become dword lanes), zero- or
// sign-extending per signed. Caller owns the returned register and must
// free it.
func widenLanes(e *blockEmitter, src XMMReg, byteLanes, signed bool) XMMReg {
	buf := e.buf
	wide := e.ra.AllocXMM()
	buf.EmitMovdqaXmmXmm(wide, src)
	if signed {
		if byteLanes {
			buf.EmitPunpcklbw(wide, src)
			buf.EmitPsrawImm8(wide, 8)
		} else {
			buf.EmitPunpcklwd(wide, src)
			buf.EmitPsradImm8(wide, 16)
		}
	} else {
		zero := e.ra.AllocXMM()
		buf.EmitXorpd(zero)
		if byteLanes {
			buf.EmitPunpcklbw(wide, zero)
		} else {
			buf.EmitPunpcklwd(wide, zero)
		}
		e.ra.FreeXMM(zero)
	}
	return wide
}

// emitPackedAddSubCross implements the cross add/subtract family (SASX/
// SSAX and their U-prefixed counterparts): the two halfwords packed into
// each 32-bit operand are combined crosswise. Operating on two elements is
// cheap enough as plain GPR arithmetic that no SIMD register is needed.
func emitPackedAddSubCross(e *blockEmitter, inst *Inst, idx int) {
	buf := e.buf
	a := e.resolveGPR(inst.Args[0])
	b := e.resolveGPR(inst.Args[1])

	aLo := e.ra.AllocGPR()
	buf.EmitMovRegReg(aLo, a)
	buf.EmitAndRegImm32(aLo, 0xFFFF)
	aHi := e.ra.AllocGPR()
	buf.EmitMovRegReg(aHi, a)
	buf.EmitShrRegImm8(aHi, 16)
	buf.EmitAndRegImm32(aHi, 0xFFFF)

	bLo := e.ra.AllocGPR()
	buf.EmitMovRegReg(bLo, b)
	buf.EmitAndRegImm32(bLo, 0xFFFF)
	bHi := e.ra.AllocGPR()
	buf.EmitMovRegReg(bHi, b)
	buf.EmitShrRegImm8(bHi, 16)
	buf.EmitAndRegImm32(bHi, 0xFFFF)

	var lo, hi Reg
	if inst.Op == OpPackedAddSub {
		// result.lo = a.lo + b.hi ; result.hi = a.hi - b.lo
		buf.EmitAddRegReg(aLo, bHi)
		buf.EmitSubRegReg(aHi, bLo)
		lo, hi = aLo, aHi
	} else {
		// OpPackedSubAdd: result.lo = a.lo - b.hi ; result.hi = a.hi + b.lo
		buf.EmitSubRegReg(aLo, bHi)
		buf.EmitAddRegReg(aHi, bLo)
		lo, hi = aLo, aHi
	}
	buf.EmitAndRegImm32(lo, 0xFFFF)
	buf.EmitAndRegImm32(hi, 0xFFFF)
	buf.EmitShlRegImm8(hi, 16)
	buf.EmitOrRegReg(hi, lo)

	e.ra.FreeGPR(bLo)
	e.ra.FreeGPR(bHi)
	e.ra.FreeGPR(lo)
	e.results[idx] = valueSlot{isGPR: true, reg: hi}
}
