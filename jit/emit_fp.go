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

// Floating-point operations are all double precision here (FPPrec is
// carried on Inst for a future single-precision path but every opcode
// below treats its operands as scalar f64 lanes); FPSCR.FZ and FPSCR.DN
// govern flush-to-zero and default-NaN behavior the way the real VFP/NEON
// unit does, and since x86's MXCSR.FTZ/DAZ are process-global rather than
// block-local, the emitter implements both as explicit bit-pattern checks
// around the native SSE2 instruction instead of touching MXCSR.
const (
	fpscrShiftFZ = 24
	fpscrShiftDN = 25

	f64SignMask = uint64(0x8000000000000000)
	f64ExpMask  = uint64(0x7FF0000000000000)
	f64MantMask = uint64(0x000FFFFFFFFFFFFF)
	f64DefaultNaN = uint64(0x7FF8000000000000)
)

// emitFPBinOp implements FPAdd/FPSub/FPMul/FPDiv with FPSCR.FZ applied to
// both operands before the native op and to the result after, and
// FPSCR.DN applied to a NaN result.
func emitFPBinOp(e *blockEmitter, inst *Inst, idx int) {
	buf := e.buf
	a := e.resolveXMM(inst.Args[0])
	b := e.resolveXMM(inst.Args[1])

	dst := e.ra.AllocXMM()
	buf.EmitMovdqaXmmXmm(dst, a)
	src := e.ra.AllocXMM()
	buf.EmitMovdqaXmmXmm(src, b)

	fpscr := e.ra.AllocGPR()
	buf.EmitMovRegMem32(fpscr, RegRBP, stateOffsetFPSCR)
	buf.EmitTestRegImm32(fpscr, 1<<fpscrShiftFZ)
	fzSkip := e.w.ReserveLabel()
	buf.EmitJcc(e.w, CcE, fzSkip)
	emitFlushSubnormalToZero(e, dst)
	emitFlushSubnormalToZero(e, src)
	e.w.MarkLabel(fzSkip)

	switch inst.Op {
	case OpFPAdd:
		buf.EmitAddSD(dst, src)
	case OpFPSub:
		buf.EmitSubSD(dst, src)
	case OpFPMul:
		buf.EmitMulSD(dst, src)
	case OpFPDiv:
		buf.EmitDivSD(dst, src)
	}
	e.ra.FreeXMM(src)

	fzSkip2 := e.w.ReserveLabel()
	buf.EmitTestRegImm32(fpscr, 1<<fpscrShiftFZ)
	buf.EmitJcc(e.w, CcE, fzSkip2)
	emitFlushSubnormalToZero(e, dst)
	e.w.MarkLabel(fzSkip2)

	dnSkip := e.w.ReserveLabel()
	buf.EmitTestRegImm32(fpscr, 1<<fpscrShiftDN)
	buf.EmitJcc(e.w, CcE, dnSkip)
	emitDefaultNaNIfNaN(e, dst)
	e.w.MarkLabel(dnSkip)

	e.ra.FreeGPR(fpscr)
	e.results[idx] = valueSlot{xmm: dst}
}

// emitFlushSubnormalToZero zeroes the mantissa and exponent of xmmReg's
// low 64 bits (preserving the sign bit) when the magnitude is subnormal
// (biased exponent field all zero, value possibly nonzero). Flushing an
// already-zero value is a no-op, so the zero encoding needs no separate
// exclusion.
func emitFlushSubnormalToZero(e *blockEmitter, xmmReg XMMReg) {
	buf := e.buf
	bits := e.ra.AllocGPR()
	buf.EmitMovqXmmToGpr(bits, xmmReg)

	expMaskReg := e.ra.AllocGPR()
	buf.EmitMovRegImm64(expMaskReg, f64ExpMask)
	exp := e.ra.AllocGPR()
	buf.EmitMovRegReg(exp, bits)
	buf.EmitAndRegReg(exp, expMaskReg)
	e.ra.FreeGPR(expMaskReg)

	buf.EmitCmpRegImm32(exp, 0)
	e.ra.FreeGPR(exp)
	skip := e.w.ReserveLabel()
	buf.EmitJcc(e.w, CcNE, skip) // exponent field nonzero -> not subnormal

	signMaskReg := e.ra.AllocGPR()
	buf.EmitMovRegImm64(signMaskReg, f64SignMask)
	buf.EmitAndRegReg(bits, signMaskReg)
	e.ra.FreeGPR(signMaskReg)
	buf.EmitMovqGprToXmm(xmmReg, bits)

	e.w.MarkLabel(skip)
	e.ra.FreeGPR(bits)
}

// emitDefaultNaNIfNaN overwrites xmmReg's low 64 bits with the default
// quiet-NaN bit pattern when they currently hold any NaN encoding.
func emitDefaultNaNIfNaN(e *blockEmitter, xmmReg XMMReg) {
	buf := e.buf
	bits := e.ra.AllocGPR()
	buf.EmitMovqXmmToGpr(bits, xmmReg)

	absMaskReg := e.ra.AllocGPR()
	buf.EmitMovRegImm64(absMaskReg, ^f64SignMask)
	abs := e.ra.AllocGPR()
	buf.EmitMovRegReg(abs, bits)
	buf.EmitAndRegReg(abs, absMaskReg)
	e.ra.FreeGPR(absMaskReg)
	e.ra.FreeGPR(bits)

	infPatternReg := e.ra.AllocGPR()
	buf.EmitMovRegImm64(infPatternReg, f64ExpMask)
	buf.EmitCmpRegReg(abs, infPatternReg)
	e.ra.FreeGPR(infPatternReg)
	e.ra.FreeGPR(abs)

	skip := e.w.ReserveLabel()
	buf.EmitJcc(e.w, CcLE, skip) // |bits| <= Inf pattern -> not NaN

	nanReg := e.ra.AllocGPR()
	buf.EmitMovRegImm64(nanReg, f64DefaultNaN)
	buf.EmitMovqGprToXmm(xmmReg, nanReg)
	e.ra.FreeGPR(nanReg)

	e.w.MarkLabel(skip)
}

// emitFPToFixed implements the saturating FP-to-fixed conversions
// (FPToFixedS32/FPToFixedU32): round toward zero, clamp into the target
// range, and map any NaN input to zero per the convention this translator
// settled on (recorded as an Open Question resolution).
func emitFPToFixed(e *blockEmitter, inst *Inst, idx int) {
	buf := e.buf
	src := e.resolveXMM(inst.Args[0])

	bits := e.ra.AllocGPR()
	buf.EmitMovqXmmToGpr(bits, src)
	absMaskReg := e.ra.AllocGPR()
	buf.EmitMovRegImm64(absMaskReg, ^f64SignMask)
	abs := e.ra.AllocGPR()
	buf.EmitMovRegReg(abs, bits)
	buf.EmitAndRegReg(abs, absMaskReg)
	e.ra.FreeGPR(absMaskReg)
	e.ra.FreeGPR(bits)

	infPatternReg := e.ra.AllocGPR()
	buf.EmitMovRegImm64(infPatternReg, f64ExpMask)
	buf.EmitCmpRegReg(abs, infPatternReg)
	e.ra.FreeGPR(infPatternReg)
	e.ra.FreeGPR(abs)
	isNaN := e.ra.AllocGPR()
	buf.EmitMovRegImm64(isNaN, 0)
	buf.EmitSetcc(isNaN, CcG) // |bits| > Inf pattern -> NaN

	i64 := e.ra.AllocGPR()
	buf.EmitCvtTSD2SI(i64, src)

	var hiVal, loVal uint64
	if inst.Op == OpFPToFixedS32 {
		hiVal, loVal = 0x7FFFFFFF, 0xFFFFFFFF80000000
	} else {
		hiVal, loVal = 0xFFFFFFFF, 0
	}
	hi := e.ra.AllocGPR()
	buf.EmitMovRegImm64(hi, hiVal)
	buf.EmitCmpRegReg(i64, hi)
	buf.EmitCmovRegReg(CcG, i64, hi)
	e.ra.FreeGPR(hi)
	lo := e.ra.AllocGPR()
	buf.EmitMovRegImm64(lo, loVal)
	buf.EmitCmpRegReg(i64, lo)
	buf.EmitCmovRegReg(CcL, i64, lo)
	e.ra.FreeGPR(lo)

	buf.EmitCmpRegImm32(isNaN, 0)
	zero := e.ra.AllocGPR()
	buf.EmitMovRegImm64(zero, 0)
	buf.EmitCmovRegReg(CcNE, i64, zero)
	e.ra.FreeGPR(zero)
	e.ra.FreeGPR(isNaN)

	buf.EmitZeroExtend32(i64)
	e.results[idx] = valueSlot{isGPR: true, reg: i64}
}
