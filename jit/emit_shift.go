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

// emitShift handles LogicalShiftLeft/LogicalShiftRight/ArithShiftRight/
// RotateRight. ARM shifts by an immediate count take that count directly
// (0-31 for a 32-bit operand); x86's immediate shift form already behaves
// identically there. The two families diverge once the count can reach 32
// or beyond, which ARM defines explicitly (LSL #32 zeroes the register,
// for instance) and x86's CL-based variable shift does not (the host
// masks the count to the operand's bit width in hardware), so the
// count >= width case is special-cased rather than relying on x86's
// wraparound.
func emitShift(e *blockEmitter, inst *Inst, idx int) {
	buf := e.buf
	val := e.resolveGPR(inst.Args[0])
	dst := e.ra.AllocGPR()
	buf.EmitMovRegReg(dst, val)

	width := uint8(32)
	if inst.Width == Width64 {
		width = 64
	}

	if len(inst.Args) > 1 && inst.Args[1].IsImm {
		amt := uint8(inst.Args[1].Imm)
		emitShiftImm(e, inst.Op, dst, amt, width)
	} else {
		amtReg := e.resolveGPR(inst.Args[1])
		buf.EmitMovRegReg(RegRCX, amtReg)
		buf.EmitAndRegImm32(RegRCX, 0xFF)
		emitShiftVariable(e, inst.Op, dst, width)
	}

	if inst.HasCarryConsumer {
		materializeCarryIntoState(e)
	}
	e.results[idx] = valueSlot{isGPR: true, reg: dst}
}

func emitShiftImm(e *blockEmitter, op Opcode, dst Reg, amt, width uint8) {
	buf := e.buf
	switch {
	case amt == 0:
		// No shift occurs and dst keeps the operand. The carry out of a
		// zero-count shift is the incoming C flag, so CF is reloaded from
		// State.CPSR for a carry consumer to store back unchanged.
		tmp := e.ra.ScratchGPR()
		buf.EmitMovRegMem32(tmp, RegRBP, stateOffsetCPSR)
		buf.EmitBitTestRegImm8(tmp, nzcvShiftC)
		return
	case amt < width:
		switch op {
		case OpLogicalShiftLeft:
			buf.EmitShlRegImm8(dst, amt)
		case OpLogicalShiftRight:
			buf.EmitShrRegImm8(dst, amt)
		case OpArithShiftRight:
			buf.EmitSarRegImm8(dst, amt)
		case OpRotateRight:
			if width == 32 {
				buf.EmitRorReg32Imm8(dst, amt)
			} else {
				buf.EmitRorRegImm8(dst, amt)
			}
		}
	case amt == width:
		switch op {
		case OpLogicalShiftLeft, OpLogicalShiftRight:
			// The result is zero and the carry is the last bit shifted
			// out: bit 0 (LSL) or bit width-1 (LSR) of the original value,
			// loaded into CF with BitTest.
			// Zeroing dst with XOR would clobber the CF that BitTest just
			// set, so zero it with a flags-preserving MOV instead.
			if op == OpLogicalShiftLeft {
				buf.EmitBitTestRegImm8(dst, 0)
			} else {
				buf.EmitBitTestRegImm8(dst, width-1)
			}
			buf.EmitMovRegImm64(dst, 0)
		case OpArithShiftRight:
			buf.EmitSarRegImm8(dst, width-1) // count>=width: sign-extend fully
		case OpRotateRight:
			// Rotating by the full width leaves the operand unchanged and
			// sets carry to its MSB.
			buf.EmitBitTestRegImm8(dst, width-1)
		}
	default: // amt > width
		switch op {
		case OpLogicalShiftLeft, OpLogicalShiftRight:
			buf.EmitXorReg(dst)
			buf.EmitCmpRegImm32(dst, 0) // clears CF/OF; ARM defines carry as 0 here
		case OpArithShiftRight:
			buf.EmitSarRegImm8(dst, width-1)
		case OpRotateRight:
			switch {
			case amt%width == 0:
				buf.EmitBitTestRegImm8(dst, width-1) // operand unchanged, carry = MSB
			case width == 32:
				buf.EmitRorReg32Imm8(dst, amt%32)
			default:
				buf.EmitRorRegImm8(dst, amt%64)
			}
		}
	}
}

// emitShiftVariable emits the branchy form needed when the count is only
// known at run time: ARM's amt==0 (operand and carry unchanged),
// 1<=amt<width (plain shift), amt==width and amt>width cases all behave
// differently, so the code tests CL against those boundaries explicitly
// instead of trusting x86's own count masking.
func emitShiftVariable(e *blockEmitter, op Opcode, dst Reg, width uint8) {
	buf, w := e.buf, e.w

	doneLabel := w.ReserveLabel()
	zeroLabel := w.ReserveLabel()
	zeroAmtLabel := w.ReserveLabel()

	buf.EmitTestRegImm32(RegRCX, 0xFF)
	buf.EmitJcc(w, CcE, zeroAmtLabel) // amt == 0: dst unchanged, CF reloaded from CPSR.C

	buf.EmitCmpRegImm32(RegRCX, int32(width))
	buf.EmitJcc(w, CcAE, zeroLabel) // amt >= width

	switch op {
	case OpLogicalShiftLeft:
		buf.EmitShlRegCL(dst)
	case OpLogicalShiftRight:
		buf.EmitShrRegCL(dst)
	case OpArithShiftRight:
		buf.EmitSarRegCL(dst)
	case OpRotateRight:
		if width == 32 {
			buf.EmitRorReg32CL(dst)
		} else {
			buf.EmitRorRegCL(dst)
		}
	}
	buf.EmitJmp(w, doneLabel)

	w.MarkLabel(zeroLabel)
	switch op {
	case OpLogicalShiftLeft, OpLogicalShiftRight:
		// amt == width: zero result, carry as in emitShiftImm's amt ==
		// width branch. amt > width: zero result, carry 0 (XOR clears CF).
		overLabel := w.ReserveLabel()
		buf.EmitCmpRegImm32(RegRCX, int32(width))
		buf.EmitJcc(w, CcNE, overLabel)
		if op == OpLogicalShiftLeft {
			buf.EmitBitTestRegImm8(dst, 0)
		} else {
			buf.EmitBitTestRegImm8(dst, width-1)
		}
		buf.EmitMovRegImm64(dst, 0)
		buf.EmitJmp(w, doneLabel)
		w.MarkLabel(overLabel)
		buf.EmitXorReg(dst)
	case OpArithShiftRight:
		buf.EmitSarRegImm8(dst, width-1)
	case OpRotateRight:
		// amt >= width here (amt == 0 was already handled by doneLabel
		// above). CL still holds the untruncated count; the native ROR's
		// hardware CL-masking (5 bits for a 32-bit operand, 6 for 64-bit)
		// matches ARM's own mod-width rotate distance, but only when that
		// masked distance is nonzero. When amt is a nonzero multiple of
		// width, the masked distance is 0, so the native rotate would
		// leave the operand AND every flag (including CF) completely
		// untouched — ARM instead defines the operand as unchanged but
		// carry as the operand's own MSB, so that case is split out and
		// materializes carry explicitly rather than falling into the
		// native rotate.
		maskBits := uint32(0x1F)
		if width == 64 {
			maskBits = 0x3F
		}
		rotateLabel := w.ReserveLabel()
		buf.EmitTestRegImm32(RegRCX, maskBits)
		buf.EmitJcc(w, CcNE, rotateLabel)
		buf.EmitBitTestRegImm8(dst, width-1)
		buf.EmitJmp(w, doneLabel)
		w.MarkLabel(rotateLabel)
		if width == 32 {
			buf.EmitRorReg32CL(dst)
		} else {
			buf.EmitRorRegCL(dst)
		}
	}
	buf.EmitJmp(w, doneLabel)

	w.MarkLabel(zeroAmtLabel)
	tmp := e.ra.ScratchGPR()
	buf.EmitMovRegMem32(tmp, RegRBP, stateOffsetCPSR)
	buf.EmitBitTestRegImm8(tmp, nzcvShiftC)

	w.MarkLabel(doneLabel)
}
