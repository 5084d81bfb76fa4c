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

// EmitConditionPrelude emits the test of cond against State.CPSR's NZCV
// bits and a jump to passLabel when the condition holds. When it does not
// hold, the block instead charges ConditionFailedCycleCount and exits via
// a LinkBlock-style jump to ConditionFailedLocation — condition-failure is
// not an error, just a cheaper block whose only job is housekeeping before
// handing control to the next instruction.
//
// Packing NZCV into CPSR's top four bits (state.go) means every condition
// test here reduces to a CMP/TEST against a shifted mask instead of four
// separate bit extractions, mirroring the layout dynarmic's own A32 JIT
// state uses so the host EFLAGS can feed it directly after a prelude
// instruction sequence.
func EmitConditionPrelude(e *blockEmitter, cond Condition, passLabel int) {
	buf := e.buf
	tmp := e.ra.ScratchGPR()
	buf.EmitMovRegMem32(tmp, RegRBP, stateOffsetCPSR)

	switch cond {
	case CondEQ, CondNE:
		buf.EmitTestRegImm32(tmp, 1<<nzcvShiftZ)
		cc := CcNE
		if cond == CondNE {
			cc = CcE
		}
		buf.EmitJcc(e.w, cc, passLabel)
	case CondCS, CondCC:
		buf.EmitTestRegImm32(tmp, 1<<nzcvShiftC)
		cc := CcNE
		if cond == CondCC {
			cc = CcE
		}
		buf.EmitJcc(e.w, cc, passLabel)
	case CondMI, CondPL:
		buf.EmitTestRegImm32(tmp, 1<<nzcvShiftN)
		cc := CcNE
		if cond == CondPL {
			cc = CcE
		}
		buf.EmitJcc(e.w, cc, passLabel)
	case CondVS, CondVC:
		buf.EmitTestRegImm32(tmp, 1<<nzcvShiftV)
		cc := CcNE
		if cond == CondVC {
			cc = CcE
		}
		buf.EmitJcc(e.w, cc, passLabel)
	case CondHI, CondLS:
		// C==1 && Z==0
		buf.EmitAndRegImm32(tmp, int32(1<<nzcvShiftC|1<<nzcvShiftZ))
		buf.EmitCmpRegImm32(tmp, int32(1<<nzcvShiftC))
		cc := CcE
		if cond == CondLS {
			cc = CcNE
		}
		buf.EmitJcc(e.w, cc, passLabel)
	case CondGE, CondLT:
		// N == V
		n := e.ra.AllocGPR()
		buf.EmitMovRegReg(n, tmp)
		buf.EmitAndRegImm32(n, bitsAsInt32(uint32(1)<<nzcvShiftN))
		v := e.ra.AllocGPR()
		buf.EmitMovRegReg(v, tmp)
		buf.EmitAndRegImm32(v, 1<<nzcvShiftV)
		buf.EmitShlRegImm8(v, nzcvShiftN-nzcvShiftV)
		buf.EmitCmpRegReg(n, v)
		e.ra.FreeGPR(n)
		e.ra.FreeGPR(v)
		cc := CcE
		if cond == CondLT {
			cc = CcNE
		}
		buf.EmitJcc(e.w, cc, passLabel)
	case CondGT, CondLE:
		// !Z && (N == V)
		notZ := e.ra.AllocGPR()
		buf.EmitMovRegReg(notZ, tmp)
		buf.EmitAndRegImm32(notZ, 1<<nzcvShiftZ)
		buf.EmitCmpRegImm32(notZ, 0)
		e.ra.FreeGPR(notZ)
		failLabel := e.w.ReserveLabel()
		zTarget := failLabel
		if cond == CondLE {
			zTarget = passLabel
		}
		buf.EmitJcc(e.w, CcNE, zTarget) // Z set -> fails GT (and passes LE)
		n := e.ra.AllocGPR()
		buf.EmitMovRegReg(n, tmp)
		buf.EmitAndRegImm32(n, bitsAsInt32(uint32(1)<<nzcvShiftN))
		v := e.ra.AllocGPR()
		buf.EmitMovRegReg(v, tmp)
		buf.EmitAndRegImm32(v, 1<<nzcvShiftV)
		buf.EmitShlRegImm8(v, nzcvShiftN-nzcvShiftV)
		buf.EmitCmpRegReg(n, v)
		e.ra.FreeGPR(n)
		e.ra.FreeGPR(v)
		cc := CcE
		if cond == CondLE {
			cc = CcNE
		}
		buf.EmitJcc(e.w, cc, passLabel)
		e.w.MarkLabel(failLabel)
	case CondAL:
		buf.EmitJmp(e.w, passLabel)
	default:
		panicf("jit: unsupported condition code %d", cond)
	}
}

// materializeCarryIntoState ORs the host carry flag (CF, set by the
// instruction just emitted) into State.CPSR's C bit, leaving N/Z/V
// untouched. Used by opcode handlers whose HasCarryConsumer flag is set.
func materializeCarryIntoState(e *blockEmitter) {
	tmp := e.ra.ScratchGPR()
	e.buf.EmitSetcc(tmp, CcB) // CF -> tmp (0 or 1); CcB tests CF==1
	e.buf.EmitShlRegImm8(tmp, nzcvShiftC)
	cpsr := e.ra.AllocGPR()
	e.buf.EmitMovRegMem32(cpsr, RegRBP, stateOffsetCPSR)
	e.buf.EmitAndRegImm32(cpsr, bitsAsInt32(^uint32(1<<nzcvShiftC)))
	e.buf.EmitOrRegReg(cpsr, tmp)
	e.buf.EmitMovMemReg32(RegRBP, stateOffsetCPSR, cpsr)
	e.ra.FreeGPR(cpsr)
}

// materializeOverflowIntoState ORs the host overflow flag (OF) into
// State.CPSR's V bit.
func materializeOverflowIntoState(e *blockEmitter) {
	tmp := e.ra.ScratchGPR()
	e.buf.EmitSetcc(tmp, CcO)
	e.buf.EmitShlRegImm8(tmp, nzcvShiftV)
	cpsr := e.ra.AllocGPR()
	e.buf.EmitMovRegMem32(cpsr, RegRBP, stateOffsetCPSR)
	e.buf.EmitAndRegImm32(cpsr, bitsAsInt32(^uint32(1<<nzcvShiftV)))
	e.buf.EmitOrRegReg(cpsr, tmp)
	e.buf.EmitMovMemReg32(RegRBP, stateOffsetCPSR, cpsr)
	e.ra.FreeGPR(cpsr)
}
