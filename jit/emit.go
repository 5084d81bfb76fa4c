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

// blockEmitter holds everything one call to Compile threads through the
// per-opcode handlers below: the code buffer, the block-local label
// writer, the register allocator and the materialized location of every
// instruction emitted so far.
type blockEmitter struct {
	buf          *CodeBuffer
	w            *blockWriter
	ra           *RegAllocator
	cache        *BlockCache
	patches      *PatchRegistry
	dispatchStub uintptr
	block        *Block

	// results[i] holds where instruction i's value landed. isGPR
	// distinguishes which of reg/xmm is meaningful.
	results []valueSlot
}

type valueSlot struct {
	isGPR bool
	reg   Reg
	xmm   XMMReg
}

// resolveGPR materializes operand op into a GPR: an immediate is loaded
// into a fresh scratch register, a reference returns the register its
// producing instruction already left its result in.
func (e *blockEmitter) resolveGPR(op Operand) Reg {
	if op.IsImm {
		r := e.ra.AllocGPR()
		e.buf.EmitMovRegImm64(r, uint64(op.Imm))
		return r
	}
	slot := e.results[op.Ref]
	if !slot.isGPR {
		panicf("jit: operand referencing inst %d expected a GPR result, got XMM", op.Ref)
	}
	return slot.reg
}

func (e *blockEmitter) resolveXMM(op Operand) XMMReg {
	if op.IsImm {
		panicf("jit: floating-point operand cannot be an immediate operand")
	}
	slot := e.results[op.Ref]
	if slot.isGPR {
		panicf("jit: operand referencing inst %d expected an XMM result, got GPR", op.Ref)
	}
	return slot.xmm
}

// opcodeHandler emits code for one instruction and records its result
// location in e.results[idx].
type opcodeHandler func(e *blockEmitter, inst *Inst, idx int)

// dispatchTable maps each Opcode to its handler. Built once at package
// init rather than as a giant switch statement in EmitInst, per the
// "re-architect as a per-opcode dispatch table" note — every handler lives
// in the emit_*.go file for its component instead of one monolithic
// function.
var dispatchTable = map[Opcode]opcodeHandler{
	OpLogicalShiftLeft: emitShift,
	OpLogicalShiftRight: emitShift,
	OpArithShiftRight: emitShift,
	OpRotateRight: emitShift,

	OpSignedSaturatedAdd32: emitSaturatedAddSub,
	OpSignedSaturatedSub32: emitSaturatedAddSub,
	OpUnsignedSaturation:   emitSaturation,
	OpSignedSaturation:     emitSaturation,

	OpPackedAddU8: emitPackedAddSub, OpPackedAddS8: emitPackedAddSub,
	OpPackedAddU16: emitPackedAddSub, OpPackedAddS16: emitPackedAddSub,
	OpPackedSubU8: emitPackedAddSub, OpPackedSubS8: emitPackedAddSub,
	OpPackedSubU16: emitPackedAddSub, OpPackedSubS16: emitPackedAddSub,
	OpPackedHalvingAddU8: emitPackedHalving, OpPackedHalvingAddS8: emitPackedHalving,
	OpPackedHalvingAddU16: emitPackedHalving, OpPackedHalvingAddS16: emitPackedHalving,
	OpPackedHalvingSubU8: emitPackedHalving, OpPackedHalvingSubS8: emitPackedHalving,
	OpPackedHalvingSubU16: emitPackedHalving, OpPackedHalvingSubS16: emitPackedHalving,
	OpPackedAddSub: emitPackedAddSubCross,
	OpPackedSubAdd: emitPackedAddSubCross,

	OpFPAdd: emitFPBinOp, OpFPSub: emitFPBinOp, OpFPMul: emitFPBinOp, OpFPDiv: emitFPBinOp,
	OpFPToFixedS32: emitFPToFixed, OpFPToFixedU32: emitFPToFixed,

	OpGetCarryFromOp:    emitPseudoOpUnreachable,
	OpGetOverflowFromOp: emitPseudoOpUnreachable,
	OpGetGEFromOp:       emitPseudoOpUnreachable,
	OpGetNZCVFromOp:     emitPseudoOpUnreachable,
}

// emitPseudoOpUnreachable panics if a pseudo-op survives to emission time:
// fusePseudoOps must erase every GetCarryFromOp/GetOverflowFromOp/
// GetGEFromOp/GetNZCVFromOp before EmitBlock's main loop runs.
func emitPseudoOpUnreachable(e *blockEmitter, inst *Inst, idx int) {
	panicf("jit: pseudo-op %d reached emission without being fused into its producer", inst.Op)
}

// fusePseudoOps implements pseudo-op fusion: a GetCarryFromOp/
// GetOverflowFromOp/GetGEFromOp/GetNZCVFromOp immediately following the
// instruction it reads from is erased, and the producer's HasXConsumer
// flag (already set by the optimizer) tells the producer's own handler to
// write that by-product into State instead (CPSR's C or V bit, or
// State.GE); the erased pseudo-op emits nothing and gets no result value
// of its own. Mirrors the
// fusion dynarmic's own emitter performs for the same family of IR pairs.
func fusePseudoOps(insts []Inst) {
	for i := 1; i < len(insts); i++ {
		switch insts[i].Op {
		case OpGetCarryFromOp, OpGetOverflowFromOp, OpGetGEFromOp, OpGetNZCVFromOp:
			if len(insts[i].Args) != 1 || insts[i].Args[0].IsImm {
				continue
			}
			producer := insts[i].Args[0].Ref
			if producer != i-1 {
				continue
			}
			insts[i].erased = true
		}
	}
}

// EmitBlock emits block's condition prelude (if any), its instructions,
// then its terminal, into buf, then resolves intra-block label fixups.
// Returns the block's entry point. cache and patches let LinkBlock-style
// terminals resolve a cross-block reference immediately when the target
// is already compiled, or register a patch site when it is not;
// dispatchStub is the fallback those unresolved sites point at until
// Patch retargets them.
func EmitBlock(buf *CodeBuffer, cache *BlockCache, patches *PatchRegistry, dispatchStub uintptr, block *Block) uintptr {
	fusePseudoOps(block.Insts)

	entry := buf.EntryPoint()
	e := &blockEmitter{
		buf:          buf,
		w:            newBlockWriter(buf),
		ra:           NewRegAllocator(),
		cache:        cache,
		patches:      patches,
		dispatchStub: dispatchStub,
		block:        block,
		results:      make([]valueSlot, len(block.Insts)),
	}

	// EmitConditionPrelude branches to passLabel exactly when Condition
	// holds; the fallthrough path is therefore where a *failed* condition
	// lands, so the cheap condition-failed exit belongs between the
	// prelude and passLabel, not after the block's own body.
	if block.Condition != CondAL {
		passLabel := e.w.ReserveLabel()
		EmitConditionPrelude(e, block.Condition, passLabel)
		emitConditionFailedExit(e, block)
		e.w.MarkLabel(passLabel)
	}

	EmitAddCycles(buf, block.CycleCount)

	for i := range block.Insts {
		inst := &block.Insts[i]
		if inst.erased {
			continue
		}
		handler, ok := dispatchTable[inst.Op]
		if !ok {
			panicf("jit: no emitter registered for opcode %d", inst.Op)
		}
		handler(e, inst, i)
	}

	EmitTerminal(e, &block.Terminal)
	e.w.ResolveFixups()
	return entry
}

// EmitAddCycles subtracts n from State.CyclesRemaining, the per-block
// accounting every emitted block performs regardless of opcode content.
func EmitAddCycles(buf *CodeBuffer, n uint32) {
	if n == 0 {
		return
	}
	buf.EmitSubMemImm32(RegRBP, stateOffsetCyclesRemaining, n)
}
