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

// exitReasonDispatch is returned in RAX by code that wants the Go-side Run
// loop to re-enter the dispatcher without surfacing anything to the
// embedder: read State.Upcoming, compile it if the cache has not already
// done so, and call back into callBlock. It is deliberately outside
// RunExitReason's 0-4 range so dispatcher.go never confuses an internal
// bounce with a real exit reason.
const exitReasonDispatch int64 = -1

// EmitTerminal closes out a block according to its terminal's kind, the
// exhaustive match spec.md §9 calls for over TerminalKind's variants.
func EmitTerminal(e *blockEmitter, t *Terminal) {
	switch t.Kind {
	case TermLinkBlock:
		emitLinkBlock(e, t.Target, true)
	case TermLinkBlockFast:
		emitLinkBlock(e, t.Target, false)
	case TermPopRSBHint:
		emitPopRSBHint(e, t)
	case TermIf:
		emitIfTerminal(e, t)
	case TermCheckBit:
		emitCheckBit(e, t)
	case TermCheckHalt:
		emitCheckHalt(e, t)
	case TermInterpret:
		emitInterpret(e, t)
	case TermReturnToDispatch:
		emitReturnToDispatch(e, t)
	default:
		panicf("jit: unknown terminal kind %d", t.Kind)
	}
}

// emitWriteUpcoming stores target into State.Upcoming. Every terminal that
// might hand control back to the dispatcher writes this first, since
// that's the only place the dispatcher loop or a later Run call knows to
// look for where to resume.
func emitWriteUpcoming(e *blockEmitter, target Location) {
	tmp := e.ra.ScratchGPR()
	e.buf.EmitMovRegImm64(tmp, uint64(target))
	e.buf.EmitMovMemReg(RegRBP, stateOffsetUpcoming, tmp)
}

// emitReturnImmediate loads reason into RAX and RETs, the exit every
// embedder-visible RunExitReason is produced by.
func emitReturnImmediate(e *blockEmitter, reason RunExitReason) {
	e.buf.EmitMovRegImm64(RegRAX, uint64(reason))
	e.buf.EmitRet()
}

// emitReturnToDispatchLoop RETs with the internal dispatch sentinel rather
// than a RunExitReason: dispatcher.go's Run loop reads this back and keeps
// going on the same call to Run, it never reaches the embedder.
func emitReturnToDispatchLoop(e *blockEmitter) {
	e.buf.EmitMovRegImm64(RegRAX, bitsAsUint64(exitReasonDispatch))
	e.buf.EmitRet()
}

// emitLinkTo jumps straight to target's compiled entry point if the cache
// already has one, otherwise emits an unconditional jump that defaults to
// the dispatch stub and registers the site with the patch registry so
// Patch can retarget it in place once target is compiled. Grounded on
// dynarmic's BlockOfCode::Patch / its callers in emit_x64.cpp, which take
// exactly this cache-hit-or-register-a-patch-site shape for every
// cross-block reference.
func emitLinkTo(e *blockEmitter, target Location) {
	if desc, ok := e.cache.GetBasicBlock(target); ok {
		e.buf.EmitJmpRel32ToAddr(desc.EntryPoint)
		return
	}
	pos := e.buf.EmitJmpRel32Unresolved()
	saved := e.buf.CurrentPos()
	e.buf.SeekTo(pos)
	e.buf.PatchJmpRel32(e.dispatchStub)
	e.buf.SeekTo(saved)
	e.patches.Register(target, patchJmp, pos)
}

// emitLinkBlock implements TermLinkBlock (checkCycles true) and
// TermLinkBlockFast (checkCycles false): write where we're going, charge
// for running out of cycles if this terminal is the kind that checks, then
// chain to it directly or through the dispatcher.
func emitLinkBlock(e *blockEmitter, target Location, checkCycles bool) {
	emitWriteUpcoming(e, target)
	if checkCycles {
		emitCyclesGuard(e)
	}
	emitLinkTo(e, target)
}

// emitCyclesGuard returns ExitCyclesExhausted immediately if
// State.CyclesRemaining has reached zero or gone negative, otherwise falls
// through to let the caller chain onward. Every LinkBlock-style exit
// reads this the same way cycle accounting does in EmitAddCycles: a
// signed comparison against zero, since CyclesRemaining is allowed to go
// negative by up to one block's worth of cost.
func emitCyclesGuard(e *blockEmitter) {
	buf := e.buf
	cyc := e.ra.ScratchGPR()
	buf.EmitMovRegMem(cyc, RegRBP, stateOffsetCyclesRemaining)
	buf.EmitCmpRegImm32(cyc, 0)
	resume := e.w.ReserveLabel()
	buf.EmitJcc(e.w, CcG, resume)
	emitReturnImmediate(e, ExitCyclesExhausted)
	e.w.MarkLabel(resume)
}

// emitConditionFailedExit is the path EmitBlock takes when a block's own
// condition prelude does not hold: charge the (usually much cheaper)
// ConditionFailedCycleCount instead of the block's full CycleCount, and
// link onward exactly like a LinkBlock terminal to
// ConditionFailedLocation (ordinarily just the next guest instruction).
func emitConditionFailedExit(e *blockEmitter, block *Block) {
	EmitAddCycles(e.buf, block.ConditionFailedCycleCount)
	emitLinkBlock(e, block.ConditionFailedLocation, true)
}

// emitPopRSBHint stands in for dynarmic's unrolled return-stack-buffer
// scan. That technique compares a dynamically computed guest address
// against State's RSB ring to jump straight back into a caller's block
// without going through the dispatcher; nothing on the IR's Terminal type
// carries the register holding that dynamic address, only a statically
// predicted Target, so this degrades to a plain checked LinkBlock against
// that prediction. State.RSBLookup documents the full semantics this
// would implement if the IR grew that operand.
func emitPopRSBHint(e *blockEmitter, t *Terminal) {
	emitLinkBlock(e, t.Target, true)
}

// emitIfTerminal implements the If terminal: evaluate Cond, and run
// whichever of Then/Else survives. EmitConditionPrelude already knows how
// to branch to a same-block label exactly when cond holds, so Else is
// emitted inline on the fallthrough path and Then after the label.
func emitIfTerminal(e *blockEmitter, t *Terminal) {
	thenLabel := e.w.ReserveLabel()
	EmitConditionPrelude(e, t.Cond, thenLabel)
	EmitTerminal(e, t.Else)
	e.w.MarkLabel(thenLabel)
	EmitTerminal(e, t.Then)
}

// emitCheckBit implements the CheckBit terminal: test BitMask against the
// State word at BitOffset, and return to the dispatcher when it's set
// instead of continuing straight on to Target. Used for guest-side
// condition bits (pending-exception flags and the like) a full block
// chain should not run past without giving the host a chance to react.
func emitCheckBit(e *blockEmitter, t *Terminal) {
	buf := e.buf
	emitWriteUpcoming(e, t.Target)

	tmp := e.ra.ScratchGPR()
	buf.EmitMovRegMem32(tmp, RegRBP, int32(t.BitOffset))
	buf.EmitTestRegImm32(tmp, uint32(t.BitMask))
	clearLabel := e.w.ReserveLabel()
	buf.EmitJcc(e.w, CcE, clearLabel) // bit clear: proceed to Target directly
	emitReturnToDispatchLoop(e)
	e.w.MarkLabel(clearLabel)
	emitCyclesGuard(e)
	emitLinkTo(e, t.Target)
}

// emitCheckHalt implements the CheckHalt terminal: a safe point the
// upstream translator inserts (loop back-edges, typically) purely so the
// dispatcher gets a chance to observe a HaltExecution request within
// bounded time. haltFlag itself is only ever polled from Go between
// blocks (halt.go) — generated code has no business checking it directly
// — so this terminal's whole job is to yield back to the dispatch loop and
// let Run's own poll decide whether to stop here or keep going.
func emitCheckHalt(e *blockEmitter, t *Terminal) {
	emitWriteUpcoming(e, t.Target)
	emitReturnToDispatchLoop(e)
}

// emitInterpret implements the Interpret terminal: ask the embedder to
// single-step NumInstructions guest instructions through its own
// interpreter before dispatch resumes at Next within the same Run call.
// NumInstructions is
// known at translation time, so it is simply embedded as an immediate.
func emitInterpret(e *blockEmitter, t *Terminal) {
	buf := e.buf
	emitWriteUpcoming(e, t.Next)
	tmp := e.ra.ScratchGPR()
	buf.EmitMovRegImm64(tmp, uint64(t.NumInstructions))
	buf.EmitMovMemReg32(RegRBP, stateOffsetInterpretCount, tmp)
	emitReturnImmediate(e, ExitInterpretRequested)
}

// emitReturnToDispatch implements the ReturnToDispatch terminal: an
// unconditional escape hatch used when a block's own body already
// exhausted what it can usefully do in native code (a mid-block exception,
// for instance) and just needs to hand control back without claiming any
// particular RunExitReason of its own.
func emitReturnToDispatch(e *blockEmitter, t *Terminal) {
	emitWriteUpcoming(e, t.Target)
	emitReturnToDispatchLoop(e)
}
