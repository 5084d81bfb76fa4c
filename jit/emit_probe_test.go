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

// probe builds a one-instruction block by hand, runs it through the real
// opcode handler in dispatchTable, and executes it, so the emit_*.go
// families can be tested against actual CPU-observed results instead of
// just "did it panic". No decoder exists in this package to produce a
// *Block for these opcodes, so the probe plays that role: it allocates a
// CodeBuffer, constructs a blockEmitter directly (legal since this file
// lives in package jit), preloads operand slots as if some earlier
// instruction had already produced them, invokes the opcode's handler,
// appends a store of whatever it left in e.results back into State, and
// returns via the same exitReasonDispatch sentinel callBlock expects.
type probe struct {
	t    *testing.T
	buf  *CodeBuffer
	e    *blockEmitter
	inst Inst
}

func newProbe(t *testing.T, op Opcode) *probe {
	t.Helper()
	buf, err := NewCodeBuffer(1 << 16)
	if err != nil {
		t.Fatalf("NewCodeBuffer: %v", err)
	}
	t.Cleanup(func() { buf.Close() })

	p := &probe{
		t:   t,
		buf: buf,
		e: &blockEmitter{
			buf:     buf,
			w:       newBlockWriter(buf),
			ra:      NewRegAllocator(),
			cache:   NewBlockCache(),
			patches: NewPatchRegistry(),
			results: make([]valueSlot, 4),
		},
	}
	p.inst.Op = op
	return p
}

// gprArg preloads results[idx] with val so a later Args entry referencing
// idx resolves to a GPR already holding that value.
func (p *probe) gprArg(idx int, val uint64) Operand {
	r := p.e.ra.AllocGPR()
	p.buf.EmitMovRegImm64(r, val)
	p.e.results[idx] = valueSlot{isGPR: true, reg: r}
	return RefOperand(idx)
}

// xmmArg preloads results[idx] with the f64 bit pattern bits, standing in
// for a decoder-emitted FP immediate load (no such opcode exists in this
// IR, so the probe performs the GPR-to-XMM move a real producer
// instruction would have left behind).
func (p *probe) xmmArg(idx int, bits uint64) Operand {
	tmp := p.e.ra.AllocGPR()
	p.buf.EmitMovRegImm64(tmp, bits)
	x := p.e.ra.AllocXMM()
	p.buf.EmitMovqGprToXmm(x, tmp)
	p.e.ra.FreeGPR(tmp)
	p.e.results[idx] = valueSlot{isGPR: false, xmm: x}
	return RefOperand(idx)
}

// runGPR invokes op's handler at slot dstIdx, stores the result to
// State.GPR[0], executes the block, and returns the resulting State.
func (p *probe) runGPR(dstIdx int) *State {
	p.t.Helper()
	return p.run(dstIdx, true)
}

// runFPR is runGPR's XMM-result counterpart, storing to State.FPR[0].
func (p *probe) runFPR(dstIdx int) *State {
	p.t.Helper()
	return p.run(dstIdx, false)
}

func (p *probe) run(dstIdx int, wantGPR bool) *State {
	p.t.Helper()
	entry := p.buf.EntryPoint()

	handler, ok := dispatchTable[p.inst.Op]
	if !ok {
		p.t.Fatalf("no dispatch entry for opcode %d", p.inst.Op)
	}
	handler(p.e, &p.inst, dstIdx)

	slot := p.e.results[dstIdx]
	if slot.isGPR != wantGPR {
		p.t.Fatalf("opcode %d left isGPR=%v, want %v", p.inst.Op, slot.isGPR, wantGPR)
	}
	if wantGPR {
		p.buf.EmitMovMemReg(RegRBP, gprOffset(0), slot.reg)
	} else {
		p.buf.EmitMovsdMemXmm(RegRBP, fprOffset(0), slot.xmm)
	}

	p.buf.EmitMovRegImm64(RegRAX, bitsAsUint64(exitReasonDispatch))
	p.buf.EmitRet()
	p.e.w.ResolveFixups()

	state := &State{}
	if got := callBlock(entry, state); got != exitReasonDispatch {
		p.t.Fatalf("callBlock returned %d, want exitReasonDispatch", got)
	}
	return state
}
