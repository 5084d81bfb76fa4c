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
	"math"
	"testing"
)

func fpBin(t *testing.T, op Opcode, a, b float64, fpscr uint32) float64 {
	t.Helper()
	p := newProbe(t, op)
	a0 := p.xmmArg(0, math.Float64bits(a))
	a1 := p.xmmArg(1, math.Float64bits(b))
	p.inst.Args = []Operand{a0, a1}
	p.buf.EmitMovRegImm64(RegRCX, uint64(fpscr))
	p.buf.EmitMovMemReg32(RegRBP, stateOffsetFPSCR, RegRCX)
	state := p.runFPR(2)
	return math.Float64frombits(state.FPR[0][0])
}

func TestFPAddPlain(t *testing.T) {
	got := fpBin(t, OpFPAdd, 1.0, 2.0, 0)
	if got != 3.0 {
		t.Fatalf("FPAdd(1,2): got %v, want 3", got)
	}
}

func TestFPMulPlain(t *testing.T) {
	got := fpBin(t, OpFPMul, 3.0, 4.0, 0)
	if got != 12.0 {
		t.Fatalf("FPMul(3,4): got %v, want 12", got)
	}
}

func TestFPSubPlain(t *testing.T) {
	got := fpBin(t, OpFPSub, 5.0, 2.0, 0)
	if got != 3.0 {
		t.Fatalf("FPSub(5,2): got %v, want 3", got)
	}
}

// TestFPMulFlushesSubnormalOperandWhenFZSet matches the ARM FPSCR.FZ
// contract: a subnormal operand is treated as zero before the op runs,
// not just the result afterward.
func TestFPMulFlushesSubnormalOperandWhenFZSet(t *testing.T) {
	got := fpBin(t, OpFPMul, math.SmallestNonzeroFloat64, 1.0, 1<<fpscrShiftFZ)
	if got != 0 {
		t.Fatalf("FPMul(subnormal,1) with FZ set: got %v, want 0", got)
	}
}

func TestFPMulKeepsSubnormalOperandWhenFZClear(t *testing.T) {
	got := fpBin(t, OpFPMul, math.SmallestNonzeroFloat64, 1.0, 0)
	if got != math.SmallestNonzeroFloat64 {
		t.Fatalf("FPMul(subnormal,1) with FZ clear: got %v, want unchanged subnormal", got)
	}
}

// TestFPDivZeroByZeroGivesDefaultNaNWhenDNSet confirms the DN bit forces
// every NaN result onto the exact default quiet-NaN pattern, regardless of
// whatever sign or payload the native DIVSD instruction itself produced.
func TestFPDivZeroByZeroGivesDefaultNaNWhenDNSet(t *testing.T) {
	p := newProbe(t, OpFPDiv)
	a0 := p.xmmArg(0, math.Float64bits(0.0))
	a1 := p.xmmArg(1, math.Float64bits(0.0))
	p.inst.Args = []Operand{a0, a1}
	p.buf.EmitMovRegImm64(RegRCX, uint64(1<<fpscrShiftDN))
	p.buf.EmitMovMemReg32(RegRBP, stateOffsetFPSCR, RegRCX)
	state := p.runFPR(2)
	if state.FPR[0][0] != f64DefaultNaN {
		t.Fatalf("FPDiv(0,0) with DN set: got %#x, want default NaN %#x", state.FPR[0][0], f64DefaultNaN)
	}
}

func fpToFixed(t *testing.T, op Opcode, a float64) uint64 {
	t.Helper()
	p := newProbe(t, op)
	a0 := p.xmmArg(0, math.Float64bits(a))
	p.inst.Args = []Operand{a0}
	state := p.runGPR(1)
	return state.GPR[0]
}

func TestFPToFixedS32TruncatesTowardZero(t *testing.T) {
	if got := fpToFixed(t, OpFPToFixedS32, 3.7); int32(got) != 3 {
		t.Fatalf("FPToFixedS32(3.7): got %d, want 3", int32(got))
	}
	if got := fpToFixed(t, OpFPToFixedS32, -3.7); int32(got) != -3 {
		t.Fatalf("FPToFixedS32(-3.7): got %d, want -3", int32(got))
	}
}

func TestFPToFixedS32ClampsToMaxOnOverflow(t *testing.T) {
	got := fpToFixed(t, OpFPToFixedS32, 1e10)
	if int32(got) != math.MaxInt32 {
		t.Fatalf("FPToFixedS32(1e10): got %d, want %d", int32(got), math.MaxInt32)
	}
}

func TestFPToFixedS32ClampsToMinOnNegativeOverflow(t *testing.T) {
	got := fpToFixed(t, OpFPToFixedS32, -1e10)
	if int32(got) != math.MinInt32 {
		t.Fatalf("FPToFixedS32(-1e10): got %d, want %d", int32(got), math.MinInt32)
	}
}

func TestFPToFixedS32MapsNaNToZero(t *testing.T) {
	got := fpToFixed(t, OpFPToFixedS32, math.NaN())
	if int32(got) != 0 {
		t.Fatalf("FPToFixedS32(NaN): got %d, want 0", int32(got))
	}
}

func TestFPToFixedU32ClampsNegativeToZero(t *testing.T) {
	got := fpToFixed(t, OpFPToFixedU32, -5.0)
	if uint32(got) != 0 {
		t.Fatalf("FPToFixedU32(-5): got %d, want 0", uint32(got))
	}
}

func TestFPToFixedU32WithinRange(t *testing.T) {
	got := fpToFixed(t, OpFPToFixedU32, 7.9)
	if uint32(got) != 7 {
		t.Fatalf("FPToFixedU32(7.9): got %d, want 7", uint32(got))
	}
}
