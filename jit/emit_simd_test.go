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

func packedBin(t *testing.T, op Opcode, a, b uint64, withGE bool) *State {
	t.Helper()
	p := newProbe(t, op)
	p.inst.HasGEConsumer = withGE
	a0 := p.gprArg(0, a)
	a1 := p.gprArg(1, b)
	p.inst.Args = []Operand{a0, a1}
	return p.runGPR(2)
}

func TestPackedAddU8WrapsPerLaneAndSetsGEOnCarry(t *testing.T) {
	state := packedBin(t, OpPackedAddU8, 0x000000FF, 0x00000002, true)
	if state.GPR[0] != 0x00000001 {
		t.Fatalf("UADD8 0xFF+0x02: got %#x, want 0x1 (byte 0 wraps)", state.GPR[0])
	}
	want := [4]uint8{1, 0, 0, 0}
	if state.GE != want {
		t.Fatalf("UADD8 GE: got %v, want %v", state.GE, want)
	}
}

func TestPackedAddS8WrapsLikeTwosComplement(t *testing.T) {
	state := packedBin(t, OpPackedAddS8, 0x0000007F, 0x00000001, false)
	if state.GPR[0] != 0x00000080 {
		t.Fatalf("SADD8 0x7f+0x01: got %#x, want 0x80", state.GPR[0])
	}
}

func TestPackedSubU16PerLane(t *testing.T) {
	state := packedBin(t, OpPackedSubU16, 0x00050002, 0x00010001, false)
	if state.GPR[0] != 0x00040001 {
		t.Fatalf("USUB16 lanes (5,2)-(1,1): got %#x, want 0x40001", state.GPR[0])
	}
}

func TestPackedAddU8NoCarryLeavesGEClear(t *testing.T) {
	state := packedBin(t, OpPackedAddU8, 0x00000001, 0x00000001, true)
	want := [4]uint8{0, 0, 0, 0}
	if state.GE != want {
		t.Fatalf("UADD8 1+1 GE: got %v, want all clear", state.GE)
	}
}

func packedHalving(t *testing.T, op Opcode, a, b uint64) *State {
	t.Helper()
	p := newProbe(t, op)
	a0 := p.gprArg(0, a)
	a1 := p.gprArg(1, b)
	p.inst.Args = []Operand{a0, a1}
	return p.runGPR(2)
}

func TestPackedHalvingAddU8TruncatesTowardZero(t *testing.T) {
	state := packedHalving(t, OpPackedHalvingAddU8, 0x00000004, 0x00000002)
	if state.GPR[0] != 0x00000003 {
		t.Fatalf("UHADD8 (4+2)>>1: got %#x, want 3", state.GPR[0])
	}
}

// TestPackedHalvingSubS16TruncatesTowardNegativeInfinity matches ARM's
// SHSUB16 definition, which rounds toward -infinity rather than toward
// zero the way a naive signed divide-by-2 would.
func TestPackedHalvingSubS16TruncatesTowardNegativeInfinity(t *testing.T) {
	state := packedHalving(t, OpPackedHalvingSubS16, 0x0000FFF8, 0x00000004) // lane0: -8 - 4 = -12
	if int16(state.GPR[0]) != -6 {
		t.Fatalf("SHSUB16 (-8-4)>>1: got %d, want -6", int16(state.GPR[0]))
	}
}

func TestPackedAddSubCrossSASX(t *testing.T) {
	state := packedBin(t, OpPackedAddSub, 0x00050002, 0x00030001, false)
	if state.GPR[0] != 0x00040005 {
		t.Fatalf("SASX lo=a.lo+b.hi hi=a.hi-b.lo: got %#x, want 0x40005", state.GPR[0])
	}
}

func TestPackedAddSubCrossSSAX(t *testing.T) {
	state := packedBin(t, OpPackedSubAdd, 0x00050002, 0x00030001, false)
	if state.GPR[0] != 0x0006FFFF {
		t.Fatalf("SSAX lo=a.lo-b.hi hi=a.hi+b.lo: got %#x, want 0x6ffff", state.GPR[0])
	}
}
