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

// The IR opcode schema, decoder and optimizer are external collaborators
// (spec.md §1) — this file defines only the narrow surface the Emitter
// Core needs to have something concrete to dispatch on: a per-opcode
// enum and the instruction/terminal shapes the component descriptions in
// spec.md §4.D name explicitly.

// Opcode enumerates the IR instructions the emitter core knows how to
// translate. Every handler in emit_*.go is keyed by one of these in the
// dispatch table built in emit.go, per the "per-opcode dispatch table"
// note in spec.md §9.
type Opcode uint16

const (
	OpInvalid Opcode = iota

	// Shift/rotate (spec.md §4.D "Shift and rotate semantics").
	OpLogicalShiftLeft
	OpLogicalShiftRight
	OpArithShiftRight
	OpRotateRight

	// Saturating arithmetic (spec.md §4.D "Saturating arithmetic").
	OpSignedSaturatedAdd32
	OpSignedSaturatedSub32
	OpUnsignedSaturation
	OpSignedSaturation

	// Packed SIMD with GE side effect (spec.md §4.D "Packed SIMD ...").
	OpPackedAddU8
	OpPackedAddS8
	OpPackedAddU16
	OpPackedAddS16
	OpPackedSubU8
	OpPackedSubS8
	OpPackedSubU16
	OpPackedSubS16
	OpPackedHalvingAddU8
	OpPackedHalvingAddS8
	OpPackedHalvingAddU16
	OpPackedHalvingAddS16
	OpPackedHalvingSubU8
	OpPackedHalvingSubS8
	OpPackedHalvingSubU16
	OpPackedHalvingSubS16
	OpPackedAddSub // cross add/sub of a 32-bit packed halfword pair
	OpPackedSubAdd

	// Floating point (spec.md §4.D "Floating-point operations").
	OpFPAdd
	OpFPSub
	OpFPMul
	OpFPDiv
	OpFPToFixedS32
	OpFPToFixedU32

	// Pseudo-ops: consume a by-product of the instruction immediately
	// preceding them in the same block. The emitter fuses them into the
	// producer's codegen and erases them from the instruction list
	// (spec.md §4.D "Pseudo-op fusion"); their dispatch-table handler,
	// emitPseudoOpUnreachable, panics if one is reached standalone.
	OpGetCarryFromOp
	OpGetOverflowFromOp
	OpGetGEFromOp
	OpGetNZCVFromOp
)

// OperandWidth distinguishes the scalar width a shift/saturation opcode
// operates on; packed opcodes encode their lane width in the opcode name
// itself (U8/S8/U16/S16).
type OperandWidth uint8

const (
	Width32 OperandWidth = 32
	Width64 OperandWidth = 64
)

// FPPrecision selects f32 vs f64 for the floating-point opcodes.
type FPPrecision uint8

const (
	FPSingle FPPrecision = iota
	FPDouble
)

// Operand references either a prior instruction's result (by index into
// the owning Block.Insts) or an immediate operand known at translation
// time (e.g. a shift count or rotate amount baked in by the decoder).
type Operand struct {
	IsImm bool
	Imm   int64
	Ref   int
}

// ImmOperand constructs an immediate Operand.
func ImmOperand(v int64) Operand { return Operand{IsImm: true, Imm: v} }

// RefOperand constructs an Operand referencing instruction index i's result.
func RefOperand(i int) Operand { return Operand{Ref: i} }

// Inst is one IR instruction inside a Block.
type Inst struct {
	Op     Opcode
	Args   []Operand
	Imm    int64 // generic scalar parameter: saturation N, ...
	Width  OperandWidth
	FPPrec FPPrecision

	// HasCarryConsumer/HasOverflowConsumer/HasGEConsumer record whether a
	// GetCarryFromOp/GetOverflowFromOp/GetGEFromOp pseudo-op immediately
	// following this instruction in the block consumes its by-product.
	// Set by the optimizer (external collaborator) before emission; the
	// emitter core only reads these flags, never computes them.
	HasCarryConsumer    bool
	HasOverflowConsumer bool
	HasGEConsumer       bool

	// erased is set by the emitter when it fuses a pseudo-op into its
	// producer; an erased instruction emits nothing of its own.
	erased bool
}

// Condition is one of the 15 ARM condition codes tested against NZCV.
// Numeric values and ordering follow the ARM ARM encoding used throughout
// spec.md and the reference decoder this IR is paired with.
type Condition uint8

const (
	CondEQ Condition = iota // Z
	CondNE                  // !Z
	CondCS                  // C
	CondCC                  // !C
	CondMI                  // N
	CondPL                  // !N
	CondVS                  // V
	CondVC                  // !V
	CondHI                  // C & !Z
	CondLS                  // !C | Z
	CondGE                  // N == V
	CondLT                  // N != V
	CondGT                  // !Z & (N == V)
	CondLE                  // Z | (N != V)
	CondAL                  // always
)

// TerminalKind enumerates the eight terminal variants from spec.md §4.D
// "Terminals".
type TerminalKind uint8

const (
	TermLinkBlock TerminalKind = iota
	TermLinkBlockFast
	TermPopRSBHint
	TermIf
	TermCheckBit
	TermCheckHalt
	TermInterpret
	TermReturnToDispatch
)

// Terminal is the tagged-variant type closing out a Block, matching the
// "re-architect as a tagged-variant type with exhaustive match" guidance
// in spec.md §9 (dynamic dispatch over terminal kinds).
type Terminal struct {
	Kind TerminalKind

	// LinkBlock / LinkBlockFast / PopRSBHint
	Target Location

	// If
	Cond Condition
	Then *Terminal
	Else *Terminal

	// CheckBit: offset into State the bit lives at, and the bit's mask.
	BitOffset uintptr
	BitMask   uint64

	// Interpret
	NumInstructions uint32
	Next            Location
}

// Block is one compiled-from-guest translation unit: a condition prelude
// (if Condition != CondAL), a body of IR instructions, and a terminal.
type Block struct {
	Location Location
	Guest    GuestInterval

	Condition                 Condition
	ConditionFailedLocation   Location
	ConditionFailedCycleCount uint32

	CycleCount uint32 // EmitAddCycles(n) bound: n <= math.MaxUint32, enforced by the upstream translator
	Insts      []Inst
	Terminal   Terminal
}
