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

import "unsafe"

// State field offsets, computed once so emit_*.go can address fields of
// the State struct RBP points at from generated code. Every emitted block
// is called with RBP fixed to &State for its duration by the dispatcher
// (see dispatcher.go); these constants must be kept in sync with any
// change to State's field order.
var (
	stateOffsetGPR             = int32(unsafe.Offsetof(State{}.GPR))
	stateOffsetFPR             = int32(unsafe.Offsetof(State{}.FPR))
	stateOffsetCPSR            = int32(unsafe.Offsetof(State{}.CPSR))
	stateOffsetFPSCR           = int32(unsafe.Offsetof(State{}.FPSCR))
	stateOffsetGE              = int32(unsafe.Offsetof(State{}.GE))
	stateOffsetCyclesRemaining = int32(unsafe.Offsetof(State{}.CyclesRemaining))
	stateOffsetUpcoming        = int32(unsafe.Offsetof(State{}.Upcoming))
	stateOffsetInterpretCount  = int32(unsafe.Offsetof(State{}.InterpretCount))
)

// gprOffset returns the byte offset of guest GPR index i within State.
func gprOffset(i int) int32 {
	return stateOffsetGPR + int32(i)*8
}

// fprOffset returns the byte offset of guest FPR/vector index i's low
// 64 bits within State.
func fprOffset(i int) int32 {
	return stateOffsetFPR + int32(i)*16
}
