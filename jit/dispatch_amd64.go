//go:build amd64

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

// callBlock enters compiled machine code at entry with RBP bound to state
// for the duration of the call, matching the convention every emit_*.go
// helper assumes (state.go, offsets.go). It returns whatever RunExitReason
// (or the internal exitReasonDispatch sentinel) the callee left in RAX
// before its final RET.
//
// There is no way to express "call this raw address with RBP pointed at
// an arbitrary Go value" in pure Go, so the actual frame setup lives in
// dispatch_amd64.s. The split mirrors how production Go JIT engines (e.g.
// wazero's compiler backend) hand off from the Go ABI to a foreign
// calling convention: a minimal hand-written trampoline function, called
// like any other Go function, that saves what the host ABI requires,
// loads the arguments the generated code expects into fixed registers,
// and lets the generated code's own RET return straight into the
// trampoline's caller.
func callBlock(entry uintptr, state *State) int64
