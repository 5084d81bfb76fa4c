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

import "fmt"

// panicf reports an internal-assertion failure: an IR shape or emitter
// invariant the translator must never see at emission time. These indicate
// a bug in the translator (or its external collaborators), not a guest
// program condition, so they panic immediately rather than returning an
// error — mirrors the teacher's own panic(fmt.Sprintf(...)) style for
// interpreter-internal invariants.
func panicf(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}

// RunExitReason explains why Run returned control to the embedder.
type RunExitReason uint8

const (
	// ExitCyclesExhausted means cycles_remaining crossed zero.
	ExitCyclesExhausted RunExitReason = iota
	// ExitHaltRequested means the embedder's halt flag was observed set.
	ExitHaltRequested
	// ExitCacheOverflow means the code buffer had no room for the block
	// under compilation. Not fatal: the embedder must call ClearCache and
	// may then call Run again. This is a control-flow value rather than a
	// panic because the embedder, not the translator, decides the response.
	ExitCacheOverflow
	// ExitInterpretRequested means an Interpret terminal asked the host to
	// step the interpreter for a number of instructions.
	ExitInterpretRequested
	// ExitException means a guest-visible exception was raised; the
	// embedder's ExceptionRaised callback already ran before return.
	ExitException
)

func (r RunExitReason) String() string {
	switch r {
	case ExitCyclesExhausted:
		return "cycles-exhausted"
	case ExitHaltRequested:
		return "halt-requested"
	case ExitCacheOverflow:
		return "cache-overflow"
	case ExitInterpretRequested:
		return "interpret-requested"
	case ExitException:
		return "exception"
	default:
		return "unknown"
	}
}
