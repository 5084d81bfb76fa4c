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

import "github.com/jtolds/gls"

// glsMgr backs the goroutine-local "am I currently inside Run" marker. An
// atomic flag on Jit can tell two different goroutines apart, but it
// cannot tell a legitimate top-level Run call apart from a HostCallbacks
// callback (ExceptionRaised, InterpretInstruction, ...) calling back into
// InvalidateCacheRanges on the very same goroutine that is still inside
// Run further up the stack — that reentrant case is exactly what
// spec.md §5 forbids, and it is a per-goroutine question, so it needs
// goroutine-local storage rather than a shared flag. Mirrors the teacher's
// own use of jtolds/gls (scm.go's "parallel" form) to carry state across
// goroutine boundaries the plain stdlib can't see.
var glsMgr = gls.NewContextManager()

const glsKeyInsideRun = "armxlate-inside-run"

// runOnThisGoroutine marks the calling goroutine as being inside a Run
// call for the duration of fn, then runs fn.
func runOnThisGoroutine(fn func()) {
	glsMgr.SetValues(gls.Values{glsKeyInsideRun: true}, fn)
}

// assertNotInsideRun panics if the calling goroutine is currently
// executing inside Run further up its own call stack. Called at the top
// of InvalidateCacheRanges (spec.md §5: "InvalidateCacheRanges must never
// be called reentrantly from inside Run").
func assertNotInsideRun(op string) {
	if v, ok := glsMgr.GetValue(glsKeyInsideRun); ok && v != nil {
		panicf("jit: %s called reentrantly from inside Run on the same goroutine", op)
	}
}
