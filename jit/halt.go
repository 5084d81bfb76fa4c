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

import "github.com/launix-de/NonLockingReadMap"

// haltBit is the only bit haltFlag ever uses; a single-bit bitmap looks
// like overkill next to a plain atomic.Bool, but it keeps the flag on the
// exact lock-free primitive spec.md §5 calls out as the one legitimate
// crack in an otherwise single-threaded design, rather than reaching for
// a second concurrency primitive the rest of the package doesn't use.
const haltBit = 0

// haltFlag is the cross-thread halt-request signal: HaltExecution may be
// called from any goroutine at any time, including while another
// goroutine is inside Run, and Run polls it between blocks without taking
// a lock.
type haltFlag struct {
	bits NonLockingReadMap.NonBlockingBitMap
}

func (h *haltFlag) request() {
	h.bits.Set(haltBit, true)
}

func (h *haltFlag) clear() {
	h.bits.Set(haltBit, false)
}

func (h *haltFlag) isSet() bool {
	return h.bits.Get(haltBit)
}
