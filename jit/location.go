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

// Location is a 64-bit opaque value uniquely identifying a guest execution
// point: guest PC plus all mode bits that affect decode or codegen
// (instruction-set state, rounding mode, flush-to-zero bit, ...).
//
// Equality and hashing are by raw value — two Locations compare equal iff
// they would produce semantically identical translated code. The PC/mode
// split below is the layout used throughout this package; callers that
// only care about opacity should treat Location as a plain map key.
type Location uint64

const (
	locPCBits   = 56
	locPCMask   Location = (1 << locPCBits) - 1
	locModeMask Location = ^locPCMask
)

// NewLocation packs a guest PC and a mode-bits value (Thumb/A64 state,
// rounding mode, FTZ, ...) into a single Location. pc must fit in 56 bits
// (guest address spaces never approach that) and mode is truncated to the
// top 8 bits.
func NewLocation(pc uint64, mode uint8) Location {
	return Location(pc&uint64(locPCMask)) | (Location(mode) << locPCBits)
}

// PC returns the guest program counter encoded in the location.
func (l Location) PC() uint64 {
	return uint64(l & locPCMask)
}

// Mode returns the mode bits encoded in the location.
func (l Location) Mode() uint8 {
	return uint8(l >> locPCBits)
}

// GuestInterval is a closed interval [First, Last] of guest byte addresses,
// used to index compiled blocks for invalidation.
type GuestInterval struct {
	First uint64
	Last  uint64
}

// Overlaps reports whether two closed intervals share at least one byte.
func (iv GuestInterval) Overlaps(other GuestInterval) bool {
	return iv.First <= other.Last && other.First <= iv.Last
}
