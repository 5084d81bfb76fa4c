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

// Config bundles every construction-time option the translator recognizes.
// Mirrors the teacher's flat per-component settings structs (e.g.
// storage's table configuration) rather than a generic flags/viper layer:
// this is an embeddable library, not a standalone daemon, so the embedder
// builds a Config by hand and passes it to New.
type Config struct {
	// Callbacks is the host-provided vtable for slow-path memory access,
	// code fetch, interpretation fallback and guest-visible exceptions.
	Callbacks HostCallbacks

	// TLBEntries points at an embedder-allocated array of TLBEntryCount
	// TLBEntry values. Nil disables the TLB fast path entirely (every
	// load/store falls back to Callbacks).
	TLBEntries unsafe.Pointer

	// TLBIndexMaskBits is log2 of the TLB entry count (N in spec.md §3).
	TLBIndexMaskBits uint

	// PageBits is log2 of the guest page size the TLB is indexed by.
	PageBits uint

	// CodeCacheSize is the byte size of the executable region backing the
	// code buffer.
	CodeCacheSize int

	// FastmemPointer, if non-nil, is a direct host base for a contiguous
	// guest address space, used instead of the TLB by the emitter when set.
	FastmemPointer unsafe.Pointer

	// DefineUnpredictableBehaviour controls whether the emitter produces
	// code for instructions the ARM manual leaves unpredictable.
	DefineUnpredictableBehaviour bool

	// TraceFile, if non-empty, makes New open a Chrome-trace-format log of
	// compile/invalidate/clear-cache events at this path (see trace.go).
	TraceFile string

	// Translate is the decoder + IR builder + optimizer pipeline: given a
	// guest location, it returns the Block starting there. spec.md §1
	// lists that pipeline as an external collaborator out of scope for
	// this core, but Run's dispatcher still has to call something to turn
	// an unresolved Location into a *Block — Translate is that hook.
	Translate func(loc Location) *Block
}

// TLBEntryCount returns the configured TLB entry count (2^TLBIndexMaskBits).
func (c *Config) TLBEntryCount() int {
	return 1 << c.TLBIndexMaskBits
}

// PageSize returns the configured guest page size (2^PageBits).
func (c *Config) PageSize() uint64 {
	return 1 << c.PageBits
}
