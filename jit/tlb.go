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

// TLBEntry is one software TLB slot: a host base pointer plus the three
// permission tags the fast path in emitted code checks before using it.
// Transliterated field-for-field from the dynarmic tlb.h entry layout so
// the Config.TLBEntries array the embedder allocates and the offsets the
// emitter computes against it agree byte-for-byte.
type TLBEntry struct {
	// HostBase is host_ptr - (addr mod page_size): adding a normalized
	// guest address directly yields the host pointer for that byte. Zero
	// means the slot is empty (a zero host pointer is never valid).
	HostBase uintptr

	// ReadTag/WriteTag/ExecuteTag hold the normalized guest page-base
	// address (addr with the low PageBits cleared) this slot is valid
	// for under that access kind, or an all-ones sentinel when that
	// permission is absent for this slot.
	ReadTag    uint64
	WriteTag   uint64
	ExecuteTag uint64
}

const tlbNoTag = ^uint64(0)

// TLB is the direct-mapped software TLB described in spec.md §3: 2^N
// entries, indexed by (addr >> PageBits) & (2^N - 1), each tagged per
// permission kind. It does not own its backing array — Config.TLBEntries
// points at embedder-managed memory so emitted code can index it directly
// without a Go-side bounds check.
type TLB struct {
	entries  []TLBEntry
	pageBits uint
	mask     uint64
}

// NewTLB wraps an embedder-allocated TLBEntry array. entries must have
// length a power of two; pageBits is log2 of the guest page size.
func NewTLB(entries unsafe.Pointer, count int, pageBits uint) *TLB {
	if count&(count-1) != 0 {
		panicf("jit: TLB entry count %d is not a power of two", count)
	}
	return &TLB{
		entries:  unsafe.Slice((*TLBEntry)(entries), count),
		pageBits: pageBits,
		mask:     uint64(count - 1),
	}
}

func (t *TLB) index(addr uint64) uint64 {
	return (addr >> t.pageBits) & t.mask
}

func (t *TLB) pageBase(addr uint64) uint64 {
	return addr &^ ((uint64(1) << t.pageBits) - 1)
}

// lookup is the common tag-check shared by Read/Write/Execute lookups: a
// hit requires the slot's HostBase to be non-zero and its tag for this
// access kind to equal the page containing addr.
func (t *TLB) lookup(addr uint64, tag func(*TLBEntry) uint64) (uintptr, bool) {
	e := &t.entries[t.index(addr)]
	if e.HostBase == 0 || tag(e) != t.pageBase(addr) {
		return 0, false
	}
	return e.HostBase + uintptr(addr&((uint64(1)<<t.pageBits)-1)), true
}

// LookupRead, LookupWrite and LookupExecute each return the host address
// for addr under that access kind and whether the lookup hit. A miss is
// not an error: callers fall back to HostCallbacks silently, per spec.md
// §7 ("TLB miss or wrong permission: silent fallback").
func (t *TLB) LookupRead(addr uint64) (uintptr, bool) {
	return t.lookup(addr, func(e *TLBEntry) uint64 { return e.ReadTag })
}

func (t *TLB) LookupWrite(addr uint64) (uintptr, bool) {
	return t.lookup(addr, func(e *TLBEntry) uint64 { return e.WriteTag })
}

func (t *TLB) LookupExecute(addr uint64) (uintptr, bool) {
	return t.lookup(addr, func(e *TLBEntry) uint64 { return e.ExecuteTag })
}

// Add installs a mapping for the page containing addr, granting the given
// permissions and using hostPage as that page's host-side backing byte 0.
// A page previously mapped at this index with different permissions is
// replaced wholesale: the TLB models one mapping per index, not a
// set-associative structure.
func (t *TLB) Add(addr uint64, hostPage uintptr, read, write, execute bool) {
	page := t.pageBase(addr)
	e := &t.entries[t.index(addr)]
	e.HostBase = hostPage - uintptr(page&((uint64(1)<<t.pageBits)-1))
	e.ReadTag, e.WriteTag, e.ExecuteTag = tlbNoTag, tlbNoTag, tlbNoTag
	if read {
		e.ReadTag = page
	}
	if write {
		e.WriteTag = page
	}
	if execute {
		e.ExecuteTag = page
	}
}

// Invalidate clears the slot addr maps to, regardless of whether addr is
// the page it was last installed for — the index is a function of addr
// alone, so this is always safe and always sufficient to evict it.
func (t *TLB) Invalidate(addr uint64) {
	t.entries[t.index(addr)] = TLBEntry{}
}

// Flush clears every slot, forcing every subsequent access back through
// HostCallbacks until re-populated by Add.
func (t *TLB) Flush() {
	for i := range t.entries {
		t.entries[i] = TLBEntry{}
	}
}
