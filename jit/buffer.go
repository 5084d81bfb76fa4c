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

import (
	"encoding/binary"
	"syscall"
	"unsafe"
)

// cacheOverflow is panicked by CodeBuffer's append path when a block would
// not fit in the remaining space. Compile recovers it and turns it into
// the typed ExitCacheOverflow return spec.md §7 calls for — a panic here
// is purely a non-local-return mechanism internal to this package, never
// observed by the embedder.
type cacheOverflow struct{}

// CodeBuffer is the append-only executable-memory arena backing every
// compiled block: component A from spec.md §2/§4. Code is appended
// forward from byte 0; a trailing constant pool is appended backward from
// the end of the mapping, so the two regions can never collide without
// tripping the same overflow check. Grounded on the teacher's
// allocExec/execBuf mmap helpers (originally scm/jit.go), generalized from
// a one-shot "compile and mprotect once" allocation into a long-lived,
// repeatedly-patched arena.
type CodeBuffer struct {
	mem      []byte
	base     uintptr
	cursor   int
	constTop int
	constant map[uint64]int // value -> offset, so equal constants share a slot
}

// NewCodeBuffer mmaps size bytes (rounded up to a page) as a single
// read/write/execute mapping. A production embedder on a platform with a
// strict W^X policy would instead dual-map the region and toggle
// PROT_EXEC around patch windows; this translator targets environments
// that allow RWX JIT pages, matching the teacher's own allocExec which
// mapped RW and then mprotect'd to RX exactly once and never wrote again.
func NewCodeBuffer(size int) (*CodeBuffer, error) {
	page := syscall.Getpagesize()
	n := (size + page - 1) &^ (page - 1)
	mem, err := syscall.Mmap(-1, 0, n, syscall.PROT_READ|syscall.PROT_WRITE|syscall.PROT_EXEC, syscall.MAP_PRIVATE|syscall.MAP_ANON)
	if err != nil {
		return nil, err
	}
	return &CodeBuffer{
		mem:      mem,
		base:     uintptr(unsafe.Pointer(&mem[0])),
		constTop: len(mem),
		constant: make(map[uint64]int),
	}, nil
}

// Close releases the underlying mapping. Registered with onexit at
// construction time by New (see jit.go) so an embedder that never calls it
// explicitly still doesn't leak the mapping past process exit.
func (b *CodeBuffer) Close() error {
	return syscall.Munmap(b.mem)
}

// Reset discards every emitted byte and constant, returning the buffer to
// its just-mapped state. Called by ClearCache.
func (b *CodeBuffer) Reset() {
	b.cursor = 0
	b.constTop = len(b.mem)
	b.constant = make(map[uint64]int)
}

// CurrentPos returns the append cursor as an offset from base.
func (b *CodeBuffer) CurrentPos() uintptr { return uintptr(b.cursor) }

// SeekTo repositions the append cursor for an in-place patch. Callers must
// restore the prior cursor with SeekTo afterwards if they intend to keep
// appending; PatchRegistry.Patch/Unpatch do this themselves.
func (b *CodeBuffer) SeekTo(pos uintptr) { b.cursor = int(pos) }

// HostAddr converts a buffer offset to a live host address.
func (b *CodeBuffer) HostAddr(pos uintptr) uintptr { return b.base + pos }

// EntryPoint returns the host address the next emitted byte will land at.
func (b *CodeBuffer) EntryPoint() uintptr { return b.HostAddr(b.CurrentPos()) }

func (b *CodeBuffer) ensure(n int) {
	if b.cursor+n > b.constTop {
		panic(cacheOverflow{})
	}
}

// EmitByte appends one byte.
func (b *CodeBuffer) EmitByte(v byte) {
	b.ensure(1)
	b.mem[b.cursor] = v
	b.cursor++
}

// EmitBytes appends a sequence of bytes in order.
func (b *CodeBuffer) EmitBytes(vs ...byte) {
	b.ensure(len(vs))
	copy(b.mem[b.cursor:], vs)
	b.cursor += len(vs)
}

// EmitUint32 appends v little-endian.
func (b *CodeBuffer) EmitUint32(v uint32) {
	b.ensure(4)
	binary.LittleEndian.PutUint32(b.mem[b.cursor:], v)
	b.cursor += 4
}

// EmitUint64 appends v little-endian.
func (b *CodeBuffer) EmitUint64(v uint64) {
	b.ensure(8)
	binary.LittleEndian.PutUint64(b.mem[b.cursor:], v)
	b.cursor += 8
}

// PatchJccRel32 and PatchJmpRel32 overwrite a previously-reserved 4-byte
// rel32 operand at the current cursor so it targets target, then advance
// the cursor past the operand. Both compute the displacement from the end
// of the 4-byte operand, matching how x86 Jcc/JMP rel32 is defined.
func (b *CodeBuffer) PatchJccRel32(target uintptr) { b.patchRel32(target) }
func (b *CodeBuffer) PatchJmpRel32(target uintptr) { b.patchRel32(target) }

func (b *CodeBuffer) patchRel32(target uintptr) {
	instrEnd := b.HostAddr(uintptr(b.cursor + 4))
	rel := int64(target) - int64(instrEnd)
	binary.LittleEndian.PutUint32(b.mem[b.cursor:], uint32(int32(rel)))
	b.cursor += 4
}

// PatchMovImm64 overwrites a previously-reserved 8-byte immediate operand
// (the operand of a MOV r64, imm64) at the current cursor.
func (b *CodeBuffer) PatchMovImm64(target uint64) {
	binary.LittleEndian.PutUint64(b.mem[b.cursor:], target)
	b.cursor += 8
}

// ConstPoolAddr returns a host address holding value as a little-endian
// 8-byte constant, for use by RIP-relative or absolute loads. No emitter
// in this package currently calls it. Equal values share a slot: the pool
// is deduplicated, not append-only.
func (b *CodeBuffer) ConstPoolAddr(value uint64) uintptr {
	if off, ok := b.constant[value]; ok {
		return b.HostAddr(uintptr(off))
	}
	if b.constTop-8 < b.cursor {
		panic(cacheOverflow{})
	}
	b.constTop -= 8
	binary.LittleEndian.PutUint64(b.mem[b.constTop:], value)
	b.constant[value] = b.constTop
	return b.HostAddr(uintptr(b.constTop))
}
