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

// patchSiteKind distinguishes the three shapes of cross-block reference the
// emitter leaves behind, named directly after dynarmic's jg_sites /
// jmp_sites / mov_sites lists in emit_x64.cpp.
type patchSiteKind uint8

const (
	// patchJg is a Jcc rel32 site. Patch and Unpatch can rewrite one, but
	// no emitter in this package currently registers this kind.
	patchJg patchSiteKind = iota
	// patchJmp is an unconditional JMP rel32, emitted and registered by
	// emitLinkTo (emit_terminal.go) for every link to a not-yet-compiled
	// target.
	patchJmp
	// patchMov is a MOVABS-style 64-bit immediate load of a location's
	// entry point. Patch and Unpatch can rewrite one, but no emitter in
	// this package currently registers this kind.
	patchMov
)

// patchSite is one place in the code buffer that referenced a target
// Location before that location had a compiled block, and so jumped (or
// loaded an address) to the dispatcher's "compile me" stub instead.
type patchSite struct {
	kind patchSiteKind
	pos  uintptr // code buffer offset the instruction's operand lives at
}

// codePatcher is the subset of the code buffer and emitter the patch
// registry needs to rewrite an already-emitted instruction's operand in
// place. buffer.go's *CodeBuffer and amd64.go's encoder satisfy it; kept
// as an interface here so patch.go does not need either file finished to
// be self-consistent.
type codePatcher interface {
	SeekTo(pos uintptr)
	PatchJccRel32(target uintptr)
	PatchJmpRel32(target uintptr)
	PatchMovImm64(target uint64)
	CurrentPos() uintptr
}

// PatchRegistry tracks, per not-yet-compiled target Location, every
// already-emitted patch site that refers to it. Registration happens at
// emission time (emitLinkTo in emit_terminal.go calls Register for each
// not-yet-compiled target it jumps to), so Patch later has no need to
// scan the code buffer looking for references.
type PatchRegistry struct {
	sites map[Location][]patchSite
}

// NewPatchRegistry returns an empty registry.
func NewPatchRegistry() *PatchRegistry {
	return &PatchRegistry{sites: make(map[Location][]patchSite)}
}

// Register records that the instruction at pos in the code buffer refers
// to target, and has not yet been pointed at a real block.
func (r *PatchRegistry) Register(target Location, k patchSiteKind, pos uintptr) {
	r.sites[target] = append(r.sites[target], patchSite{kind: k, pos: pos})
}

// Patch rewrites every registered site for target to jump to (or load) the
// now-compiled block's entry point, then keeps the registration around —
// the same sites must still be found by a later Unpatch if target's block
// is ever invalidated, so a patched site is never forgotten, only
// Forget'd explicitly when target's own block is discarded. Mirrors
// dynarmic's BlockOfCode::Patch.
func (r *PatchRegistry) Patch(buf codePatcher, target Location, entryPoint uintptr) {
	sites := r.sites[target]
	saved := buf.CurrentPos()
	for _, s := range sites {
		buf.SeekTo(s.pos)
		switch s.kind {
		case patchJg:
			buf.PatchJccRel32(entryPoint)
		case patchJmp:
			buf.PatchJmpRel32(entryPoint)
		case patchMov:
			buf.PatchMovImm64(uint64(entryPoint))
		}
	}
	buf.SeekTo(saved)
	r.sites[target] = sites
}

// Unpatch reverts every site that currently points at target's block back
// to the dispatcher's compile-on-demand stub, then re-registers them so a
// future Patch call can find them again. Called by InvalidateCacheRanges
// before a block is removed from the cache, so no stale direct jump into
// freed or about-to-be-overwritten code survives.
func (r *PatchRegistry) Unpatch(buf codePatcher, target Location, dispatchStub uintptr) {
	sites := r.sites[target]
	saved := buf.CurrentPos()
	for _, s := range sites {
		buf.SeekTo(s.pos)
		switch s.kind {
		case patchJg:
			buf.PatchJccRel32(dispatchStub)
		case patchJmp:
			buf.PatchJmpRel32(dispatchStub)
		case patchMov:
			buf.PatchMovImm64(uint64(dispatchStub))
		}
	}
	buf.SeekTo(saved)
	r.sites[target] = sites
}

// Forget drops every registration for target without touching the code
// buffer. The dropped sites live in the blocks that referenced target;
// each keeps whatever it currently points at, and a later Patch for target
// no longer rewrites it. InvalidateCacheRanges calls Forget right after
// Unpatch, so those referrers keep reaching target through the dispatch
// stub even after target is recompiled.
func (r *PatchRegistry) Forget(target Location) {
	delete(r.sites, target)
}
