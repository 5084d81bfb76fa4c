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

import "testing"

// fakePatcher stands in for a *CodeBuffer: it just records, per offset,
// the last value a patch wrote there, so tests can assert on exactly what
// PatchRegistry rewrote without mmapping real executable memory.
type fakePatcher struct {
	cursor  uintptr
	written map[uintptr]uint64 // pos -> patched target
}

func newFakePatcher() *fakePatcher {
	return &fakePatcher{written: make(map[uintptr]uint64)}
}

func (f *fakePatcher) SeekTo(pos uintptr)             { f.cursor = pos }
func (f *fakePatcher) CurrentPos() uintptr            { return f.cursor }
func (f *fakePatcher) PatchJccRel32(target uintptr)   { f.written[f.cursor] = uint64(target) }
func (f *fakePatcher) PatchJmpRel32(target uintptr)   { f.written[f.cursor] = uint64(target) }
func (f *fakePatcher) PatchMovImm64(target uint64)    { f.written[f.cursor] = target }

func TestPatchRegistryPatchRewritesEverySite(t *testing.T) {
	r := NewPatchRegistry()
	target := NewLocation(0x4000, 0)
	r.Register(target, patchJg, 0x10)
	r.Register(target, patchJmp, 0x40)
	r.Register(target, patchMov, 0x80)

	buf := newFakePatcher()
	buf.SeekTo(0x200) // simulate the emitter having moved on past these sites
	r.Patch(buf, target, 0xdeadbeef)

	if buf.written[0x10] != 0xdeadbeef {
		t.Fatalf("patchJg site not rewritten: %#x", buf.written[0x10])
	}
	if buf.written[0x40] != 0xdeadbeef {
		t.Fatalf("patchJmp site not rewritten: %#x", buf.written[0x40])
	}
	if buf.written[0x80] != 0xdeadbeef {
		t.Fatalf("patchMov site not rewritten: %#x", buf.written[0x80])
	}
	if buf.CurrentPos() != 0x200 {
		t.Fatalf("Patch must restore the cursor: got %#x, want 0x200", buf.CurrentPos())
	}
}

// TestPatchRegistryPatchKeepsRegistrationForLaterUnpatch is the regression
// test for the self-modifying-code invariant the whole cache-invalidation
// subsystem exists to hold: once a referrer's direct jump is patched to
// point at target's entry point, the registry must still know about that
// site, or a later InvalidateCacheRanges -> Unpatch call would find zero
// sites for target and leave that referrer's jump hard-wired into the
// now-evicted block's stale bytes instead of redirecting it back to the
// dispatch stub.
func TestPatchRegistryPatchKeepsRegistrationForLaterUnpatch(t *testing.T) {
	r := NewPatchRegistry()
	target := NewLocation(0x5000, 0)
	r.Register(target, patchJmp, 0x10)

	buf := newFakePatcher()
	r.Patch(buf, target, 0x1234)
	if buf.written[0x10] != 0x1234 {
		t.Fatalf("patchJmp site not rewritten: %#x", buf.written[0x10])
	}

	// target's block is later invalidated: Unpatch must still find the site
	// Patch just rewrote and point it back at the dispatch stub.
	const dispatchStub = uintptr(0x9000)
	buf2 := newFakePatcher()
	r.Unpatch(buf2, target, dispatchStub)
	if buf2.written[0x10] != uint64(dispatchStub) {
		t.Fatalf("Unpatch should have found the site Patch kept registered and reverted it to the dispatch stub, got %v", buf2.written)
	}

	// A second Patch call for the same target (recompiled at a new address)
	// must also still find and rewrite the site.
	buf3 := newFakePatcher()
	r.Patch(buf3, target, 0x5678)
	if buf3.written[0x10] != 0x5678 {
		t.Fatalf("expected the site to still be registered for a second Patch, got %v", buf3.written)
	}
}

func TestPatchRegistryUnpatchRevertsAndReregisters(t *testing.T) {
	r := NewPatchRegistry()
	target := NewLocation(0x6000, 0)
	const dispatchStub = uintptr(0x9000)
	r.Register(target, patchJmp, 0x10)

	buf := newFakePatcher()
	r.Unpatch(buf, target, dispatchStub)
	if buf.written[0x10] != uint64(dispatchStub) {
		t.Fatalf("Unpatch should point the site back at the dispatch stub, got %#x", buf.written[0x10])
	}

	// The site must still be registered: a later Patch call finds it again.
	buf2 := newFakePatcher()
	r.Patch(buf2, target, 0xabc)
	if buf2.written[0x10] != 0xabc {
		t.Fatalf("expected Unpatch to re-register the site for a future Patch, got %v", buf2.written)
	}
}

func TestPatchRegistryForgetDropsSitesSilently(t *testing.T) {
	r := NewPatchRegistry()
	target := NewLocation(0x7000, 0)
	r.Register(target, patchJg, 0x10)
	r.Forget(target)

	buf := newFakePatcher()
	r.Patch(buf, target, 0x1234)
	if len(buf.written) != 0 {
		t.Fatalf("Forget should have dropped the site before Patch ran, got %v", buf.written)
	}
}
