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

func descAt(pc uint64, length uint64) *BlockDescriptor {
	loc := NewLocation(pc, 0)
	return &BlockDescriptor{
		Location:   loc,
		Guest:      GuestInterval{First: pc, Last: pc + length - 1},
		EntryPoint: uintptr(0x1000 + pc),
		CodeStart:  uintptr(0x1000 + pc),
		CodeEnd:    uintptr(0x1000 + pc + 0x10),
	}
}

func TestBlockCacheInsertAndGet(t *testing.T) {
	c := NewBlockCache()
	d := descAt(0x1000, 4)
	c.Insert(d)

	got, ok := c.GetBasicBlock(d.Location)
	if !ok || got != d {
		t.Fatalf("GetBasicBlock after Insert: ok=%v got=%v want=%v", ok, got, d)
	}
	if c.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", c.Len())
	}
}

func TestBlockCacheInsertDuplicateLocationPanics(t *testing.T) {
	c := NewBlockCache()
	c.Insert(descAt(0x2000, 4))
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic inserting a second block at the same Location")
		}
	}()
	c.Insert(descAt(0x2000, 4))
}

func TestBlockCacheRemove(t *testing.T) {
	c := NewBlockCache()
	d := descAt(0x3000, 4)
	c.Insert(d)
	c.Remove(d.Location)

	if _, ok := c.GetBasicBlock(d.Location); ok {
		t.Fatalf("expected GetBasicBlock to miss after Remove")
	}
	if c.Len() != 0 {
		t.Fatalf("Len after Remove: got %d, want 0", c.Len())
	}

	// Removing something already absent is a harmless no-op.
	c.Remove(d.Location)
}

func TestBlockCacheFindOverlapping(t *testing.T) {
	c := NewBlockCache()
	a := descAt(0x1000, 4) // [0x1000, 0x1003]
	b := descAt(0x1010, 4) // [0x1010, 0x1013]
	d := descAt(0x2000, 4) // far away
	c.Insert(a)
	c.Insert(b)
	c.Insert(d)

	var hit []Location
	c.FindOverlapping(GuestInterval{First: 0x1002, Last: 0x1011}, func(bd *BlockDescriptor) {
		hit = append(hit, bd.Location)
	})

	if len(hit) != 2 {
		t.Fatalf("FindOverlapping: got %d matches, want 2 (%v)", len(hit), hit)
	}
	seen := map[Location]bool{hit[0]: true, hit[1]: true}
	if !seen[a.Location] || !seen[b.Location] {
		t.Fatalf("FindOverlapping returned wrong set: %v", hit)
	}
}

func TestBlockCacheFindOverlappingNoneMatch(t *testing.T) {
	c := NewBlockCache()
	c.Insert(descAt(0x1000, 4))

	var hit int
	c.FindOverlapping(GuestInterval{First: 0x5000, Last: 0x5004}, func(bd *BlockDescriptor) {
		hit++
	})
	if hit != 0 {
		t.Fatalf("expected no overlap, got %d matches", hit)
	}
}

// TestBlockCacheFindOverlappingWideInterval exercises maxIntervalLen's
// scan-from-behind bound: a block whose interval is much wider than any
// other must still be found by a query that starts well inside it.
func TestBlockCacheFindOverlappingWideInterval(t *testing.T) {
	c := NewBlockCache()
	wide := descAt(0x0, 0x1000) // [0, 0xfff]
	c.Insert(wide)
	c.Insert(descAt(0x2000, 4))

	var hit []Location
	c.FindOverlapping(GuestInterval{First: 0x800, Last: 0x900}, func(bd *BlockDescriptor) {
		hit = append(hit, bd.Location)
	})
	if len(hit) != 1 || hit[0] != wide.Location {
		t.Fatalf("expected only the wide block to match, got %v", hit)
	}
}
