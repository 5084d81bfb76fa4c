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

import "github.com/google/btree"

// BlockDescriptor records everything the cache, the patch registry and the
// dispatcher need to know about one compiled block after Compile returns.
type BlockDescriptor struct {
	Location   Location
	Guest      GuestInterval
	EntryPoint uintptr // host address of the block's first instruction
	CodeStart  uintptr
	CodeEnd    uintptr // one past the block's last emitted byte
}

// intervalEntry is the btree element backing BlockCache's guest-address
// index. Ordered by (First, Location) so ReplaceOrInsert never silently
// drops two blocks that happen to start at the same guest byte under
// different mode bits.
type intervalEntry struct {
	Interval GuestInterval
	Loc      Location
}

func intervalLess(a, b intervalEntry) bool {
	if a.Interval.First != b.Interval.First {
		return a.Interval.First < b.Interval.First
	}
	return a.Loc < b.Loc
}

// BlockCache is the Location -> BlockDescriptor map plus a guest-address
// interval index, component D from spec.md §2/§4. Ownership is single
// goroutine at a time: Compile, GetBasicBlock and the invalidator all run
// from the same goroutine that owns Run, per spec.md §5, so this type
// carries no internal lock. Grounded on the teacher's storage/index.go use
// of github.com/google/btree.BTreeG for its delta index, repurposed here
// to index compiled blocks by guest byte range instead of row keys.
type BlockCache struct {
	blocks    map[Location]*BlockDescriptor
	intervals *btree.BTreeG[intervalEntry]
	// maxIntervalLen bounds how far below a query's start we must scan:
	// no compiled block can overlap a query range if it starts before
	// (query.First - maxIntervalLen), since every interval has length at
	// most maxIntervalLen.
	maxIntervalLen uint64
}

// NewBlockCache returns an empty block cache.
func NewBlockCache() *BlockCache {
	return &BlockCache{
		blocks:    make(map[Location]*BlockDescriptor),
		intervals: btree.NewG(32, intervalLess),
	}
}

// GetBasicBlock returns the compiled block at loc, if any.
func (c *BlockCache) GetBasicBlock(loc Location) (*BlockDescriptor, bool) {
	d, ok := c.blocks[loc]
	return d, ok
}

// Insert records a newly compiled block. loc must not already be present;
// callers recompiling a location must Remove it first.
func (c *BlockCache) Insert(desc *BlockDescriptor) {
	if _, exists := c.blocks[desc.Location]; exists {
		panicf("jit: block cache already has an entry for location %#x", uint64(desc.Location))
	}
	c.blocks[desc.Location] = desc
	c.intervals.ReplaceOrInsert(intervalEntry{Interval: desc.Guest, Loc: desc.Location})
	if length := desc.Guest.Last - desc.Guest.First; length > c.maxIntervalLen {
		c.maxIntervalLen = length
	}
}

// Remove drops loc's entry from both the map and the interval index.
func (c *BlockCache) Remove(loc Location) {
	desc, ok := c.blocks[loc]
	if !ok {
		return
	}
	delete(c.blocks, loc)
	c.intervals.Delete(intervalEntry{Interval: desc.Guest, Loc: loc})
}

// Len returns the number of currently cached blocks.
func (c *BlockCache) Len() int {
	return len(c.blocks)
}

// FindOverlapping calls fn once for every cached block whose guest interval
// overlaps iv, in ascending guest-address order. fn may safely be used to
// collect a removal set; it must not mutate the cache while iterating.
func (c *BlockCache) FindOverlapping(iv GuestInterval, fn func(*BlockDescriptor)) {
	scanFrom := uint64(0)
	if iv.First > c.maxIntervalLen {
		scanFrom = iv.First - c.maxIntervalLen
	}
	c.intervals.AscendRange(
		intervalEntry{Interval: GuestInterval{First: scanFrom}},
		intervalEntry{Interval: GuestInterval{First: iv.Last + 1}},
		func(e intervalEntry) bool {
			if !e.Interval.Overlaps(iv) {
				return true
			}
			if desc := c.blocks[e.Loc]; desc != nil {
				fn(desc)
			}
			return true
		},
	)
}
