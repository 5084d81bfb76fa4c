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

// blockFixup is a forward reference recorded during the emission of a
// single block: a rel32 operand at codePos that must be patched to point
// at labelID once that label's position is known. Distinct from
// PatchRegistry's cross-block patch sites: a blockFixup always resolves
// before the block's Compile call returns, since both ends of the
// reference live inside the same block.
type blockFixup struct {
	codePos int
	labelID int
	size    uint8
}

// blockWriter tracks labels and forward-reference fixups for the one
// block currently being emitted. Adapted from the teacher's JITWriter
// (originally scm/jit_writer.go): the label/fixup bookkeeping is
// architecture- and domain-agnostic, so only the storage (CodeBuffer
// offsets instead of raw pointers into a single mmap'd page) changed.
type blockWriter struct {
	buf    *CodeBuffer
	labels []int // position of each label, -1 if not yet placed
	fixups []blockFixup
}

func newBlockWriter(buf *CodeBuffer) *blockWriter {
	return &blockWriter{buf: buf}
}

// DefineLabel allocates a new label at the current position.
func (w *blockWriter) DefineLabel() int {
	id := len(w.labels)
	w.labels = append(w.labels, int(w.buf.CurrentPos()))
	return id
}

// ReserveLabel allocates a label ID for later placement via MarkLabel.
func (w *blockWriter) ReserveLabel() int {
	id := len(w.labels)
	w.labels = append(w.labels, -1)
	return id
}

// MarkLabel sets a previously reserved label's position to here.
func (w *blockWriter) MarkLabel(id int) {
	w.labels[id] = int(w.buf.CurrentPos())
}

// AddFixup records that the size-byte operand about to be emitted at the
// current position refers to labelID, to be resolved by ResolveFixups.
func (w *blockWriter) AddFixup(labelID int, size uint8) {
	w.fixups = append(w.fixups, blockFixup{
		codePos: int(w.buf.CurrentPos()),
		labelID: labelID,
		size:    size,
	})
}

// ResolveFixups patches every recorded forward reference now that every
// label in the block has a known position. Called once at the end of
// emitting a block, before Compile installs it in the cache.
func (w *blockWriter) ResolveFixups() {
	saved := w.buf.CurrentPos()
	for _, f := range w.fixups {
		target := w.labels[f.labelID]
		if target < 0 {
			panicf("jit: block writer fixup references undefined label %d", f.labelID)
		}
		w.buf.SeekTo(uintptr(f.codePos))
		if f.size != 4 {
			panicf("jit: block writer only supports 4-byte rel32 fixups, got size %d", f.size)
		}
		w.buf.PatchJmpRel32(uintptr(w.buf.HostAddr(uintptr(target))))
	}
	w.buf.SeekTo(saved)
}
