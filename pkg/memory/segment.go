// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

package memory

import (
	"fmt"

	"github.com/retroenv/retrogolib/set"
)

// Size is the number of cells covered by the region.
func (r Region) Size() int {
	return len(r.Pages) * PAGE_SIZE
}

// Contains reports whether the virtual address belongs to the region.
func (r Region) Contains(addr int) bool {
	if addr < 0 {
		return false
	}

	page := addr >> OFFSET_BITS

	for _, p := range r.Pages {
		if p == page {
			return true
		}
	}

	return false
}

// Address maps a logical slot of the region to its virtual address.
func (r Region) Address(slot int) (int, bool) {
	if slot < 0 || slot >= r.Size() {
		return 0, false
	}

	return r.Pages[slot/PAGE_SIZE]<<OFFSET_BITS | slot&OFFSET_MASK, true
}

// Addresses expands the region into every virtual address it covers.
func (r Region) Addresses() []int {
	addrs := make([]int, 0, r.Size())

	for _, page := range r.Pages {
		base := page << OFFSET_BITS

		for i := 0; i < PAGE_SIZE; i++ {
			addrs = append(addrs, base+i)
		}
	}

	return addrs
}

// Address maps a logical offset inside the segment to a virtual address.
func (seg *Segment) Address(offset int) (int, error) {
	addr, ok := seg.Memory.Address(offset)

	if !ok {
		return 0, fmt.Errorf("%w: offset %d outside segment", ErrForbiddenMemory, offset)
	}

	return addr, nil
}

// Offset is the inverse of Address. The end marker left in WritePointer by a
// full segment maps to Capacity.
func (seg *Segment) Offset(addr int) (int, error) {
	if addr == seg.end() {
		return seg.Capacity(), nil
	}

	page := addr >> OFFSET_BITS

	for i, p := range seg.Memory.Pages {
		if p == page && addr >= 0 {
			return i*PAGE_SIZE + addr&OFFSET_MASK, nil
		}
	}

	return 0, fmt.Errorf("%w: address %#x outside segment", ErrForbiddenMemory, addr)
}

func (seg *Segment) Capacity() int {
	return seg.Memory.Size()
}

// Tail is the last address of the segment.
func (seg *Segment) Tail() int {
	last := seg.Memory.Pages[len(seg.Memory.Pages)-1]
	return last<<OFFSET_BITS | OFFSET_MASK
}

// Cursor is the logical offset of the write pointer.
func (seg *Segment) Cursor() int {
	offset, err := seg.Offset(seg.WritePointer)

	if err != nil {
		return seg.Capacity()
	}

	return offset
}

// Remaining is the number of free slots past the write pointer.
func (seg *Segment) Remaining() int {
	return seg.Capacity() - seg.Cursor()
}

// Advance moves the write pointer count slots forward.
func (seg *Segment) Advance(count int) error {
	cursor := seg.Cursor() + count

	if cursor > seg.Capacity() || cursor < 0 {
		return fmt.Errorf("%w: advancing %d past segment end", ErrForbiddenMemory, count)
	}

	if cursor == seg.Capacity() {
		seg.WritePointer = seg.end()
		return nil
	}

	addr, _ := seg.Memory.Address(cursor)
	seg.WritePointer = addr
	return nil
}

// Append writes value at the write pointer and advances it.
func (seg *Segment) Append(mm *Manager, value Word) error {
	if seg.Remaining() == 0 {
		return fmt.Errorf("%w: segment full", ErrForbiddenMemory)
	}

	if err := mm.WriteSegment(seg, seg.WritePointer, value); err != nil {
		return err
	}

	return seg.Advance(1)
}

// Grow extends the segment by one page. Pages in exclude are never evicted
// to make room.
func (seg *Segment) Grow(mm *Manager, exclude set.Set[int]) error {
	full := seg.Remaining() == 0

	region, err := mm.Allocate(PAGE_SIZE, exclude)

	if err != nil {
		return err
	}

	seg.Memory.Pages = append(seg.Memory.Pages, region.Pages...)

	if full {
		seg.WritePointer = region.Pages[0] << OFFSET_BITS
	}

	return nil
}

// end is the write pointer value of a full segment.
func (seg *Segment) end() int {
	return -1
}
