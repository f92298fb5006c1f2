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

package machine

import (
	"fmt"
	"sort"

	"github.com/lassandro/gorvm/pkg/memory"
)

func NewHeap(mm *memory.Manager) *Heap {
	return &Heap{mm: mm, handles: make(map[handleKey]Handle)}
}

// Alloc reserves length cells at the write pointer of the program's data
// segment. Freed ranges are never handed out again.
func (h *Heap) Alloc(pid int, prog *Program, length int) (Handle, error) {
	if length < 0 {
		return Handle{}, fmt.Errorf("%w: negative length %d", ErrHeapExhausted, length)
	}

	// Empty strings still take a cell so every live block has its own start
	reserve := length
	if reserve == 0 {
		reserve = 1
	}

	seg := prog.Data

	if seg.Remaining() < reserve {
		return Handle{}, fmt.Errorf(
			"%w: %d cells requested, %d left", ErrHeapExhausted, reserve, seg.Remaining(),
		)
	}

	start := seg.Cursor()

	if err := seg.Advance(reserve); err != nil {
		return Handle{}, err
	}

	handle := Handle{
		PID:     pid,
		Start:   memory.Word(start),
		Size:    length,
		segment: seg,
	}

	h.handles[handleKey{pid, handle.Start}] = handle
	return handle, nil
}

func (h *Heap) StoreString(handle Handle, text string) error {
	runes := []rune(text)

	if len(runes) > handle.Size {
		return fmt.Errorf(
			"%w: %d characters into a %d cell block",
			memory.ErrForbiddenMemory, len(runes), handle.Size,
		)
	}

	for i, char := range runes {
		addr, err := handle.segment.Address(int(handle.Start) + i)

		if err != nil {
			return err
		}

		if err := h.mm.WriteSegment(handle.segment, addr, memory.Word(char)); err != nil {
			return err
		}
	}

	return nil
}

func (h *Heap) ReadString(handle Handle) (string, error) {
	runes := make([]rune, 0, handle.Size)

	for i := 0; i < handle.Size; i++ {
		addr, err := handle.segment.Address(int(handle.Start) + i)

		if err != nil {
			return "", err
		}

		value, err := h.mm.ReadSegment(handle.segment, addr)

		if err != nil {
			return "", err
		}

		runes = append(runes, rune(value))
	}

	return string(runes), nil
}

// Lookup resolves the live block of pid starting at start.
func (h *Heap) Lookup(pid int, start memory.Word) (Handle, error) {
	handle, exists := h.handles[handleKey{pid, start}]

	if !exists {
		return Handle{}, fmt.Errorf("%w: pid %d start %d", ErrHandleNotFound, pid, start)
	}

	return handle, nil
}

func (h *Heap) Free(handle Handle) error {
	key := handleKey{handle.PID, handle.Start}

	if _, exists := h.handles[key]; !exists {
		return fmt.Errorf(
			"%w: pid %d start %d", ErrHandleNotFound, handle.PID, handle.Start,
		)
	}

	delete(h.handles, key)
	return nil
}

// Release drops every block owned by pid.
func (h *Heap) Release(pid int) {
	for key := range h.handles {
		if key.pid == pid {
			delete(h.handles, key)
		}
	}
}

// Handles lists the live blocks of pid ordered by start.
func (h *Heap) Handles(pid int) []Handle {
	handles := make([]Handle, 0)

	for key, handle := range h.handles {
		if key.pid == pid {
			handles = append(handles, handle)
		}
	}

	sort.Slice(handles, func(i, j int) bool {
		return handles[i].Start < handles[j].Start
	})

	return handles
}

func (h *Heap) Len() int {
	return len(h.handles)
}
