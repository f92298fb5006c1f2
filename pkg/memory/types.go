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
	"github.com/retroenv/retrogolib/log"
)

// Word is a single machine cell.
type Word int32

type PageTableEntry struct {
	Frame    int
	Used     bool
	Swapped  bool
	Accesses uint64
}

// Region is the result of an allocation: the virtual pages backing it, in
// logical order.
type Region struct {
	Pages []int
}

type Segment struct {
	Direction    int
	Memory       Region
	StartPointer int
	WritePointer int
}

// Swapper is the backing store evicted pages are moved to.
type Swapper interface {
	SwapOut(page int, data []Word) error
	SwapIn(page int, data []Word) (bool, error)
	Release(page int)
}

type Config struct {
	Frames int
	Pages  int
	Swap   Swapper
	Logger *log.Logger
}

type Stats struct {
	Resident   int
	Swapped    int
	FreeFrames int
	Evictions  uint64
	PageIns    uint64
}

type Manager struct {
	RAM       []Word
	PageTable []PageTableEntry

	// owning page per frame, -1 when the frame is free
	frames []int

	swap   Swapper
	logger *log.Logger

	evictions uint64
	pageIns   uint64
}
