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

import "errors"

const (
	OFFSET_BITS = 12
	PAGE_SIZE   = 1 << OFFSET_BITS
	OFFSET_MASK = PAGE_SIZE - 1
)

const (
	DEFAULT_FRAMES = 256
	DEFAULT_PAGES  = 512
)

// Segment growth directions
const (
	DIR_UP   = 0
	DIR_DOWN = 1
)

var (
	ErrOutOfMemory     = errors.New("out of memory")
	ErrForbiddenMemory = errors.New("forbidden memory access")
	ErrPageFault       = errors.New("page fault")
)
