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

//go:build unix

package memory_test

import (
	"path/filepath"
	"testing"

	"github.com/lassandro/gorvm/pkg/memory"
	"github.com/retroenv/retrogolib/assert"
)

func TestMmapSwap(t *testing.T) {
	swap, err := memory.OpenMmapSwap(filepath.Join(t.TempDir(), "swap.bin"), 4)
	assert.NoError(t, err)
	defer swap.Close()

	mm := newManager(1, 4, swap)

	first, err := mm.Allocate(1, nil)
	assert.NoError(t, err)
	addr := first.Pages[0]<<memory.OFFSET_BITS | 10
	assert.NoError(t, mm.WriteRAM(addr, -1234))

	_, err = mm.Allocate(1, nil)
	assert.NoError(t, err)
	assert.True(t, mm.PageTable[first.Pages[0]].Swapped)

	value, err := mm.ReadRAM(addr)
	assert.NoError(t, err)
	assert.Equal(t, memory.Word(-1234), value)
}

func TestMmapSwapOutOfRange(t *testing.T) {
	swap, err := memory.OpenMmapSwap(filepath.Join(t.TempDir(), "swap.bin"), 1)
	assert.NoError(t, err)
	defer swap.Close()

	data := make([]memory.Word, memory.PAGE_SIZE)
	assert.NotNil(t, swap.SwapOut(3, data))
}
