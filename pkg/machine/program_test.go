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
	"errors"
	"testing"

	"github.com/lassandro/gorvm/pkg/memory"
	"github.com/retroenv/retrogolib/assert"
)

func newTestMemory(frames int) *memory.Manager {
	return memory.New(memory.Config{Frames: frames, Pages: 64})
}

func TestLoadProgram(t *testing.T) {
	mm := newTestMemory(8)
	words := []memory.Word{OP_LOADI, 7, OP_STOP}

	prog, err := LoadProgram(mm, words)
	assert.NoError(t, err)

	for i, expected := range words {
		addr, err := prog.Code.Address(i)
		assert.NoError(t, err)

		value, err := mm.ReadSegment(prog.Code, addr)
		assert.NoError(t, err)
		assert.Equal(t, expected, value)
	}

	assert.Equal(t, memory.Word(0), prog.Snapshot.PC)
	assert.Equal(t, NO_RETURN, prog.Snapshot.Ret)
	assert.Equal(t, memory.Word(prog.Stack.StartPointer+memory.PAGE_SIZE-1), prog.Snapshot.SP)
	assert.Equal(t, VAR_TABLE, prog.Data.Cursor())
	assert.Equal(t, 3, len(prog.Pages()))
}

func TestLoadProgramSpansPages(t *testing.T) {
	mm := newTestMemory(8)
	words := make([]memory.Word, memory.PAGE_SIZE+10)

	for i := range words {
		words[i] = memory.Word(i)
	}

	prog, err := LoadProgram(mm, words)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(prog.Code.Memory.Pages))

	addr, err := prog.Code.Address(memory.PAGE_SIZE + 9)
	assert.NoError(t, err)

	value, err := mm.ReadSegment(prog.Code, addr)
	assert.NoError(t, err)
	assert.Equal(t, memory.Word(memory.PAGE_SIZE+9), value)
}

func TestLoadProgramOutOfMemory(t *testing.T) {
	mm := newTestMemory(2)

	_, err := LoadProgram(mm, []memory.Word{OP_STOP})
	assert.True(t, errors.Is(err, memory.ErrOutOfMemory))

	stats := mm.Stats()
	assert.Equal(t, 2, stats.FreeFrames)
}

func TestPrepareProgramMemory(t *testing.T) {
	mm := newTestMemory(3)

	first, err := LoadProgram(mm, []memory.Word{OP_STOP})
	assert.NoError(t, err)

	// Loading a second program evicts every page of the first
	second, err := LoadProgram(mm, []memory.Word{OP_LOADI, 1, OP_STOP})
	assert.NoError(t, err)

	for _, page := range first.Pages() {
		assert.True(t, mm.PageTable[page].Swapped)
	}

	first.Snapshot.SP = -1
	assert.NoError(t, PrepareProgramMemory(mm, first))

	for _, page := range first.Pages() {
		assert.True(t, mm.PageTable[page].Used)
	}

	assert.Equal(t, memory.Word(first.Stack.Tail()), first.Snapshot.SP)

	value, err := mm.ReadSegment(first.Code, first.Code.StartPointer)
	assert.NoError(t, err)
	assert.Equal(t, OP_STOP, value)

	for _, page := range second.Pages() {
		assert.True(t, mm.PageTable[page].Swapped)
	}
}

func TestVariables(t *testing.T) {
	mm := newTestMemory(4)

	prog, err := LoadProgram(mm, nil)
	assert.NoError(t, err)

	_, err = prog.variable(mm, 1)
	assert.True(t, errors.Is(err, ErrVariableNotFound))

	for name := memory.Word(0); name < VAR_SLOTS; name++ {
		assert.NoError(t, prog.declare(mm, name))
	}

	// Redeclaring is a no-op even when full
	assert.NoError(t, prog.declare(mm, 3))

	err = prog.declare(mm, VAR_SLOTS)
	assert.True(t, errors.Is(err, ErrVariableTableFull))

	addr, err := prog.variable(mm, VAR_SLOTS-1)
	assert.NoError(t, err)

	offset, err := prog.Data.Offset(addr)
	assert.NoError(t, err)
	assert.Equal(t, 2*VAR_SLOTS, offset)
	assert.True(t, offset < VAR_TABLE)
}

func TestProcessTable(t *testing.T) {
	pt := NewProcessTable()

	assert.Nil(t, pt.Active())
	assert.Equal(t, -1, pt.ActiveID())

	first := pt.Fork([]string{"init"}, &Program{})
	second := pt.Fork(nil, &Program{})

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, []int{1, 2}, pt.IDs())

	assert.NoError(t, pt.SetActive(second))
	assert.Equal(t, second, pt.Active().ID)

	err := pt.SetActive(9)
	assert.True(t, errors.Is(err, ErrProcessNotFound))
	assert.Equal(t, second, pt.ActiveID())

	proc, exists := pt.Get(first)
	assert.True(t, exists)
	assert.Equal(t, "pid=1 parent=-1 status=ready args=init", proc.Info())
}
