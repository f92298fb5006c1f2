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

func TestHeap(t *testing.T) {
	type testCase struct {
		name string
		text string
	}

	testCases := []testCase{
		{"ascii", "hi"},
		{"empty", ""},
		{"newline", "a\nb"},
		{"unicode", "héllo"},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			mm := newTestMemory(4)
			heap := NewHeap(mm)

			prog, err := LoadProgram(mm, nil)
			assert.NoError(t, err)

			handle, err := heap.Alloc(1, prog, len([]rune(test.text)))
			assert.NoError(t, err)
			assert.Equal(t, memory.Word(VAR_TABLE), handle.Start)

			assert.NoError(t, heap.StoreString(handle, test.text))

			found, err := heap.Lookup(1, handle.Start)
			assert.NoError(t, err)

			text, err := heap.ReadString(found)
			assert.NoError(t, err)
			assert.Equal(t, test.text, text)

			assert.NoError(t, heap.Free(handle))

			_, err = heap.Lookup(1, handle.Start)
			assert.True(t, errors.Is(err, ErrHandleNotFound))

			err = heap.Free(handle)
			assert.True(t, errors.Is(err, ErrHandleNotFound))
		})
	}
}

func TestHeapNoReuse(t *testing.T) {
	mm := newTestMemory(4)
	heap := NewHeap(mm)

	prog, err := LoadProgram(mm, nil)
	assert.NoError(t, err)

	first, err := heap.Alloc(1, prog, 4)
	assert.NoError(t, err)
	assert.NoError(t, heap.Free(first))

	second, err := heap.Alloc(1, prog, 4)
	assert.NoError(t, err)
	assert.Equal(t, first.Start+4, second.Start)

	// Empty blocks still own a cell
	empty, err := heap.Alloc(1, prog, 0)
	assert.NoError(t, err)

	third, err := heap.Alloc(1, prog, 1)
	assert.NoError(t, err)
	assert.Equal(t, empty.Start+1, third.Start)
}

func TestHeapExhausted(t *testing.T) {
	mm := newTestMemory(4)
	heap := NewHeap(mm)

	prog, err := LoadProgram(mm, nil)
	assert.NoError(t, err)

	remaining := prog.Data.Remaining()

	handle, err := heap.Alloc(1, prog, remaining)
	assert.NoError(t, err)
	assert.Equal(t, 0, prog.Data.Remaining())

	_, err = heap.Alloc(1, prog, 1)
	assert.True(t, errors.Is(err, ErrHeapExhausted))

	err = heap.StoreString(Handle{PID: 1, Start: handle.Start, Size: 1, segment: prog.Data}, "too long")
	assert.True(t, errors.Is(err, memory.ErrForbiddenMemory))
}

func TestHeapScopedByProcess(t *testing.T) {
	mm := newTestMemory(8)
	heap := NewHeap(mm)

	first, err := LoadProgram(mm, nil)
	assert.NoError(t, err)

	second, err := LoadProgram(mm, nil)
	assert.NoError(t, err)

	a, err := heap.Alloc(1, first, 2)
	assert.NoError(t, err)
	assert.NoError(t, heap.StoreString(a, "aa"))

	b, err := heap.Alloc(2, second, 2)
	assert.NoError(t, err)
	assert.NoError(t, heap.StoreString(b, "bb"))

	// Same start, different owners
	assert.Equal(t, a.Start, b.Start)

	found, err := heap.Lookup(2, a.Start)
	assert.NoError(t, err)

	text, err := heap.ReadString(found)
	assert.NoError(t, err)
	assert.Equal(t, "bb", text)

	assert.Equal(t, 1, len(heap.Handles(1)))

	heap.Release(2)
	assert.Equal(t, 1, heap.Len())

	_, err = heap.Lookup(2, b.Start)
	assert.True(t, errors.Is(err, ErrHandleNotFound))
}
