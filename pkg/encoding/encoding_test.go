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

package encoding

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lassandro/gorvm/pkg/memory"
	"github.com/retroenv/retrogolib/assert"
)

func TestDecodeWord(t *testing.T) {
	type testCase struct {
		input    string
		expected memory.Word
		valid    bool
	}

	testCases := []testCase{
		{"123", 123, true},
		{"#123", 123, true},
		{"-7", -7, true},
		{"0x10", 16, true},
		{"x1F", 31, true},
		{"-0x10", -16, true},
		{"12x", 0, false},
		{"abc", 0, false},
		{"99999999999", 0, false},
	}

	for _, test := range testCases {
		t.Run(test.input, func(t *testing.T) {
			result, err := DecodeWord(test.input)

			if !test.valid {
				assert.True(t, err != nil)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, test.expected, result)
		})
	}
}

func TestParseWords(t *testing.T) {
	words, err := ParseWords(strings.NewReader("2 7\n6  5\t0\n"))

	assert.NoError(t, err)
	assert.Equal(t, []memory.Word{2, 7, 6, 5, 0}, words)
}

func TestParseWordsEmpty(t *testing.T) {
	words, err := ParseWords(strings.NewReader("  \n"))

	assert.NoError(t, err)
	assert.Equal(t, 0, len(words))
}

func TestParseWordsInvalid(t *testing.T) {
	_, err := ParseWords(strings.NewReader("2 7 seven"))

	assert.True(t, err != nil)
	assert.True(t, strings.Contains(err.Error(), "word 2"))
}

func TestWriteWords(t *testing.T) {
	var buf bytes.Buffer
	words := []memory.Word{2, -7, 6, 5, 0}

	assert.NoError(t, WriteWords(&buf, words, 2))
	assert.Equal(t, "2 -7\n6 5\n0\n", buf.String())

	parsed, err := ParseWords(&buf)
	assert.NoError(t, err)
	assert.Equal(t, words, parsed)
}
