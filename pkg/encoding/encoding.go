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
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lassandro/gorvm/pkg/memory"
)

// Decodes a hexidecimal string in the formats: 0xFFFF, xFFFF, -0xFF, -xFF
func DecodeHex(s string) (memory.Word, error) {
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	if i := strings.IndexAny(s, "xX"); i == 0 {
		s = "0" + s
	} else if i == -1 || i != 1 {
		return 0, errors.New("Invalid hex string")
	}

	result, err := strconv.ParseUint(s, 0, 32)

	if err != nil {
		return 0, err
	}

	if negative {
		return -memory.Word(result), nil
	}

	return memory.Word(result), nil
}

// Decodes a base-10 string in the formats: #123, 123, -123
func DecodeInt(s string) (memory.Word, error) {
	if i := strings.Index(s, "#"); i == 0 {
		s = s[1:]
	}

	result, err := strconv.ParseInt(s, 10, 32)

	if err != nil {
		return 0, err
	}

	return memory.Word(result), nil
}

// DecodeWord accepts either of the DecodeInt or DecodeHex formats.
func DecodeWord(s string) (memory.Word, error) {
	if strings.ContainsAny(s, "xX") {
		return DecodeHex(s)
	}

	return DecodeInt(s)
}

// ParseWords reads a program file: whitespace separated integers, one word
// per token, in order.
func ParseWords(reader io.Reader) ([]memory.Word, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Split(bufio.ScanWords)

	words := make([]memory.Word, 0)

	for scanner.Scan() {
		word, err := DecodeWord(scanner.Text())

		if err != nil {
			return nil, fmt.Errorf("word %d %q: %w", len(words), scanner.Text(), err)
		}

		words = append(words, word)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return words, nil
}

// WriteWords writes words in the format ParseWords reads, wrapping lines
// after perLine words. perLine <= 0 puts everything on one line.
func WriteWords(writer io.Writer, words []memory.Word, perLine int) error {
	out := bufio.NewWriter(writer)

	for i, word := range words {
		sep := " "

		if i == len(words)-1 || (perLine > 0 && (i+1)%perLine == 0) {
			sep = "\n"
		}

		if _, err := out.WriteString(strconv.Itoa(int(word)) + sep); err != nil {
			return err
		}
	}

	return out.Flush()
}
