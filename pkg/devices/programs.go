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

package devices

import (
	"os"
	"path/filepath"

	"github.com/lassandro/gorvm/pkg/encoding"
	"github.com/lassandro/gorvm/pkg/memory"
)

// Program files carry this extension inside a DirStore
const PROGRAM_EXT = ".rm"

// ProgramStore resolves a program name to its words. An empty result means
// the program does not exist.
type ProgramStore interface {
	Resolve(name, keyword string) []memory.Word
}

// DirStore looks programs up as <Root>/<keyword>/<name>.rm first, then
// <Root>/<name>.rm.
type DirStore struct {
	Root string
}

func (store DirStore) Resolve(name, keyword string) []memory.Word {
	if name == "" {
		return nil
	}

	name = filepath.Base(name)
	candidates := []string{filepath.Join(store.Root, name+PROGRAM_EXT)}

	if keyword != "" {
		candidates = append(
			[]string{filepath.Join(store.Root, keyword, name+PROGRAM_EXT)},
			candidates...,
		)
	}

	for _, path := range candidates {
		words, err := readProgram(path)

		if err == nil && len(words) > 0 {
			return words
		}
	}

	return nil
}

func readProgram(path string) ([]memory.Word, error) {
	file, err := os.Open(path)

	if err != nil {
		return nil, err
	}

	defer file.Close()

	return encoding.ParseWords(file)
}

// MapStore resolves "keyword/name" first, then "name".
type MapStore map[string][]memory.Word

func (store MapStore) Resolve(name, keyword string) []memory.Word {
	if words, exists := store[keyword+"/"+name]; exists && keyword != "" {
		return words
	}

	return store[name]
}
