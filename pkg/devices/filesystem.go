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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidFileName = errors.New("invalid file name")
)

// FileSystem is the descriptor table the file interrupts delegate to.
type FileSystem interface {
	Describe(id int) (string, error)
	Create(name string) (int, error)
	Delete(name string) bool
	Modify(oldName, newName string) bool
	Write(name, text string) bool
	IndexSize() int
}

type File struct {
	ID      int
	Name    string
	Content string
}

// Table is an in-memory descriptor index. When Dir is set every change is
// mirrored to a file of the same name inside it.
type Table struct {
	Dir string

	files map[string]*File
	next  int
}

func NewTable() *Table {
	return &Table{files: make(map[string]*File), next: 1}
}

// OpenTable indexes the regular files of dir and mirrors changes into it.
func OpenTable(dir string) (*Table, error) {
	entries, err := os.ReadDir(dir)

	if err != nil {
		return nil, err
	}

	table := NewTable()
	table.Dir = dir

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))

		if err != nil {
			return nil, err
		}

		table.insert(entry.Name(), string(content))
	}

	return table, nil
}

func (table *Table) Describe(id int) (string, error) {
	for _, file := range table.files {
		if file.ID == id {
			return fmt.Sprintf("%d %s %d", file.ID, file.Name, len(file.Content)), nil
		}
	}

	return "", fmt.Errorf("%w: descriptor %d", ErrFileNotFound, id)
}

// Create opens a new empty file, or returns the descriptor of an existing one.
func (table *Table) Create(name string) (int, error) {
	if err := validName(name); err != nil {
		return 0, err
	}

	if file, exists := table.files[name]; exists {
		return file.ID, nil
	}

	if err := table.mirror(name, ""); err != nil {
		return 0, err
	}

	return table.insert(name, "").ID, nil
}

func (table *Table) Delete(name string) bool {
	if _, exists := table.files[name]; !exists {
		return false
	}

	if table.Dir != "" {
		if err := os.Remove(table.path(name)); err != nil {
			return false
		}
	}

	delete(table.files, name)
	return true
}

// Modify renames oldName to newName keeping its descriptor.
func (table *Table) Modify(oldName, newName string) bool {
	file, exists := table.files[oldName]

	if !exists || validName(newName) != nil {
		return false
	}

	if _, taken := table.files[newName]; taken {
		return false
	}

	if table.Dir != "" {
		if err := os.Rename(table.path(oldName), table.path(newName)); err != nil {
			return false
		}
	}

	delete(table.files, oldName)
	file.Name = newName
	table.files[newName] = file
	return true
}

// Write replaces the content of an existing file.
func (table *Table) Write(name, text string) bool {
	file, exists := table.files[name]

	if !exists {
		return false
	}

	if err := table.mirror(name, text); err != nil {
		return false
	}

	file.Content = text
	return true
}

func (table *Table) IndexSize() int {
	return len(table.files)
}

// Files lists the index ordered by descriptor.
func (table *Table) Files() []File {
	files := make([]File, 0, len(table.files))

	for _, file := range table.files {
		files = append(files, *file)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ID < files[j].ID
	})

	return files
}

func (table *Table) insert(name, content string) *File {
	file := &File{ID: table.next, Name: name, Content: content}
	table.next++
	table.files[name] = file
	return file
}

func (table *Table) mirror(name, content string) error {
	if table.Dir == "" {
		return nil
	}

	return os.WriteFile(table.path(name), []byte(content), 0o644)
}

func (table *Table) path(name string) string {
	return filepath.Join(table.Dir, name)
}

// validName accepts plain names only, so every index entry owns exactly one
// file of the backing directory.
func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}

	return nil
}
