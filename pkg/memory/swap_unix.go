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

package memory

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const wordBytes = 4

// MmapSwap stores evicted pages in a memory mapped file with one fixed slot
// per virtual page.
type MmapSwap struct {
	file  *os.File
	data  []byte
	valid []bool
}

func OpenMmapSwap(path string, pages int) (*MmapSwap, error) {
	if pages <= 0 {
		pages = DEFAULT_PAGES
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)

	if err != nil {
		return nil, err
	}

	size := pages * PAGE_SIZE * wordBytes

	if err := file.Truncate(int64(size)); err != nil {
		file.Close()
		return nil, err
	}

	data, err := unix.Mmap(
		int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED,
	)

	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mapping swap file: %w", err)
	}

	return &MmapSwap{file: file, data: data, valid: make([]bool, pages)}, nil
}

func (s *MmapSwap) SwapOut(page int, data []Word) error {
	slot, err := s.slot(page)

	if err != nil {
		return err
	}

	for i, value := range data {
		binary.LittleEndian.PutUint32(slot[i*wordBytes:], uint32(value))
	}

	s.valid[page] = true
	return nil
}

func (s *MmapSwap) SwapIn(page int, data []Word) (bool, error) {
	slot, err := s.slot(page)

	if err != nil {
		return false, err
	}

	if !s.valid[page] {
		return false, nil
	}

	for i := range data {
		data[i] = Word(binary.LittleEndian.Uint32(slot[i*wordBytes:]))
	}

	s.valid[page] = false
	return true, nil
}

func (s *MmapSwap) Release(page int) {
	if page >= 0 && page < len(s.valid) {
		s.valid[page] = false
	}
}

func (s *MmapSwap) Close() error {
	if err := unix.Munmap(s.data); err != nil {
		s.file.Close()
		return err
	}

	return s.file.Close()
}

func (s *MmapSwap) slot(page int) ([]byte, error) {
	if page < 0 || page >= len(s.valid) {
		return nil, fmt.Errorf("swap slot %d out of range", page)
	}

	start := page * PAGE_SIZE * wordBytes
	return s.data[start : start+PAGE_SIZE*wordBytes], nil
}
