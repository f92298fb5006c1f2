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

//go:build !unix

package memory

import "errors"

type MmapSwap struct{}

func OpenMmapSwap(path string, pages int) (*MmapSwap, error) {
	return nil, errors.New("mmap swap is only available on unix systems")
}

func (s *MmapSwap) SwapOut(page int, data []Word) error {
	return errors.New("mmap swap unavailable")
}

func (s *MmapSwap) SwapIn(page int, data []Word) (bool, error) {
	return false, errors.New("mmap swap unavailable")
}

func (s *MmapSwap) Release(page int) {}

func (s *MmapSwap) Close() error {
	return nil
}
