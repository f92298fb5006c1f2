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

// MemorySwap keeps evicted pages in host memory. It is the default backing
// store: an evicted page is restored intact on its next access.
type MemorySwap struct {
	pages map[int][]Word
}

func NewMemorySwap() *MemorySwap {
	return &MemorySwap{pages: make(map[int][]Word)}
}

func (s *MemorySwap) SwapOut(page int, data []Word) error {
	saved := make([]Word, len(data))
	copy(saved, data)
	s.pages[page] = saved
	return nil
}

func (s *MemorySwap) SwapIn(page int, data []Word) (bool, error) {
	saved, exists := s.pages[page]

	if !exists {
		return false, nil
	}

	copy(data, saved)
	delete(s.pages, page)
	return true, nil
}

func (s *MemorySwap) Release(page int) {
	delete(s.pages, page)
}

func (s *MemorySwap) Len() int {
	return len(s.pages)
}

// DiscardSwap drops evicted pages. A page brought back in is zero filled.
type DiscardSwap struct{}

func (DiscardSwap) SwapOut(page int, data []Word) error {
	return nil
}

func (DiscardSwap) SwapIn(page int, data []Word) (bool, error) {
	return false, nil
}

func (DiscardSwap) Release(page int) {}
