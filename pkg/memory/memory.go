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

import (
	"fmt"
	"sort"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrogolib/set"
)

func New(cfg Config) *Manager {
	if cfg.Frames <= 0 {
		cfg.Frames = DEFAULT_FRAMES
	}

	if cfg.Pages <= 0 {
		cfg.Pages = DEFAULT_PAGES
	}

	if cfg.Swap == nil {
		cfg.Swap = NewMemorySwap()
	}

	if cfg.Logger == nil {
		logCfg := log.DefaultConfig()
		logCfg.Level = log.ErrorLevel
		cfg.Logger = log.NewWithConfig(logCfg)
	}

	mm := &Manager{
		RAM:       make([]Word, cfg.Frames*PAGE_SIZE),
		PageTable: make([]PageTableEntry, cfg.Pages),
		frames:    make([]int, cfg.Frames),
		swap:      cfg.Swap,
		logger:    cfg.Logger,
	}

	for i := range mm.frames {
		mm.frames[i] = -1
	}

	for i := range mm.PageTable {
		mm.PageTable[i].Frame = -1
	}

	return mm
}

// PageCount is the number of pages needed to hold size cells.
func PageCount(size int) int {
	if size <= 0 {
		return 0
	}

	return (size + PAGE_SIZE - 1) / PAGE_SIZE
}

// Allocate maps ceil(size/PAGE_SIZE) free virtual pages to frames. Free
// frames are used first; the remainder is reclaimed by evicting the least
// accessed resident pages that are not in exclude. New pages start zeroed.
// Nothing is mutated when the request cannot be satisfied.
func (mm *Manager) Allocate(size int, exclude set.Set[int]) (Region, error) {
	count := PageCount(size)
	pages := make([]int, 0, count)

	for page := range mm.PageTable {
		if len(pages) == count {
			break
		}

		entry := &mm.PageTable[page]
		if entry.Used || entry.Swapped || isExcluded(exclude, page) {
			continue
		}

		pages = append(pages, page)
	}

	if len(pages) < count {
		return Region{}, fmt.Errorf(
			"%w: %d of %d virtual pages available", ErrOutOfMemory, len(pages), count,
		)
	}

	frames := mm.freeFrames(count)

	if missing := count - len(frames); missing > 0 {
		victims := mm.victims(missing, exclude, -1)

		if len(victims) < missing {
			return Region{}, fmt.Errorf(
				"%w: %d of %d frames reclaimable", ErrOutOfMemory,
				len(frames)+len(victims), count,
			)
		}

		for _, victim := range victims {
			frame, err := mm.evict(victim)

			if err != nil {
				return Region{}, err
			}

			frames = append(frames, frame)
		}
	}

	for i, page := range pages {
		data := mm.frame(frames[i])
		for j := range data {
			data[j] = 0
		}

		mm.mapPage(page, frames[i])
		mm.PageTable[page].Accesses = 0
	}

	return Region{Pages: pages}, nil
}

// Free marks every page of the region non-resident. Frame contents are kept.
func (mm *Manager) Free(region Region) {
	for _, page := range region.Pages {
		if page < 0 || page >= len(mm.PageTable) {
			continue
		}

		entry := &mm.PageTable[page]

		if entry.Used {
			mm.frames[entry.Frame] = -1
		}

		if entry.Swapped {
			mm.swap.Release(page)
		}

		entry.Used = false
		entry.Swapped = false
		entry.Frame = -1
		entry.Accesses = 0
	}
}

// Translate converts a virtual address to a physical RAM index. Swapped out
// pages are brought back in; a page that was never allocated is a page
// fault.
func (mm *Manager) Translate(addr int) (int, error) {
	page := addr >> OFFSET_BITS
	offset := addr & OFFSET_MASK

	if addr < 0 || page >= len(mm.PageTable) {
		return 0, fmt.Errorf("%w: address %#x outside page table", ErrPageFault, addr)
	}

	entry := &mm.PageTable[page]

	if !entry.Used {
		if !entry.Swapped {
			return 0, fmt.Errorf("%w: page %d is not mapped", ErrPageFault, page)
		}

		if err := mm.pageIn(page, nil); err != nil {
			return 0, err
		}
	}

	entry.Accesses++

	return entry.Frame*PAGE_SIZE + offset, nil
}

func (mm *Manager) ReadRAM(addr int) (Word, error) {
	phys, err := mm.Translate(addr)

	if err != nil {
		return 0, err
	}

	return mm.RAM[phys], nil
}

func (mm *Manager) WriteRAM(addr int, value Word) error {
	phys, err := mm.Translate(addr)

	if err != nil {
		return err
	}

	mm.RAM[phys] = value
	return nil
}

// Peek reads a resident address without counting the access or paging it in.
func (mm *Manager) Peek(addr int) (Word, bool) {
	page := addr >> OFFSET_BITS

	if addr < 0 || page >= len(mm.PageTable) || !mm.PageTable[page].Used {
		return 0, false
	}

	return mm.RAM[mm.PageTable[page].Frame*PAGE_SIZE+addr&OFFSET_MASK], true
}

func (mm *Manager) ReadSegment(seg *Segment, addr int) (Word, error) {
	if !seg.Memory.Contains(addr) {
		return 0, fmt.Errorf("%w: read at %#x", ErrForbiddenMemory, addr)
	}

	return mm.ReadRAM(addr)
}

func (mm *Manager) WriteSegment(seg *Segment, addr int, value Word) error {
	if !seg.Memory.Contains(addr) {
		return fmt.Errorf("%w: write at %#x", ErrForbiddenMemory, addr)
	}

	return mm.WriteRAM(addr, value)
}

// InitSegment allocates a single page segment.
func (mm *Manager) InitSegment(direction int, exclude set.Set[int]) (*Segment, error) {
	region, err := mm.Allocate(PAGE_SIZE, exclude)

	if err != nil {
		return nil, err
	}

	start := region.Pages[0] << OFFSET_BITS

	return &Segment{
		Direction:    direction,
		Memory:       region,
		StartPointer: start,
		WritePointer: start,
	}, nil
}

// Resident makes sure every page of the region is mapped to a frame. Pages
// in exclude are never evicted to make room.
func (mm *Manager) Resident(region Region, exclude set.Set[int]) error {
	for _, page := range region.Pages {
		if page < 0 || page >= len(mm.PageTable) {
			return fmt.Errorf("%w: page %d outside page table", ErrPageFault, page)
		}

		entry := &mm.PageTable[page]

		if !entry.Used {
			if !entry.Swapped {
				return fmt.Errorf("%w: page %d is not mapped", ErrPageFault, page)
			}

			if err := mm.pageIn(page, exclude); err != nil {
				return err
			}
		}

		entry.Accesses++
	}

	return nil
}

func (mm *Manager) Stats() Stats {
	var stats Stats

	for _, entry := range mm.PageTable {
		if entry.Used {
			stats.Resident++
		} else if entry.Swapped {
			stats.Swapped++
		}
	}

	for _, owner := range mm.frames {
		if owner == -1 {
			stats.FreeFrames++
		}
	}

	stats.Evictions = mm.evictions
	stats.PageIns = mm.pageIns

	return stats
}

func (mm *Manager) freeFrames(limit int) []int {
	frames := make([]int, 0, limit)

	for frame, owner := range mm.frames {
		if len(frames) == limit {
			break
		}

		if owner == -1 {
			frames = append(frames, frame)
		}
	}

	return frames
}

// victims returns up to count resident pages ordered by access count,
// leaving out skip and the pages in exclude.
func (mm *Manager) victims(count int, exclude set.Set[int], skip int) []int {
	candidates := make([]int, 0)

	for page, entry := range mm.PageTable {
		if entry.Used && page != skip && !isExcluded(exclude, page) {
			candidates = append(candidates, page)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return mm.PageTable[candidates[i]].Accesses <
			mm.PageTable[candidates[j]].Accesses
	})

	if len(candidates) > count {
		candidates = candidates[:count]
	}

	return candidates
}

func (mm *Manager) evict(page int) (int, error) {
	entry := &mm.PageTable[page]
	frame := entry.Frame

	if err := mm.swap.SwapOut(page, mm.frame(frame)); err != nil {
		return 0, fmt.Errorf("swapping out page %d: %w", page, err)
	}

	mm.frames[frame] = -1
	entry.Used = false
	entry.Swapped = true
	entry.Frame = -1
	mm.evictions++

	mm.logger.Debug("Page evicted",
		log.Int("page", page),
		log.Int("frame", frame))

	return frame, nil
}

func (mm *Manager) pageIn(page int, exclude set.Set[int]) error {
	frames := mm.freeFrames(1)

	if len(frames) == 0 {
		victims := mm.victims(1, exclude, page)

		if len(victims) == 0 {
			return fmt.Errorf("%w: no frame to page in %d", ErrOutOfMemory, page)
		}

		frame, err := mm.evict(victims[0])

		if err != nil {
			return err
		}

		frames = append(frames, frame)
	}

	data := mm.frame(frames[0])
	found, err := mm.swap.SwapIn(page, data)

	if err != nil {
		return fmt.Errorf("swapping in page %d: %w", page, err)
	}

	if !found {
		for i := range data {
			data[i] = 0
		}
	}

	mm.mapPage(page, frames[0])
	mm.pageIns++

	mm.logger.Debug("Page loaded",
		log.Int("page", page),
		log.Int("frame", frames[0]))

	return nil
}

func (mm *Manager) mapPage(page, frame int) {
	entry := &mm.PageTable[page]
	entry.Frame = frame
	entry.Used = true
	entry.Swapped = false
	mm.frames[frame] = page
}

func (mm *Manager) frame(frame int) []Word {
	return mm.RAM[frame*PAGE_SIZE : (frame+1)*PAGE_SIZE]
}

func isExcluded(exclude set.Set[int], page int) bool {
	return exclude != nil && exclude.Contains(page)
}
