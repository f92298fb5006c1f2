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

package debugger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/lassandro/gorvm/pkg/assembler"
	"github.com/lassandro/gorvm/pkg/machine"
	"github.com/lassandro/gorvm/pkg/memory"
)

func (dbg *Debugger) Step(mc *machine.Machine) {
	if dbg.Break {
		dbg.handleBreak(mc)
		return
	}

	for _, breakpoint := range dbg.Breakpoints {
		if breakpoint.PID != 0 && breakpoint.PID != mc.ActivePID() {
			continue
		}

		if int(mc.State.PC) == breakpoint.Addr {
			dbg.handleBreak(mc)
			break
		}
	}
}

func (dbg *Debugger) Read(addr int, mc *machine.Machine) {
	for _, watchpoint := range dbg.Watchpoints {
		if watchpoint.Type == WriteWatch {
			continue
		}

		if addr == watchpoint.Addr {
			if dbg.HandleRead != nil {
				dbg.HandleRead(addr, dbg, mc)
			}

			break
		}
	}
}

func (dbg *Debugger) Write(addr int, mc *machine.Machine) {
	for _, watchpoint := range dbg.Watchpoints {
		if watchpoint.Type == ReadWatch {
			continue
		}

		if addr == watchpoint.Addr {
			if dbg.HandleWrite != nil {
				dbg.HandleWrite(addr, dbg, mc)
			}

			break
		}
	}
}

// ToggleBreakpoint adds a breakpoint at addr, or removes it when present.
// It reports whether the breakpoint is now set.
func (dbg *Debugger) ToggleBreakpoint(pid, addr int) bool {
	for i, breakpoint := range dbg.Breakpoints {
		if breakpoint.PID == pid && breakpoint.Addr == addr {
			dbg.Breakpoints = append(dbg.Breakpoints[:i], dbg.Breakpoints[i+1:]...)
			return false
		}
	}

	dbg.Breakpoints = append(dbg.Breakpoints, Breakpoint{PID: pid, Addr: addr})
	return true
}

// ToggleWatchpoint adds a watchpoint on addr, or removes any watchpoint on
// it. It reports whether a watchpoint is now set.
func (dbg *Debugger) ToggleWatchpoint(addr int, wtype WatchpointType) bool {
	for i, watchpoint := range dbg.Watchpoints {
		if watchpoint.Addr == addr {
			dbg.Watchpoints = append(dbg.Watchpoints[:i], dbg.Watchpoints[i+1:]...)
			return false
		}
	}

	dbg.Watchpoints = append(dbg.Watchpoints, Watchpoint{Addr: addr, Type: wtype})
	return true
}

// PrintSource prints count source lines starting at the line that produced
// the instruction at code offset addr.
func (dbg *Debugger) PrintSource(addr int, count int) {
	out := dbg.out()

	if dbg.Source == nil {
		fmt.Fprintln(out, "No source file loaded")
		return
	}

	if dbg.SymTable == nil {
		fmt.Fprintln(out, "No symbol table loaded")
		return
	}

	offset, exists := dbg.SymTable.Symbols[addr]

	if !exists {
		fmt.Fprintf(out, "No instruction found at %d\n", addr)
		return
	}

	if _, err := dbg.Source.Seek(offset, io.SeekStart); err != nil {
		fmt.Fprintln(out, err)
		return
	}

	lines := make(map[int64]int, len(dbg.SymTable.Symbols))
	for lineaddr, linebyte := range dbg.SymTable.Symbols {
		lines[linebyte] = lineaddr
	}

	scanner := bufio.NewScanner(dbg.Source)
	scanner.Split(bufio.ScanLines)

	for i := 0; i < count; i++ {
		if !scanner.Scan() {
			break
		}

		line := scanner.Text()

		if lineaddr, found := lines[offset]; found {
			fmt.Fprintf(out, "\033[1m[%04d]\033[0m ", lineaddr)
		} else {
			fmt.Fprint(out, "\033[1;30m~~~~~~\033[0m ")
		}

		fmt.Fprintln(out, line)

		offset += int64(len(line) + 1)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintln(out, err)
	}
}

// PrintCode disassembles count instructions of the active process starting
// at code offset addr.
func (dbg *Debugger) PrintCode(mc *machine.Machine, addr, count int) {
	out := dbg.out()
	proc := mc.Processes.Active()

	if proc == nil {
		fmt.Fprintln(out, "No process loaded")
		return
	}

	words := SegmentWords(mc.Memory, proc.Program.Code)

	for i := 0; i < count; i++ {
		text, size := assembler.Disassemble(words, addr, dbg.SymTable)

		if size == 0 {
			break
		}

		marker := "  "
		if addr == int(mc.State.PC) {
			marker = "=>"
		}

		fmt.Fprintf(out, "%s \033[1m[%04d]\033[0m %s\n", marker, addr, text)
		addr += size
	}
}

// PrintMem dumps count cells starting at virtual address addr. Pages that
// are not resident are shown as '----' and are not paged in.
func (dbg *Debugger) PrintMem(mm *memory.Manager, addr, count int) {
	out := dbg.out()

	for i := addr; i < addr+count; i++ {
		if i == addr {
			fmt.Fprintf(out, "\033[1m[%#06x]\033[0m ", i)
		} else if (i-addr)%4 == 0 {
			fmt.Fprintln(out)
			fmt.Fprintf(out, "\033[1m[%#06x]\033[0m ", i)
		}

		result, resident := mm.Peek(i)

		if !resident {
			fmt.Fprint(out, "\033[1;30m----------\033[0m ")
		} else if result == 0 {
			fmt.Fprintf(out, "\033[1;30m0x%08x\033[0m ", uint32(result))
		} else {
			fmt.Fprintf(out, "0x%08x ", uint32(result))
		}
	}

	fmt.Fprintln(out)
}

// PrintProcesses lists the process table.
func (dbg *Debugger) PrintProcesses(mc *machine.Machine) {
	out := dbg.out()

	for _, pid := range mc.Processes.IDs() {
		proc, _ := mc.Processes.Get(pid)

		marker := "  "
		if pid == mc.ActivePID() {
			marker = "=>"
		}

		fmt.Fprintf(out, "%s %s\n", marker, proc.Info())

		if proc.Fault != nil {
			fmt.Fprintf(out, "   %v\n", proc.Fault)
		}
	}
}

// PrintPages lists resident and swapped pages of the page table.
func (dbg *Debugger) PrintPages(mm *memory.Manager) {
	out := dbg.out()
	stats := mm.Stats()

	fmt.Fprintf(
		out, "resident=%d swapped=%d free_frames=%d evictions=%d page_ins=%d\n",
		stats.Resident, stats.Swapped, stats.FreeFrames, stats.Evictions, stats.PageIns,
	)

	pages := make([]int, 0)
	for page, entry := range mm.PageTable {
		if entry.Used || entry.Swapped {
			pages = append(pages, page)
		}
	}

	sort.Ints(pages)

	for _, page := range pages {
		entry := mm.PageTable[page]

		if entry.Used {
			fmt.Fprintf(out, "page %4d frame %4d accesses %d\n", page, entry.Frame, entry.Accesses)
		} else {
			fmt.Fprintf(out, "page %4d swapped  accesses %d\n", page, entry.Accesses)
		}
	}
}

// SegmentWords copies the resident cells of a segment in logical order,
// stopping at the first page that is not resident.
func SegmentWords(mm *memory.Manager, seg *memory.Segment) []memory.Word {
	words := make([]memory.Word, 0, seg.Capacity())

	for offset := 0; offset < seg.Capacity(); offset++ {
		addr, err := seg.Address(offset)

		if err != nil {
			break
		}

		value, resident := mm.Peek(addr)

		if !resident {
			break
		}

		words = append(words, value)
	}

	return words
}

func (dbg *Debugger) handleBreak(mc *machine.Machine) {
	if dbg.HandleBreak != nil {
		dbg.HandleBreak(dbg, mc)
	}
}

func (dbg *Debugger) out() io.Writer {
	if dbg.Out != nil {
		return dbg.Out
	}

	return os.Stdout
}
