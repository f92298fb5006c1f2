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
	"fmt"
	"sort"
	"strings"

	"github.com/lassandro/gorvm/pkg/memory"
	"github.com/retroenv/retrogolib/set"
)

// LoadProgram copies words into a fresh code segment and allocates the data
// and stack segments next to it. The code segment grows a page at a time and
// never evicts pages the program already owns.
func LoadProgram(mm *memory.Manager, words []memory.Word) (*Program, error) {
	owned := set.New[int]()
	var prog Program

	code, err := mm.InitSegment(memory.DIR_UP, owned)

	if err != nil {
		return nil, err
	}

	prog.Code = code
	own(owned, code)

	for _, word := range words {
		if code.Remaining() == 0 {
			if err := code.Grow(mm, owned); err != nil {
				FreeProgram(mm, &prog)
				return nil, err
			}

			own(owned, code)
		}

		if err := code.Append(mm, word); err != nil {
			FreeProgram(mm, &prog)
			return nil, err
		}
	}

	if prog.Data, err = mm.InitSegment(memory.DIR_UP, owned); err != nil {
		FreeProgram(mm, &prog)
		return nil, err
	}

	own(owned, prog.Data)

	if prog.Stack, err = mm.InitSegment(memory.DIR_DOWN, owned); err != nil {
		FreeProgram(mm, &prog)
		return nil, err
	}

	// Empty variable table, heap starts right after it
	if err := mm.WriteSegment(prog.Data, prog.Data.StartPointer, 0); err != nil {
		FreeProgram(mm, &prog)
		return nil, err
	}

	if err := prog.Data.Advance(VAR_TABLE); err != nil {
		FreeProgram(mm, &prog)
		return nil, err
	}

	prog.Snapshot = Snapshot{
		SP:  memory.Word(prog.Stack.StartPointer + memory.PAGE_SIZE - 1),
		Ret: NO_RETURN,
	}

	return &prog, nil
}

// FreeProgram releases every segment of the program.
func FreeProgram(mm *memory.Manager, prog *Program) {
	for _, seg := range []*memory.Segment{prog.Code, prog.Data, prog.Stack} {
		if seg != nil {
			mm.Free(seg.Memory)
		}
	}
}

// PrepareProgramMemory makes the program's pages resident before it resumes
// and points the stack pointer at the tail of the stack segment when it no
// longer lies inside it.
func PrepareProgramMemory(mm *memory.Manager, prog *Program) error {
	owned := set.New[int]()

	for _, page := range prog.Pages() {
		owned.Add(page)
	}

	for _, seg := range []*memory.Segment{prog.Code, prog.Data, prog.Stack} {
		if err := mm.Resident(seg.Memory, owned); err != nil {
			return err
		}
	}

	if !prog.Stack.Memory.Contains(int(prog.Snapshot.SP)) {
		prog.Snapshot.SP = memory.Word(prog.Stack.Tail())
	}

	return nil
}

// Pages lists every virtual page owned by the program.
func (prog *Program) Pages() []int {
	pages := make([]int, 0, 3)

	for _, seg := range []*memory.Segment{prog.Code, prog.Data, prog.Stack} {
		pages = append(pages, seg.Memory.Pages...)
	}

	return pages
}

// variable returns the address of the value cell of a declared variable.
func (prog *Program) variable(mm *memory.Manager, name memory.Word) (int, error) {
	count, err := mm.ReadSegment(prog.Data, prog.Data.StartPointer)

	if err != nil {
		return 0, err
	}

	for i := 0; i < int(count); i++ {
		addr, err := prog.Data.Address(1 + 2*i)

		if err != nil {
			return 0, err
		}

		value, err := mm.ReadSegment(prog.Data, addr)

		if err != nil {
			return 0, err
		}

		if value == name {
			return prog.Data.Address(2 + 2*i)
		}
	}

	return 0, fmt.Errorf("%w: %d", ErrVariableNotFound, name)
}

// declare adds a variable initialised to zero unless it already exists.
func (prog *Program) declare(mm *memory.Manager, name memory.Word) error {
	_, err := prog.variable(mm, name)

	if err == nil {
		return nil
	} else if !errors.Is(err, ErrVariableNotFound) {
		return err
	}

	count, err := mm.ReadSegment(prog.Data, prog.Data.StartPointer)

	if err != nil {
		return err
	}

	if count >= VAR_SLOTS {
		return fmt.Errorf("%w: %d slots", ErrVariableTableFull, VAR_SLOTS)
	}

	nameAddr, _ := prog.Data.Address(1 + 2*int(count))
	valueAddr, _ := prog.Data.Address(2 + 2*int(count))

	if err := mm.WriteSegment(prog.Data, nameAddr, name); err != nil {
		return err
	}

	if err := mm.WriteSegment(prog.Data, valueAddr, 0); err != nil {
		return err
	}

	return mm.WriteSegment(prog.Data, prog.Data.StartPointer, count+1)
}

func own(owned set.Set[int], seg *memory.Segment) {
	for _, page := range seg.Memory.Pages {
		owned.Add(page)
	}
}

func NewProcessTable() *ProcessTable {
	return &ProcessTable{
		processes: make(map[int]*Process),
		active:    -1,
		next:      1,
	}
}

// Fork registers a new process. It does not start executing it.
func (pt *ProcessTable) Fork(args []string, program *Program) int {
	pid := pt.next
	pt.next++

	pt.processes[pid] = &Process{
		ID:      pid,
		Args:    args,
		Program: program,
		Status:  PROC_READY,
		Parent:  -1,
	}

	return pid
}

func (pt *ProcessTable) Get(pid int) (*Process, bool) {
	proc, exists := pt.processes[pid]
	return proc, exists
}

func (pt *ProcessTable) SetActive(pid int) error {
	if _, exists := pt.processes[pid]; !exists {
		return fmt.Errorf("%w: %d", ErrProcessNotFound, pid)
	}

	pt.active = pid
	return nil
}

func (pt *ProcessTable) ActiveID() int {
	return pt.active
}

// Active returns the active process, or nil when none is.
func (pt *ProcessTable) Active() *Process {
	return pt.processes[pt.active]
}

func (pt *ProcessTable) Len() int {
	return len(pt.processes)
}

func (pt *ProcessTable) IDs() []int {
	ids := make([]int, 0, len(pt.processes))

	for pid := range pt.processes {
		ids = append(ids, pid)
	}

	sort.Ints(ids)
	return ids
}

func (status ProcessStatus) String() string {
	switch status {
	case PROC_READY:
		return "ready"
	case PROC_RUNNING:
		return "running"
	case PROC_WAITING:
		return "waiting"
	case PROC_STOPPED:
		return "stopped"
	case PROC_FAULTED:
		return "faulted"
	default:
		return "unknown"
	}
}

// Info is the process description handed out by the process info interrupt.
func (proc *Process) Info() string {
	return fmt.Sprintf(
		"pid=%d parent=%d status=%s args=%s",
		proc.ID, proc.Parent, proc.Status, strings.Join(proc.Args, ","),
	)
}
