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
	"github.com/lassandro/gorvm/pkg/devices"
	"github.com/lassandro/gorvm/pkg/memory"
	"github.com/retroenv/retrogolib/log"
)

// Snapshot is the saved register file of a process.
type Snapshot struct {
	PC    memory.Word
	Addr  memory.Word
	Acc   memory.Word
	IR    memory.Word
	SP    memory.Word
	Flags memory.Word
	X     memory.Word
	C     memory.Word
	Ret   memory.Word
}

type Program struct {
	Data     *memory.Segment
	Code     *memory.Segment
	Stack    *memory.Segment
	Snapshot Snapshot
}

type ProcessStatus uint

const (
	PROC_READY ProcessStatus = iota
	PROC_RUNNING
	PROC_WAITING
	PROC_STOPPED
	PROC_FAULTED
)

type Process struct {
	ID      int
	Args    []string
	Program *Program
	Status  ProcessStatus
	Parent  int
	Fault   *Fault
}

type ProcessTable struct {
	processes map[int]*Process
	active    int
	next      int
}

// Handle references a live heap block. Start is a logical offset into the
// owning process's data segment.
type Handle struct {
	PID   int
	Start memory.Word
	Size  int

	segment *memory.Segment
}

type handleKey struct {
	pid   int
	start memory.Word
}

type Heap struct {
	mm      *memory.Manager
	handles map[handleKey]Handle
}

type Options struct {
	// Instructions executed per Run call when no budget is given
	Cycles int

	// Clear condition flags before every flag-setting instruction instead of
	// accumulating them
	FreshFlags bool
}

type Devices struct {
	Console    devices.Console
	FileSystem devices.FileSystem
	Programs   devices.ProgramStore
}

type MachineDebugger interface {
	Step(mc *Machine)
	Read(addr int, mc *Machine)
	Write(addr int, mc *Machine)
}

type Machine struct {
	Memory    *memory.Manager
	Processes *ProcessTable
	Heap      *Heap
	Devices   *Devices
	Debugger  MachineDebugger
	Options   Options
	Logger    *log.Logger

	State Snapshot

	// pids of the nested execution contexts, innermost last
	contexts []int
}
