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
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/lassandro/gorvm/pkg/assembler"
	"github.com/lassandro/gorvm/pkg/machine"
	"github.com/lassandro/gorvm/pkg/memory"
	"github.com/retroenv/retrogolib/assert"
)

var ansi = regexp.MustCompile("\033\\[[0-9;]*m")

// LOADI 5; STOREA 600; LOADA 600; STOP
var program = []memory.Word{
	machine.OP_LOADI, 5,
	machine.OP_STOREA, 600,
	machine.OP_LOADA, 600,
	machine.OP_STOP,
}

func newMachine(t *testing.T, dbg *Debugger) (*machine.Machine, int) {
	t.Helper()

	mm := memory.New(memory.Config{Frames: 8, Pages: 32})
	mc := machine.New(mm, nil, machine.Options{}, nil)
	mc.Debugger = dbg

	pid, err := mc.Load(program, []string{"test"})
	assert.NoError(t, err)

	return mc, pid
}

func TestBreakpoint(t *testing.T) {
	hits := make([]memory.Word, 0)

	dbg := &Debugger{Out: &bytes.Buffer{}}
	dbg.HandleBreak = func(dbg *Debugger, mc *machine.Machine) {
		hits = append(hits, mc.State.PC)
	}

	mc, pid := newMachine(t, dbg)
	assert.True(t, dbg.ToggleBreakpoint(pid, 4))

	assert.NoError(t, mc.Run(0))
	assert.True(t, mc.Halted())
	assert.Equal(t, []memory.Word{4}, hits)

	assert.False(t, dbg.ToggleBreakpoint(pid, 4))
	assert.Equal(t, 0, len(dbg.Breakpoints))
}

func TestBreakpointOtherProcess(t *testing.T) {
	hits := 0

	dbg := &Debugger{Out: &bytes.Buffer{}}
	dbg.HandleBreak = func(dbg *Debugger, mc *machine.Machine) { hits++ }

	mc, pid := newMachine(t, dbg)
	dbg.ToggleBreakpoint(pid+1, 4)

	assert.NoError(t, mc.Run(0))
	assert.Equal(t, 0, hits)
}

func TestSingleStep(t *testing.T) {
	hits := 0

	dbg := &Debugger{Break: true, Out: &bytes.Buffer{}}
	dbg.HandleBreak = func(dbg *Debugger, mc *machine.Machine) { hits++ }

	mc, _ := newMachine(t, dbg)

	assert.NoError(t, mc.Run(0))
	assert.Equal(t, 4, hits)
}

func TestWatchpoints(t *testing.T) {
	reads := make([]int, 0)
	writes := make([]int, 0)

	dbg := &Debugger{Out: &bytes.Buffer{}}
	dbg.HandleRead = func(addr int, dbg *Debugger, mc *machine.Machine) {
		reads = append(reads, addr)
	}
	dbg.HandleWrite = func(addr int, dbg *Debugger, mc *machine.Machine) {
		writes = append(writes, addr)
	}

	mc, pid := newMachine(t, dbg)

	proc, ok := mc.Processes.Get(pid)
	assert.True(t, ok)

	addr, err := proc.Program.Data.Address(600)
	assert.NoError(t, err)

	assert.True(t, dbg.ToggleWatchpoint(addr, ReadWriteWatch))
	assert.NoError(t, mc.Run(0))

	assert.Equal(t, []int{addr}, reads)
	assert.Equal(t, []int{addr}, writes)
}

func TestWriteOnlyWatchpoint(t *testing.T) {
	reads := 0
	writes := 0

	dbg := &Debugger{Out: &bytes.Buffer{}}
	dbg.HandleRead = func(int, *Debugger, *machine.Machine) { reads++ }
	dbg.HandleWrite = func(int, *Debugger, *machine.Machine) { writes++ }

	mc, pid := newMachine(t, dbg)

	proc, _ := mc.Processes.Get(pid)
	addr, err := proc.Program.Data.Address(600)
	assert.NoError(t, err)

	dbg.ToggleWatchpoint(addr, WriteWatch)
	assert.NoError(t, mc.Run(0))

	assert.Equal(t, 0, reads)
	assert.Equal(t, 1, writes)
}

func TestPrintMem(t *testing.T) {
	out := &bytes.Buffer{}
	dbg := &Debugger{Out: out}

	mc, pid := newMachine(t, dbg)
	assert.NoError(t, mc.Run(0))

	proc, _ := mc.Processes.Get(pid)
	addr, err := proc.Program.Data.Address(600)
	assert.NoError(t, err)

	dbg.PrintMem(mc.Memory, addr, 2)
	cells := strings.Fields(ansi.ReplaceAllString(out.String(), ""))
	assert.Equal(t, []string{"0x00000005", "0x00000000"}, cells[1:])

	out.Reset()
	dbg.PrintMem(mc.Memory, 31*memory.PAGE_SIZE, 1)
	cells = strings.Fields(ansi.ReplaceAllString(out.String(), ""))
	assert.Equal(t, []string{"----------"}, cells[1:])
}

func TestPrintCode(t *testing.T) {
	out := &bytes.Buffer{}
	dbg := &Debugger{Out: out}

	mc, _ := newMachine(t, dbg)
	dbg.PrintCode(mc, 0, 4)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, 4, len(lines))
	assert.True(t, strings.HasPrefix(lines[0], "=>"))
	assert.True(t, strings.Contains(lines[0], "LOADI"))
	assert.True(t, strings.Contains(lines[3], "STOP"))
}

func TestPrintSource(t *testing.T) {
	source := "start: LOADI #5\n  STOREA 600\n  STOP\n"

	symtable := &assembler.SymTable{
		Symbols: map[int]int64{},
		Labels:  map[int]string{},
	}

	_, errs := assembler.AssembleSource(strings.NewReader(source), symtable)
	assert.Equal(t, 0, len(errs))

	out := &bytes.Buffer{}
	dbg := &Debugger{
		Out:      out,
		Source:   strings.NewReader(source),
		SymTable: symtable,
	}

	dbg.PrintSource(2, 2)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, 2, len(lines))
	assert.True(t, strings.Contains(lines[0], "STOREA 600"))
	assert.True(t, strings.Contains(lines[1], "STOP"))

	out.Reset()
	dbg.PrintSource(1, 1)
	assert.True(t, strings.Contains(out.String(), "No instruction found"))
}

func TestSegmentWords(t *testing.T) {
	mc, pid := newMachine(t, &Debugger{})
	proc, _ := mc.Processes.Get(pid)

	words := SegmentWords(mc.Memory, proc.Program.Code)
	assert.Equal(t, memory.PAGE_SIZE, len(words))
	assert.Equal(t, program, words[:len(program)])
}
