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

package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/k0kubun/pp/v3"
	"github.com/lassandro/gorvm/pkg/debugger"
	"github.com/lassandro/gorvm/pkg/encoding"
	"github.com/lassandro/gorvm/pkg/machine"
	"github.com/lassandro/gorvm/pkg/memory"
)

var lastcmd []string

// parseCodeAddr accepts a code offset in decimal or hex, or a label.
func parseCodeAddr(dbg *debugger.Debugger, arg string) (int, error) {
	if dbg.SymTable != nil {
		for addr, label := range dbg.SymTable.Labels {
			if label == arg {
				return addr, nil
			}
		}
	}

	value, err := encoding.DecodeWord(arg)

	if err != nil {
		return 0, err
	}

	return int(value), nil
}

// parseVirtualAddr accepts a virtual address, or @offset for a logical
// offset into the data segment of the active process.
func parseVirtualAddr(mc *machine.Machine, arg string) (int, error) {
	if strings.HasPrefix(arg, "@") {
		offset, err := encoding.DecodeWord(arg[1:])

		if err != nil {
			return 0, err
		}

		proc := mc.Processes.Active()

		if proc == nil {
			return 0, machine.ErrNoProcess
		}

		return proc.Program.Data.Address(int(offset))
	}

	value, err := encoding.DecodeWord(arg)

	if err != nil {
		return 0, err
	}

	return int(value), nil
}

func listFormat(count int, suffix string) string {
	digits := math.Floor(math.Log10(float64(count + 1)))
	return fmt.Sprintf("#%%0%dd: %s\n", int64(digits)+1, suffix)
}

func debugBreak(out io.Writer, dbg *debugger.Debugger, mc *machine.Machine, args []string) {
	const usage = "break [add|list|remove|clear]"

	if len(args) == 0 {
		args = append(args, "l")
	}

	cmd := args[0]
	args = args[1:]

	switch cmd {
	case "a", "add":
		const usage = "break add [addr|label]"

		if len(args) != 1 {
			fmt.Fprintln(out, usage)
			return
		}

		addr, err := parseCodeAddr(dbg, args[0])

		if err != nil {
			fmt.Fprintln(out, err)
			return
		}

		pid := mc.ActivePID()

		for _, breakpoint := range dbg.Breakpoints {
			if breakpoint.PID == pid && breakpoint.Addr == addr {
				return
			}
		}

		dbg.ToggleBreakpoint(pid, addr)
		fmt.Fprintf(out, "Breakpoint added [%04d] (pid %d)\n", addr, pid)

	case "l", "ls", "list":
		if len(args) != 0 {
			fmt.Fprintln(out, "break list")
			return
		}

		fmtstring := listFormat(len(dbg.Breakpoints), "%04d pid %d")

		for i, breakpoint := range dbg.Breakpoints {
			fmt.Fprintf(out, fmtstring, i, breakpoint.Addr, breakpoint.PID)
		}

	case "r", "rm", "remove":
		const usage = "break remove [#]"

		if len(args) != 1 {
			fmt.Fprintln(out, usage)
			return
		}

		i, err := strconv.Atoi(args[0])

		if err != nil {
			fmt.Fprintln(out, err)
			return
		}

		if i < 0 || i >= len(dbg.Breakpoints) {
			fmt.Fprintln(out, "Invalid breakpoint number")
			return
		}

		dbg.Breakpoints = append(dbg.Breakpoints[:i], dbg.Breakpoints[i+1:]...)
		fmt.Fprintf(out, "Breakpoint removed [%d]\n", i)

	case "clear":
		dbg.Breakpoints = make([]debugger.Breakpoint, 0)
		fmt.Fprintln(out, "Breakpoints reset")

	default:
		fmt.Fprintln(out, usage)
	}
}

func watchName(wtype debugger.WatchpointType) string {
	switch wtype {
	case debugger.ReadWatch:
		return "read"
	case debugger.WriteWatch:
		return "write"
	default:
		return "rwrite"
	}
}

func debugWatch(out io.Writer, dbg *debugger.Debugger, mc *machine.Machine, args []string) {
	const usage = "watch [add|list|remove|clear]"

	if len(args) == 0 {
		args = append(args, "l")
	}

	cmd := args[0]
	args = args[1:]

	switch cmd {
	case "a", "add":
		const usage = "watch add [addr|@offset] [read|write|readwrite]"

		if len(args) != 2 {
			fmt.Fprintln(out, usage)
			return
		}

		addr, err := parseVirtualAddr(mc, args[0])

		if err != nil {
			fmt.Fprintln(out, err)
			return
		}

		var wtype debugger.WatchpointType

		switch args[1] {
		case "r", "read":
			wtype = debugger.ReadWatch
		case "w", "write":
			wtype = debugger.WriteWatch
		case "rw", "rwrite", "readwrite":
			wtype = debugger.ReadWriteWatch
		default:
			fmt.Fprintln(out, usage)
			return
		}

		for _, watchpoint := range dbg.Watchpoints {
			if watchpoint.Addr == addr {
				fmt.Fprintf(out, "Watchpoint already set [%#x]\n", addr)
				return
			}
		}

		dbg.ToggleWatchpoint(addr, wtype)
		fmt.Fprintf(out, "Watchpoint added [%#x] (%s)\n", addr, watchName(wtype))

	case "l", "ls", "list":
		fmtstring := listFormat(len(dbg.Watchpoints), "%#x %s")

		for i, watchpoint := range dbg.Watchpoints {
			fmt.Fprintf(out, fmtstring, i, watchpoint.Addr, watchName(watchpoint.Type))
		}

	case "r", "rm", "remove":
		const usage = "watch remove [#]"

		if len(args) != 1 {
			fmt.Fprintln(out, usage)
			return
		}

		i, err := strconv.Atoi(args[0])

		if err != nil {
			fmt.Fprintln(out, err)
			return
		}

		if i < 0 || i >= len(dbg.Watchpoints) {
			fmt.Fprintln(out, "Invalid watchpoint number")
			return
		}

		dbg.Watchpoints = append(dbg.Watchpoints[:i], dbg.Watchpoints[i+1:]...)
		fmt.Fprintf(out, "Watchpoint removed [%d]\n", i)

	case "clear":
		dbg.Watchpoints = make([]debugger.Watchpoint, 0)
		fmt.Fprintln(out, "Watchpoints reset")

	default:
		fmt.Fprintln(out, usage)
	}
}

type register struct {
	Name  string
	Value *memory.Word
}

func registers(state *machine.Snapshot) []register {
	return []register{
		{"PC", &state.PC},
		{"ADDR", &state.Addr},
		{"ACC", &state.Acc},
		{"IR", &state.IR},
		{"SP", &state.SP},
		{"FLAGS", &state.Flags},
		{"X", &state.X},
		{"C", &state.C},
		{"RET", &state.Ret},
	}
}

func debugReg(out io.Writer, mc *machine.Machine, args []string) {
	const usage = "register [PC|ADDR|ACC|IR|SP|FLAGS|X|C|RET] [value]"

	regs := registers(&mc.State)

	if len(args) == 0 {
		for i, reg := range regs {
			fmt.Fprintf(out, "\033[1m%s:\033[0m %d\t", reg.Name, *reg.Value)

			if i%3 == 2 {
				fmt.Fprintln(out)
			}
		}

		return
	}

	if len(args) != 2 {
		fmt.Fprintln(out, usage)
		return
	}

	value, err := encoding.DecodeWord(args[1])

	if err != nil {
		fmt.Fprintln(out, err)
		return
	}

	name := strings.ToUpper(args[0])

	for _, reg := range regs {
		if reg.Name == name {
			*reg.Value = value
			fmt.Fprintf(out, "\033[1m%s:\033[0m %d\n", name, value)
			return
		}
	}

	fmt.Fprintln(out, "Invalid register")
}

// addrAndCount parses the shared [addr] [#] argument pair. A lone decimal
// argument is a count.
func addrAndCount(
	args []string, addr, count int, parse func(string) (int, error),
) (int, int, error) {
	if len(args) == 1 {
		if value, err := strconv.Atoi(args[0]); err == nil {
			return addr, value, nil
		}
	}

	if len(args) > 0 {
		parsed, err := parse(args[0])

		if err != nil {
			return 0, 0, err
		}

		addr = parsed
	}

	if len(args) > 1 {
		value, err := strconv.Atoi(args[1])

		if err != nil {
			return 0, 0, err
		}

		count = value
	}

	return addr, count, nil
}

func debugSource(out io.Writer, dbg *debugger.Debugger, mc *machine.Machine, args []string) {
	if len(args) > 2 {
		fmt.Fprintln(out, "source [addr|label] [#]")
		return
	}

	addr, count, err := addrAndCount(
		args, int(mc.State.PC), 3,
		func(arg string) (int, error) { return parseCodeAddr(dbg, arg) },
	)

	if err != nil {
		fmt.Fprintln(out, err)
		return
	}

	dbg.PrintSource(addr, count)
}

func debugCode(out io.Writer, dbg *debugger.Debugger, mc *machine.Machine, args []string) {
	if len(args) > 2 {
		fmt.Fprintln(out, "code [addr|label] [#]")
		return
	}

	addr, count, err := addrAndCount(
		args, int(mc.State.PC), 5,
		func(arg string) (int, error) { return parseCodeAddr(dbg, arg) },
	)

	if err != nil {
		fmt.Fprintln(out, err)
		return
	}

	dbg.PrintCode(mc, addr, count)
}

func debugLabels(out io.Writer, dbg *debugger.Debugger, args []string) {
	if len(args) > 0 {
		fmt.Fprintln(out, "labels")
		return
	}

	if dbg.SymTable == nil {
		fmt.Fprintln(out, "No symbol table loaded")
		return
	}

	keys := make([]int, 0, len(dbg.SymTable.Labels))
	for addr := range dbg.SymTable.Labels {
		keys = append(keys, addr)
	}

	sort.Ints(keys)

	for _, addr := range keys {
		fmt.Fprintf(out, "\033[1m[%04d]\033[0m %s\n", addr, dbg.SymTable.Labels[addr])
	}
}

func debugJump(out io.Writer, dbg *debugger.Debugger, mc *machine.Machine, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(out, "jump [addr|label]")
		return
	}

	addr, err := parseCodeAddr(dbg, args[0])

	if err != nil {
		fmt.Fprintf(out, "Unable to find '%s'\n", args[0])
		return
	}

	mc.State.PC = memory.Word(addr)
	fmt.Fprintf(out, "\033[1mPC:\033[0m %04d\n", addr)
}

func debugMemory(out io.Writer, dbg *debugger.Debugger, mc *machine.Machine, args []string) {
	if len(args) > 2 {
		fmt.Fprintln(out, "memory [addr|@offset] [#]")
		return
	}

	start := 0
	if proc := mc.Processes.Active(); proc != nil {
		start = proc.Program.Data.StartPointer
	}

	addr, count, err := addrAndCount(
		args, start, 8,
		func(arg string) (int, error) { return parseVirtualAddr(mc, arg) },
	)

	if err != nil {
		fmt.Fprintln(out, err)
		return
	}

	dbg.PrintMem(mc.Memory, addr, count)
}

func debugSet(out io.Writer, dbg *debugger.Debugger, mc *machine.Machine, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(out, "set [addr|@offset] [value]")
		return
	}

	addr, err := parseVirtualAddr(mc, args[0])

	if err != nil {
		fmt.Fprintln(out, err)
		return
	}

	value, err := encoding.DecodeWord(args[1])

	if err != nil {
		fmt.Fprintln(out, err)
		return
	}

	if err := mc.Memory.WriteRAM(addr, value); err != nil {
		fmt.Fprintln(out, err)
		return
	}

	dbg.PrintMem(mc.Memory, addr, 1)
}

func debugProc(out io.Writer, dbg *debugger.Debugger, mc *machine.Machine, args []string) {
	if len(args) == 0 {
		dbg.PrintProcesses(mc)
		return
	}

	pid, err := strconv.Atoi(args[0])

	if err != nil {
		fmt.Fprintln(out, err)
		return
	}

	proc, exists := mc.Processes.Get(pid)

	if !exists {
		fmt.Fprintf(out, "No process %d\n", pid)
		return
	}

	pp.Fprintln(out, proc)

	if handles := mc.Heap.Handles(pid); len(handles) > 0 {
		pp.Fprintln(out, handles)
	}
}

func debugREPL(dbg *debugger.Debugger, mc *machine.Machine) {
	s := enterRawTerm()
	defer s.restore()

	out := s.out
	dbg.Out = out
	defer func() { dbg.Out = nil }()

	for {
		line, err := s.readLine()

		if err != nil {
			fmt.Fprintln(out)
			quit(dbg, mc)
			return
		}

		args := strings.Fields(line)

		if len(args) == 0 {
			if len(lastcmd) == 0 {
				continue
			}
			args = lastcmd
		} else {
			lastcmd = make([]string, len(args))
			copy(lastcmd, args)
		}

		cmd := args[0]
		args = args[1:]

		switch cmd {
		case "b", "bp", "break", "breakpoint":
			debugBreak(out, dbg, mc, args)

		case "w", "wp", "watch", "watchpoint":
			debugWatch(out, dbg, mc, args)

		case "r", "reg", "register", "registers":
			debugReg(out, mc, args)

		case "s", "src", "source":
			debugSource(out, dbg, mc, args)

		case "d", "code", "disasm":
			debugCode(out, dbg, mc, args)

		case "l", "label", "labels":
			debugLabels(out, dbg, args)

		case "j", "jmp", "jump":
			debugJump(out, dbg, mc, args)

		case "m", "mem", "memory":
			debugMemory(out, dbg, mc, args)

		case "set":
			debugSet(out, dbg, mc, args)

		case "p", "proc", "procs":
			debugProc(out, dbg, mc, args)

		case "pages":
			dbg.PrintPages(mc.Memory)

		case "snap":
			pp.Fprintln(out, mc.State)

		case "c", "continue":
			dbg.Break = false
			return

		case "n", "next":
			dbg.Break = true
			return

		case "q", "quit", "exit":
			quit(dbg, mc)
			return

		case "clear":
			fmt.Fprint(out, "\033[H\033[2J")

		default:
			fmt.Fprintf(out, "error: '%s' is not a valid command\n", cmd)
		}
	}
}

// quit ends the run by raising the end flag the way a halting STOP does.
func quit(dbg *debugger.Debugger, mc *machine.Machine) {
	dbg.Break = false
	mc.State.Flags |= machine.FLAG_END
}

func handleBreak(dbg *debugger.Debugger, mc *machine.Machine) {
	if mc.Halted() {
		return
	}

	if !dbg.Break {
		fmt.Println()
		fmt.Println("Program stopped")
	}

	dbg.PrintCode(mc, int(mc.State.PC), 1)
	debugREPL(dbg, mc)
}

func handleRead(addr int, dbg *debugger.Debugger, mc *machine.Machine) {
	fmt.Println()
	fmt.Printf("Program stopped: read [%#x]\n", addr)
	dbg.PrintMem(mc.Memory, addr, 1)
	debugREPL(dbg, mc)
}

func handleWrite(addr int, dbg *debugger.Debugger, mc *machine.Machine) {
	fmt.Println()
	fmt.Printf("Program stopped: write [%#x]\n", addr)
	dbg.PrintMem(mc.Memory, addr, 1)
	debugREPL(dbg, mc)
}
