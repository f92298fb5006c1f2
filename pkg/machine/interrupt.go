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
	"io"
	"strings"

	"github.com/lassandro/gorvm/pkg/memory"
	"github.com/retroenv/retrogolib/log"
)

type service func(mc *Machine) error

var services = map[memory.Word]service{
	INT_FORK:        (*Machine).intFork,
	INT_SWITCH:      (*Machine).intSwitch,
	INT_READLINE:    (*Machine).intReadLine,
	INT_SPAWN:       (*Machine).intSpawn,
	INT_PRINT:       (*Machine).intPrint,
	INT_CREATE_FILE: (*Machine).intCreateFile,
	INT_DELETE_FILE: (*Machine).intDeleteFile,
	INT_MODIFY_FILE: (*Machine).intModifyFile,
	INT_WRITE_FILE:  (*Machine).intWriteFile,
	INT_DESCRIBE:    (*Machine).intDescribe,
	INT_INDEX_SIZE:  (*Machine).intIndexSize,
	INT_PROC_COUNT:  (*Machine).intProcCount,
	INT_PROC_INFO:   (*Machine).intProcInfo,
	INT_ARG_COUNT:   (*Machine).intArgCount,
	INT_ARG:         (*Machine).intArg,
}

// interrupt runs the service for number. pc already points past the INT.
func (mc *Machine) interrupt(number memory.Word) error {
	call, exists := services[number]

	if !exists {
		return fmt.Errorf("%w: %d", ErrBadInterrupt, number)
	}

	return call(mc)
}

// fork loads words as a new ready process, child of the active one.
func (mc *Machine) fork(words []memory.Word, args []string) (int, error) {
	prog, err := LoadProgram(mc.Memory, words)

	if err != nil {
		return 0, err
	}

	pid := mc.Processes.Fork(args, prog)
	proc, _ := mc.Processes.Get(pid)
	proc.Parent = mc.ActivePID()

	mc.Logger.Debug("Process forked",
		log.Int("pid", pid),
		log.Int("parent", proc.Parent),
		log.Int("words", len(words)))

	return pid, nil
}

// switchTo suspends the active process and runs pid as a nested context.
// Unknown, finished or already running processes are refused with a failure
// status.
func (mc *Machine) switchTo(pid int) error {
	proc, exists := mc.Processes.Get(pid)

	if !exists || mc.onStack(pid) ||
		proc.Status == PROC_STOPPED || proc.Status == PROC_FAULTED {
		mc.State.C = STATUS_FAILURE
		return nil
	}

	mc.State.C = STATUS_SUCCESS
	mc.save()

	mc.Logger.Debug("Process switch",
		log.Int("from", mc.ActivePID()),
		log.Int("to", pid))

	return mc.enter(pid)
}

// forkNamed resolves the "name args..." string in c through the program
// store. It reports failure in c and returns -1 when nothing was created.
func (mc *Machine) forkNamed(keyword string) (int, error) {
	command, err := mc.loadString(mc.State.C)

	if err != nil {
		return -1, err
	}

	args := strings.Fields(command)

	if len(args) == 0 || mc.Devices.Programs == nil {
		mc.State.C = STATUS_FAILURE
		return -1, nil
	}

	words := mc.Devices.Programs.Resolve(args[0], keyword)

	if len(words) == 0 {
		mc.Logger.Debug("Fork failed",
			log.String("program", args[0]),
			log.Err(ErrProgramNotFound))

		mc.State.C = STATUS_FAILURE
		return -1, nil
	}

	pid, err := mc.fork(words, args)

	if err != nil {
		return -1, err
	}

	mc.State.Acc = memory.Word(pid)
	mc.State.C = STATUS_SUCCESS
	return pid, nil
}

func (mc *Machine) intFork() error {
	_, err := mc.forkNamed(KEYWORD_KERNEL)
	return err
}

func (mc *Machine) intSpawn() error {
	pid, err := mc.forkNamed(KEYWORD_USER)

	if err != nil || pid == -1 {
		return err
	}

	return mc.switchTo(pid)
}

func (mc *Machine) intSwitch() error {
	return mc.switchTo(int(mc.State.X))
}

func (mc *Machine) intReadLine() error {
	if mc.Devices.Console == nil {
		mc.State.C = STATUS_FAILURE
		return nil
	}

	line, err := mc.Devices.Console.ReadLine()

	if errors.Is(err, io.EOF) {
		mc.State.C = STATUS_FAILURE
		return nil
	} else if err != nil {
		return err
	}

	return mc.succeedWithString(line)
}

func (mc *Machine) intPrint() error {
	text, err := mc.takeString(&mc.State.X)

	if err != nil {
		return err
	}

	if mc.Devices.Console == nil {
		mc.State.C = STATUS_FAILURE
		return nil
	}

	if err := mc.Devices.Console.WriteLine(text); err != nil {
		return err
	}

	mc.State.C = STATUS_SUCCESS
	return nil
}

func (mc *Machine) intCreateFile() error {
	name, err := mc.loadString(mc.State.X)

	if err != nil {
		return err
	}

	if mc.Devices.FileSystem == nil {
		mc.State.C = STATUS_FAILURE
		return nil
	}

	id, err := mc.Devices.FileSystem.Create(name)

	if err != nil {
		mc.State.C = STATUS_FAILURE
		return nil
	}

	mc.State.Acc = memory.Word(id)
	mc.State.C = STATUS_SUCCESS
	return nil
}

func (mc *Machine) intDeleteFile() error {
	name, err := mc.loadString(mc.State.X)

	if err != nil {
		return err
	}

	return mc.fileStatus(func() bool {
		return mc.Devices.FileSystem.Delete(name)
	})
}

func (mc *Machine) intModifyFile() error {
	oldName, err := mc.loadString(mc.State.X)

	if err != nil {
		return err
	}

	newName, err := mc.loadString(mc.State.C)

	if err != nil {
		return err
	}

	return mc.fileStatus(func() bool {
		return mc.Devices.FileSystem.Modify(oldName, newName)
	})
}

func (mc *Machine) intWriteFile() error {
	name, err := mc.loadString(mc.State.X)

	if err != nil {
		return err
	}

	text, err := mc.loadString(mc.State.C)

	if err != nil {
		return err
	}

	return mc.fileStatus(func() bool {
		return mc.Devices.FileSystem.Write(name, text)
	})
}

func (mc *Machine) intDescribe() error {
	if mc.Devices.FileSystem == nil {
		mc.State.C = STATUS_FAILURE
		return nil
	}

	desc, err := mc.Devices.FileSystem.Describe(int(mc.State.X))

	if err != nil {
		mc.State.C = STATUS_FAILURE
		return nil
	}

	return mc.succeedWithString(desc)
}

func (mc *Machine) intIndexSize() error {
	if mc.Devices.FileSystem == nil {
		mc.State.C = STATUS_FAILURE
		return nil
	}

	mc.State.Acc = memory.Word(mc.Devices.FileSystem.IndexSize())
	mc.State.C = STATUS_SUCCESS
	return nil
}

func (mc *Machine) intProcCount() error {
	mc.State.Acc = memory.Word(mc.Processes.Len())
	mc.State.C = STATUS_SUCCESS
	return nil
}

func (mc *Machine) intProcInfo() error {
	proc, exists := mc.Processes.Get(int(mc.State.X))

	if !exists {
		mc.State.C = STATUS_FAILURE
		return nil
	}

	return mc.succeedWithString(proc.Info())
}

func (mc *Machine) intArgCount() error {
	mc.State.Acc = memory.Word(len(mc.Processes.Active().Args))
	mc.State.C = STATUS_SUCCESS
	return nil
}

func (mc *Machine) intArg() error {
	args := mc.Processes.Active().Args
	index := int(mc.State.X)

	if index < 0 || index >= len(args) {
		mc.State.C = STATUS_FAILURE
		return nil
	}

	return mc.succeedWithString(args[index])
}

// succeedWithString stores text on the heap, leaving its start in acc.
func (mc *Machine) succeedWithString(text string) error {
	start, err := mc.storeString(text)

	if err != nil {
		return err
	}

	mc.State.Acc = start
	mc.State.C = STATUS_SUCCESS
	return nil
}

func (mc *Machine) fileStatus(op func() bool) error {
	if mc.Devices.FileSystem != nil && op() {
		mc.State.C = STATUS_SUCCESS
	} else {
		mc.State.C = STATUS_FAILURE
	}

	return nil
}
