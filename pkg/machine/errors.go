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

	"github.com/lassandro/gorvm/pkg/memory"
)

var (
	ErrUndefinedInstruction = errors.New("undefined instruction")
	ErrBadInterrupt         = errors.New("bad interrupt")
	ErrBadRegister          = errors.New("bad register tag")
	ErrVariableNotFound     = errors.New("variable not found")
	ErrVariableTableFull    = errors.New("variable table full")
	ErrHandleNotFound       = errors.New("heap handle not found")
	ErrHeapExhausted        = errors.New("heap exhausted")
	ErrDivideByZero         = errors.New("divide by zero")
	ErrProgramNotFound      = errors.New("program not found")
	ErrProcessNotFound      = errors.New("process not found")
	ErrNoProcess            = errors.New("no process loaded")
)

// InstructionError is a fatal decode failure.
type InstructionError struct {
	PID    int
	PC     memory.Word
	Opcode memory.Word
	Err    error
}

func (err *InstructionError) Error() string {
	return fmt.Sprintf(
		"pid %d: pc %d: opcode %d: %v", err.PID, err.PC, err.Opcode, err.Err,
	)
}

func (err *InstructionError) Unwrap() error {
	return err.Err
}

// Fault is a recoverable error that stopped a single process.
type Fault struct {
	PID int
	PC  memory.Word
	Err error
}

func (err *Fault) Error() string {
	return fmt.Sprintf("pid %d: fault at pc %d: %v", err.PID, err.PC, err.Err)
}

func (err *Fault) Unwrap() error {
	return err.Err
}

// Recoverable reports whether err only concerns the process that raised it.
func Recoverable(err error) bool {
	return errors.Is(err, memory.ErrForbiddenMemory) ||
		errors.Is(err, ErrVariableNotFound) ||
		errors.Is(err, ErrVariableTableFull) ||
		errors.Is(err, ErrHandleNotFound) ||
		errors.Is(err, ErrHeapExhausted) ||
		errors.Is(err, ErrDivideByZero)
}
