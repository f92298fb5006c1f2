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
	"math"
	"math/bits"

	"github.com/lassandro/gorvm/pkg/memory"
	"github.com/retroenv/retrogolib/log"
)

// Opcodes that may raise condition flags
var flagWriters = map[memory.Word]bool{
	OP_ADDA: true, OP_ADDI: true, OP_ADDR: true,
	OP_SUBA: true, OP_SUBI: true, OP_SUBR: true,
	OP_MULA: true, OP_MULI: true, OP_MULR: true,
	OP_DIVA: true, OP_DIVI: true, OP_DIVR: true,
	OP_ANDA: true, OP_ANDI: true, OP_ANDR: true,
	OP_ORA: true, OP_ORI: true, OP_ORR: true,
	OP_XORA: true, OP_XORI: true, OP_XORR: true,
	OP_CMPA: true, OP_CMPI: true, OP_CMPR: true,
	OP_MOD: true, OP_INC: true, OP_DEC: true, OP_SHL: true, OP_SHR: true,
}

func New(mm *memory.Manager, devices *Devices, opts Options, logger *log.Logger) *Machine {
	if logger == nil {
		cfg := log.DefaultConfig()
		cfg.Level = log.ErrorLevel
		logger = log.NewWithConfig(cfg)
	}

	if devices == nil {
		devices = &Devices{}
	}

	return &Machine{
		Memory:    mm,
		Processes: NewProcessTable(),
		Heap:      NewHeap(mm),
		Devices:   devices,
		Options:   opts,
		Logger:    logger,
	}
}

// Load registers words as a new process. The first process loaded becomes
// the root context and starts running on the next Step.
func (mc *Machine) Load(words []memory.Word, args []string) (int, error) {
	pid, err := mc.fork(words, args)

	if err != nil {
		return 0, err
	}

	if len(mc.contexts) == 0 {
		if err := mc.enter(pid); err != nil {
			return 0, err
		}
	}

	return pid, nil
}

func (mc *Machine) ActivePID() int {
	return mc.Processes.ActiveID()
}

// Halted reports whether the end-of-machine flag is set.
func (mc *Machine) Halted() bool {
	return mc.State.Flags&FLAG_END != 0
}

// Depth is the number of nested execution contexts.
func (mc *Machine) Depth() int {
	return len(mc.contexts)
}

// Run steps the machine until it halts or cycles instructions were executed.
// A zero budget falls back to Options.Cycles.
func (mc *Machine) Run(cycles int) error {
	if cycles <= 0 {
		cycles = mc.Options.Cycles
	}

	if cycles <= 0 {
		cycles = DEFAULT_CYCLES
	}

	defer mc.save()

	for i := 0; i < cycles && !mc.Halted(); i++ {
		if err := mc.Step(); err != nil {
			return err
		}
	}

	return nil
}

// Step executes a single instruction of the active process.
func (mc *Machine) Step() error {
	if mc.Halted() {
		return nil
	}

	if mc.Processes.Active() == nil {
		return ErrNoProcess
	}

	pc := mc.State.PC
	opcode, err := mc.readCode(pc)

	if err == nil {
		mc.State.IR = opcode

		if mc.Options.FreshFlags && flagWriters[opcode] {
			mc.State.Flags &^= FLAG_CONDITION
		}

		err = mc.execute(opcode)
	}

	if err != nil {
		if err = mc.handleError(pc, err); err != nil {
			return err
		}
	}

	if mc.Debugger != nil {
		mc.Debugger.Step(mc)
	}

	return nil
}

func (mc *Machine) execute(opcode memory.Word) error {
	switch opcode {
	// STOP |                 | Stop process, halt with x = c = 9000
	case OP_STOP:
		if mc.State.X == HALT_SENTINEL && mc.State.C == HALT_SENTINEL {
			mc.halt()
			return nil
		}

		return mc.stop()

	// LOAD |addr|imm|reg     | acc = operand
	case OP_LOADA, OP_LOADI, OP_LOADR:
		value, err := mc.operandValue(opcode)

		if err != nil {
			return err
		}

		mc.State.Acc = value

	// STOREA |addr           | data[addr] = acc
	case OP_STOREA:
		addr, err := mc.fetchOperand()

		if err != nil {
			return err
		}

		return mc.writeData(addr, mc.State.Acc)

	// STORER |reg            | reg = acc
	case OP_STORER:
		tag, err := mc.fetchOperand()

		if err != nil {
			return err
		}

		reg, err := mc.register(tag)

		if err != nil {
			return err
		}

		*reg = mc.State.Acc

	case OP_ADDA, OP_ADDI, OP_ADDR:
		value, err := mc.operandValue(opcode)

		if err != nil {
			return err
		}

		mc.State.Acc = mc.addInternal(mc.State.Acc, value)
		mc.setFlags(mc.State.Acc)

	case OP_SUBA, OP_SUBI, OP_SUBR:
		value, err := mc.operandValue(opcode)

		if err != nil {
			return err
		}

		mc.State.Acc -= value
		mc.setFlags(mc.State.Acc)

	case OP_MULA, OP_MULI, OP_MULR:
		value, err := mc.operandValue(opcode)

		if err != nil {
			return err
		}

		mc.State.Acc = mc.mulInternal(mc.State.Acc, value)
		mc.setFlags(mc.State.Acc)

	case OP_DIVA, OP_DIVI, OP_DIVR:
		value, err := mc.operandValue(opcode)

		if err != nil {
			return err
		}

		if value == 0 {
			return ErrDivideByZero
		}

		mc.State.Acc /= value
		mc.setFlags(mc.State.Acc)

	// MOD  |addr             | acc = acc % data[addr]
	case OP_MOD:
		value, err := mc.operandValue(opcode)

		if err != nil {
			return err
		}

		if value == 0 {
			return ErrDivideByZero
		}

		mc.State.Acc %= value
		mc.setFlags(mc.State.Acc)

	// Register forms operate on the register, using acc as the operand
	case OP_ANDA, OP_ANDI, OP_ORA, OP_ORI, OP_XORA, OP_XORI:
		value, err := mc.operandValue(opcode)

		if err != nil {
			return err
		}

		mc.State.Acc = logic(opcode, mc.State.Acc, value)
		mc.setFlags(mc.State.Acc)

	case OP_ANDR, OP_ORR, OP_XORR:
		tag, err := mc.fetchOperand()

		if err != nil {
			return err
		}

		reg, err := mc.register(tag)

		if err != nil {
			return err
		}

		*reg = logic(opcode, *reg, mc.State.Acc)
		mc.setFlags(*reg)

	case OP_CMPA, OP_CMPI, OP_CMPR:
		value, err := mc.operandValue(opcode)

		if err != nil {
			return err
		}

		mc.compare(value)

	case OP_JZ, OP_JNZ, OP_JL, OP_JLE, OP_JG, OP_JGE, OP_JMP, OP_JO, OP_JP, OP_JC:
		target, err := mc.fetchOperand()

		if err != nil {
			return err
		}

		if mc.condition(opcode) {
			mc.State.PC = target
		}

		if opcode == OP_JNZ {
			mc.State.Flags &^= FLAG_ZERO
		}

	// PUSH |                 | stack[sp--] = acc
	case OP_PUSH:
		if err := mc.writeStack(mc.State.SP, mc.State.Acc); err != nil {
			return err
		}

		mc.State.SP--
		mc.State.PC++

	// POP  |                 | acc = stack[++sp]
	case OP_POP:
		value, err := mc.readStack(mc.State.SP + 1)

		if err != nil {
			return err
		}

		mc.State.SP++
		mc.State.Acc = value
		mc.State.PC++

	case OP_INC:
		mc.State.Acc = mc.addInternal(mc.State.Acc, 1)
		mc.setFlags(mc.State.Acc)
		mc.State.PC++

	case OP_DEC:
		mc.State.Acc -= 1
		mc.setFlags(mc.State.Acc)
		mc.State.PC++

	case OP_SHL, OP_SHR:
		count, err := mc.fetchOperand()

		if err != nil {
			return err
		}

		var result memory.Word

		if opcode == OP_SHL {
			result = mc.State.Acc << uint32(count)
		} else {
			result = mc.State.Acc >> uint32(count)
		}

		if SHIFT_STORES_RESULT {
			mc.State.Acc = result
		}

		mc.setFlags(result)

	// INT  |num              | Software interrupt
	case OP_INT:
		number, err := mc.fetchOperand()

		if err != nil {
			return err
		}

		return mc.interrupt(number)

	// CALL |target           | ret = next pc, pc = target
	case OP_CALL:
		target, err := mc.fetchOperand()

		if err != nil {
			return err
		}

		mc.State.Ret = mc.State.PC
		mc.State.PC = target

	case OP_RET:
		if mc.State.Ret != NO_RETURN {
			mc.State.PC = mc.State.Ret
			mc.State.Ret = NO_RETURN
		} else {
			mc.State.PC++
		}

	// VAR  |name             | Declare a zeroed variable
	case OP_VAR:
		name, err := mc.fetchOperand()

		if err != nil {
			return err
		}

		return mc.program().declare(mc.Memory, name)

	case OP_LOADV:
		addr, err := mc.variable()

		if err != nil {
			return err
		}

		value, err := mc.Memory.ReadSegment(mc.program().Data, addr)

		if err != nil {
			return err
		}

		mc.State.Acc = value

	case OP_STOREV:
		addr, err := mc.variable()

		if err != nil {
			return err
		}

		return mc.Memory.WriteSegment(mc.program().Data, addr, mc.State.Acc)

	// STR  |chars... 0       | acc = new heap string
	case OP_STR:
		mc.State.PC++
		text, err := mc.buildString()

		if err != nil {
			return err
		}

		start, err := mc.storeString(text)

		if err != nil {
			return err
		}

		mc.State.Acc = start

	// STRCAT |chars... 0     | acc = new heap string x + chars, x cleared
	case OP_STRCAT:
		mc.State.PC++
		suffix, err := mc.buildString()

		if err != nil {
			return err
		}

		prefix, err := mc.takeString(&mc.State.X)

		if err != nil {
			return err
		}

		start, err := mc.storeString(prefix + suffix)

		if err != nil {
			return err
		}

		mc.State.Acc = start

	// DELSTR |               | Free the heap string starting at acc
	case OP_DELSTR:
		handle, err := mc.Heap.Lookup(mc.ActivePID(), mc.State.Acc)

		if err != nil {
			return err
		}

		if err := mc.Heap.Free(handle); err != nil {
			return err
		}

		mc.State.PC++

	default:
		return ErrUndefinedInstruction
	}

	return nil
}

// handleError turns a recoverable error into a fault of the active process.
// Anything else is fatal and returned wrapped with the instruction position.
func (mc *Machine) handleError(pc memory.Word, err error) error {
	pid := mc.ActivePID()

	if !Recoverable(err) {
		mc.Logger.Error("Machine stopped",
			log.Int("pid", pid),
			log.Int("pc", int(pc)),
			log.Err(err))

		return &InstructionError{PID: pid, PC: pc, Opcode: mc.State.IR, Err: err}
	}

	fault := &Fault{PID: pid, PC: pc, Err: err}

	proc := mc.Processes.Active()
	proc.Status = PROC_FAULTED
	proc.Fault = fault
	mc.save()
	mc.Heap.Release(pid)

	mc.Logger.Debug("Process faulted",
		log.Int("pid", pid),
		log.Int("pc", int(pc)),
		log.Err(err))

	parent, err := mc.leave()

	if err != nil {
		return err
	}

	if parent == -1 {
		mc.State.Flags |= FLAG_END
		return fault
	}

	mc.State.C = STATUS_FAULT
	mc.State.Acc = memory.Word(pid)
	return nil
}

// stop ends the active process and resumes its parent context. Stopping the
// root context ends the machine.
func (mc *Machine) stop() error {
	pid := mc.ActivePID()
	mc.State.PC++

	proc := mc.Processes.Active()
	proc.Status = PROC_STOPPED
	mc.save()

	mc.Logger.Debug("Process stopped", log.Int("pid", pid))

	parent, err := mc.leave()

	if err != nil {
		return err
	}

	if parent == -1 {
		mc.halt()
		return nil
	}

	mc.State.C = STATUS_SUCCESS
	mc.State.Acc = memory.Word(pid)
	return nil
}

func (mc *Machine) halt() {
	mc.State.Flags |= FLAG_END
	mc.save()

	mc.Logger.Info("Machine halted",
		log.Int("pid", mc.ActivePID()),
		log.Int("acc", int(mc.State.Acc)))
}

// enter pushes pid as the innermost context and loads its snapshot.
func (mc *Machine) enter(pid int) error {
	proc, exists := mc.Processes.Get(pid)

	if !exists {
		return fmt.Errorf("%w: %d", ErrProcessNotFound, pid)
	}

	if err := PrepareProgramMemory(mc.Memory, proc.Program); err != nil {
		return err
	}

	if current := mc.Processes.Active(); current != nil {
		current.Status = PROC_WAITING
		proc.Parent = current.ID
	}

	mc.contexts = append(mc.contexts, pid)
	proc.Status = PROC_RUNNING

	if err := mc.Processes.SetActive(pid); err != nil {
		return err
	}

	mc.State = proc.Program.Snapshot
	return nil
}

// leave pops the innermost context and resumes the one below it. It returns
// the pid of the resumed context, -1 when none is left.
func (mc *Machine) leave() (int, error) {
	if len(mc.contexts) > 0 {
		mc.contexts = mc.contexts[:len(mc.contexts)-1]
	}

	if len(mc.contexts) == 0 {
		return -1, nil
	}

	pid := mc.contexts[len(mc.contexts)-1]
	proc, _ := mc.Processes.Get(pid)

	if err := PrepareProgramMemory(mc.Memory, proc.Program); err != nil {
		return 0, err
	}

	if err := mc.Processes.SetActive(pid); err != nil {
		return 0, err
	}

	proc.Status = PROC_RUNNING
	mc.State = proc.Program.Snapshot

	mc.Logger.Debug("Process resumed", log.Int("pid", pid))
	return pid, nil
}

// save stores the live registers into the active process's snapshot.
func (mc *Machine) save() {
	if proc := mc.Processes.Active(); proc != nil {
		proc.Program.Snapshot = mc.State
	}
}

func (mc *Machine) onStack(pid int) bool {
	for _, context := range mc.contexts {
		if context == pid {
			return true
		}
	}

	return false
}

func (mc *Machine) program() *Program {
	return mc.Processes.Active().Program
}

// fetchOperand reads the word following the current opcode and moves pc past
// both.
func (mc *Machine) fetchOperand() (memory.Word, error) {
	mc.State.PC++
	operand, err := mc.readCode(mc.State.PC)

	if err != nil {
		return 0, err
	}

	mc.State.PC++
	return operand, nil
}

// operandValue resolves the operand of opcode according to its mode.
func (mc *Machine) operandValue(opcode memory.Word) (memory.Word, error) {
	operand, err := mc.fetchOperand()

	if err != nil {
		return 0, err
	}

	switch OperandMode(opcode) {
	case MODE_ADDRESS:
		return mc.readData(operand)
	case MODE_REGISTER:
		reg, err := mc.register(operand)

		if err != nil {
			return 0, err
		}

		return *reg, nil
	default:
		return operand, nil
	}
}

func (mc *Machine) register(tag memory.Word) (*memory.Word, error) {
	switch tag {
	case REG_X:
		return &mc.State.X, nil
	case REG_C:
		return &mc.State.C, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrBadRegister, tag)
	}
}

func (mc *Machine) variable() (int, error) {
	name, err := mc.fetchOperand()

	if err != nil {
		return 0, err
	}

	return mc.program().variable(mc.Memory, name)
}

func (mc *Machine) readCode(offset memory.Word) (memory.Word, error) {
	code := mc.program().Code
	addr, err := code.Address(int(offset))

	if err != nil {
		return 0, err
	}

	return mc.read(code, addr)
}

func (mc *Machine) readData(offset memory.Word) (memory.Word, error) {
	data := mc.program().Data
	addr, err := data.Address(int(offset))

	if err != nil {
		return 0, err
	}

	mc.State.Addr = memory.Word(addr)
	return mc.read(data, addr)
}

func (mc *Machine) writeData(offset, value memory.Word) error {
	data := mc.program().Data
	addr, err := data.Address(int(offset))

	if err != nil {
		return err
	}

	mc.State.Addr = memory.Word(addr)
	return mc.write(data, addr, value)
}

func (mc *Machine) readStack(sp memory.Word) (memory.Word, error) {
	return mc.read(mc.program().Stack, int(sp))
}

func (mc *Machine) writeStack(sp, value memory.Word) error {
	return mc.write(mc.program().Stack, int(sp), value)
}

func (mc *Machine) read(seg *memory.Segment, addr int) (memory.Word, error) {
	value, err := mc.Memory.ReadSegment(seg, addr)

	if err != nil {
		return 0, err
	}

	if mc.Debugger != nil {
		mc.Debugger.Read(addr, mc)
	}

	return value, nil
}

func (mc *Machine) write(seg *memory.Segment, addr int, value memory.Word) error {
	if err := mc.Memory.WriteSegment(seg, addr, value); err != nil {
		return err
	}

	if mc.Debugger != nil {
		mc.Debugger.Write(addr, mc)
	}

	return nil
}

// buildString reads a zero terminated literal from the code stream at pc and
// leaves pc after the terminator. \n becomes a newline, _ a space.
func (mc *Machine) buildString() (string, error) {
	runes := make([]rune, 0)

	for {
		char, err := mc.readCode(mc.State.PC)

		if err != nil {
			return "", err
		}

		mc.State.PC++

		switch char {
		case 0:
			return string(runes), nil
		case '_':
			runes = append(runes, ' ')
		case '\\':
			next, err := mc.readCode(mc.State.PC)

			if err != nil {
				return "", err
			}

			if next == 'n' {
				runes = append(runes, '\n')
				mc.State.PC++
			} else {
				runes = append(runes, '\\')
			}
		default:
			runes = append(runes, rune(char))
		}
	}
}

// storeString copies text into a new heap block of the active process and
// returns its start.
func (mc *Machine) storeString(text string) (memory.Word, error) {
	handle, err := mc.Heap.Alloc(mc.ActivePID(), mc.program(), len([]rune(text)))

	if err != nil {
		return 0, err
	}

	if err := mc.Heap.StoreString(handle, text); err != nil {
		return 0, err
	}

	return handle.Start, nil
}

// loadString reads the heap string whose start is held in reg.
func (mc *Machine) loadString(reg memory.Word) (string, error) {
	handle, err := mc.Heap.Lookup(mc.ActivePID(), reg)

	if err != nil {
		return "", err
	}

	return mc.Heap.ReadString(handle)
}

// takeString is loadString followed by clearing the register.
func (mc *Machine) takeString(reg *memory.Word) (string, error) {
	text, err := mc.loadString(*reg)

	if err != nil {
		return "", err
	}

	*reg = 0
	return text, nil
}

func (mc *Machine) condition(opcode memory.Word) bool {
	flags := mc.State.Flags

	switch opcode {
	case OP_JZ:
		return flags&FLAG_ZERO != 0
	case OP_JNZ:
		return flags&FLAG_ZERO == 0
	case OP_JL:
		return flags&FLAG_LOWER != 0
	case OP_JLE:
		return flags&(FLAG_LOWER|FLAG_ZERO) != 0
	case OP_JG:
		return flags&(FLAG_LOWER|FLAG_ZERO) == 0
	case OP_JGE:
		return flags&FLAG_LOWER == 0
	case OP_JO:
		return flags&FLAG_OVERFLOW != 0
	case OP_JP:
		return flags&FLAG_PARITY != 0
	case OP_JC:
		return flags&FLAG_CARRY != 0
	default:
		return true
	}
}

func (mc *Machine) compare(value memory.Word) {
	if mc.State.Acc < value {
		mc.State.Flags |= FLAG_LOWER
	}

	if mc.State.Acc == value {
		mc.State.Flags |= FLAG_ZERO
	}

	if bits.OnesCount32(uint32(mc.State.Acc))%2 == 1 {
		mc.State.Flags |= FLAG_PARITY
	}
}

// setFlags raises sign, zero and parity for value. Flags already set stay set.
func (mc *Machine) setFlags(value memory.Word) {
	if value < 0 {
		mc.State.Flags |= FLAG_SIGN
	}

	if value == 0 {
		mc.State.Flags |= FLAG_ZERO
	}

	if bits.OnesCount32(uint32(value))%2 == 1 {
		mc.State.Flags |= FLAG_PARITY
	}
}

func (mc *Machine) addInternal(a, b memory.Word) memory.Word {
	sum := int64(a) + int64(b)

	if sum > math.MaxInt32 || sum < math.MinInt32 {
		mc.State.Flags |= FLAG_OVERFLOW
	}

	if _, carry := bits.Add32(uint32(a), uint32(b), 0); carry != 0 {
		mc.State.Flags |= FLAG_CARRY
	}

	return memory.Word(int32(sum))
}

func (mc *Machine) mulInternal(a, b memory.Word) memory.Word {
	product := int64(a) * int64(b)

	if product > math.MaxInt32 || product < math.MinInt32 {
		mc.State.Flags |= FLAG_OVERFLOW
	}

	return memory.Word(int32(product))
}

func logic(opcode, a, b memory.Word) memory.Word {
	switch opcode {
	case OP_ANDA, OP_ANDI, OP_ANDR:
		return a & b
	case OP_ORA, OP_ORI, OP_ORR:
		return a | b
	default:
		return a ^ b
	}
}

// IsFatal reports whether err stops the whole machine.
func IsFatal(err error) bool {
	var fault *Fault
	return err != nil && !errors.As(err, &fault)
}
