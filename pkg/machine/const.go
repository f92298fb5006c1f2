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

import "github.com/lassandro/gorvm/pkg/memory"

const (
	FLAG_SIGN     memory.Word = 1 << 0
	FLAG_ZERO     memory.Word = 1 << 1
	FLAG_LOWER    memory.Word = 1 << 2
	FLAG_END      memory.Word = 1 << 3
	FLAG_OVERFLOW memory.Word = 1 << 4
	FLAG_CARRY    memory.Word = 1 << 5
	FLAG_PARITY   memory.Word = 1 << 6

	// Every flag an instruction may raise; FLAG_END belongs to the machine.
	FLAG_CONDITION = FLAG_SIGN | FLAG_ZERO | FLAG_LOWER | FLAG_OVERFLOW |
		FLAG_CARRY | FLAG_PARITY
)

const (
	OP_STOP memory.Word = iota
	OP_LOADA
	OP_LOADI
	OP_LOADR
	OP_STOREA
	OP_STORER
	OP_ADDA
	OP_ADDI
	OP_ADDR
	OP_SUBA
	OP_SUBI
	OP_SUBR
	OP_MULA
	OP_MULI
	OP_MULR
	OP_DIVA
	OP_DIVI
	OP_DIVR
	OP_JZ
	OP_JNZ
	OP_JL
	OP_JLE
	OP_JG
	OP_JGE
	OP_JMP
	OP_MOD
	OP_PUSH
	OP_POP
	OP_INC
	OP_DEC
	OP_SHL
	OP_SHR
	OP_INT
	OP_ANDA
	OP_ANDI
	OP_ANDR
	OP_ORA
	OP_ORI
	OP_ORR
	OP_XORA
	OP_XORI
	OP_XORR
	OP_CMPA
	OP_CMPI
	OP_CMPR
	OP_CALL
	OP_VAR
	OP_LOADV
	OP_STOREV
	OP_RET
	OP_STR
	OP_DELSTR
	OP_STRCAT
	OP_JO
	OP_JP
	OP_JC
)

// Operand addressing modes
const (
	MODE_NONE = iota
	MODE_ADDRESS
	MODE_IMMEDIATE
	MODE_REGISTER
	MODE_TARGET
	MODE_NAME
	MODE_STRING
)

const (
	INT_FORK        memory.Word = 3
	INT_SWITCH      memory.Word = 4
	INT_READLINE    memory.Word = 5
	INT_SPAWN       memory.Word = 6
	INT_PRINT       memory.Word = 10
	INT_CREATE_FILE memory.Word = 15
	INT_DELETE_FILE memory.Word = 16
	INT_MODIFY_FILE memory.Word = 17
	INT_WRITE_FILE  memory.Word = 18
	INT_DESCRIBE    memory.Word = 30
	INT_INDEX_SIZE  memory.Word = 31
	INT_PROC_COUNT  memory.Word = 32
	INT_PROC_INFO   memory.Word = 33
	INT_ARG_COUNT   memory.Word = 35
	INT_ARG         memory.Word = 36
)

// Results reported to a program through the c register
const (
	STATUS_SUCCESS memory.Word = 1
	STATUS_FAILURE memory.Word = -1
	STATUS_FAULT   memory.Word = -2
)

const (
	REG_X memory.Word = 'x'
	REG_C memory.Word = 'c'
)

const (
	// Value both x and c must hold for STOP to halt the whole machine
	HALT_SENTINEL memory.Word = 9000

	// Return register value meaning no call is pending
	NO_RETURN memory.Word = -1

	DEFAULT_CYCLES = 14800

	// Variable table slots at the start of every data segment
	VAR_SLOTS = 255
	VAR_TABLE = 1 + 2*VAR_SLOTS
)

// Program store keywords used by fork and spawn
const (
	KEYWORD_KERNEL = "kernel"
	KEYWORD_USER   = "user"
)

// SHIFT_STORES_RESULT makes SHL and SHR write the shifted value back into the
// accumulator. Turning it off restores the shift-and-discard behaviour older
// bytecode was written against.
const SHIFT_STORES_RESULT = true

// Operand mode of every opcode that carries one
var operandModes = map[memory.Word]int{
	OP_LOADA: MODE_ADDRESS, OP_LOADI: MODE_IMMEDIATE, OP_LOADR: MODE_REGISTER,
	OP_STOREA: MODE_ADDRESS, OP_STORER: MODE_REGISTER,
	OP_ADDA: MODE_ADDRESS, OP_ADDI: MODE_IMMEDIATE, OP_ADDR: MODE_REGISTER,
	OP_SUBA: MODE_ADDRESS, OP_SUBI: MODE_IMMEDIATE, OP_SUBR: MODE_REGISTER,
	OP_MULA: MODE_ADDRESS, OP_MULI: MODE_IMMEDIATE, OP_MULR: MODE_REGISTER,
	OP_DIVA: MODE_ADDRESS, OP_DIVI: MODE_IMMEDIATE, OP_DIVR: MODE_REGISTER,
	OP_ANDA: MODE_ADDRESS, OP_ANDI: MODE_IMMEDIATE, OP_ANDR: MODE_REGISTER,
	OP_ORA: MODE_ADDRESS, OP_ORI: MODE_IMMEDIATE, OP_ORR: MODE_REGISTER,
	OP_XORA: MODE_ADDRESS, OP_XORI: MODE_IMMEDIATE, OP_XORR: MODE_REGISTER,
	OP_CMPA: MODE_ADDRESS, OP_CMPI: MODE_IMMEDIATE, OP_CMPR: MODE_REGISTER,
	OP_MOD: MODE_ADDRESS,
	OP_JZ: MODE_TARGET, OP_JNZ: MODE_TARGET, OP_JL: MODE_TARGET,
	OP_JLE: MODE_TARGET, OP_JG: MODE_TARGET, OP_JGE: MODE_TARGET,
	OP_JMP: MODE_TARGET, OP_JO: MODE_TARGET, OP_JP: MODE_TARGET,
	OP_JC: MODE_TARGET, OP_CALL: MODE_TARGET,
	OP_SHL: MODE_IMMEDIATE, OP_SHR: MODE_IMMEDIATE, OP_INT: MODE_IMMEDIATE,
	OP_VAR: MODE_NAME, OP_LOADV: MODE_NAME, OP_STOREV: MODE_NAME,
	OP_STR: MODE_STRING, OP_STRCAT: MODE_STRING,
}

// OperandMode reports how the operand following opcode is encoded.
func OperandMode(opcode memory.Word) int {
	return operandModes[opcode]
}

// Mnemonics by opcode
var Mnemonics = map[memory.Word]string{
	OP_STOP: "STOP", OP_LOADA: "LOADA", OP_LOADI: "LOADI", OP_LOADR: "LOADR",
	OP_STOREA: "STOREA", OP_STORER: "STORER",
	OP_ADDA: "ADDA", OP_ADDI: "ADDI", OP_ADDR: "ADDR",
	OP_SUBA: "SUBA", OP_SUBI: "SUBI", OP_SUBR: "SUBR",
	OP_MULA: "MULA", OP_MULI: "MULI", OP_MULR: "MULR",
	OP_DIVA: "DIVA", OP_DIVI: "DIVI", OP_DIVR: "DIVR",
	OP_JZ: "JZ", OP_JNZ: "JNZ", OP_JL: "JL", OP_JLE: "JLE", OP_JG: "JG",
	OP_JGE: "JGE", OP_JMP: "JMP", OP_MOD: "MOD", OP_PUSH: "PUSH",
	OP_POP: "POP", OP_INC: "INC", OP_DEC: "DEC", OP_SHL: "SHL", OP_SHR: "SHR",
	OP_INT: "INT", OP_ANDA: "ANDA", OP_ANDI: "ANDI", OP_ANDR: "ANDR",
	OP_ORA: "ORA", OP_ORI: "ORI", OP_ORR: "ORR",
	OP_XORA: "XORA", OP_XORI: "XORI", OP_XORR: "XORR",
	OP_CMPA: "CMPA", OP_CMPI: "CMPI", OP_CMPR: "CMPR", OP_CALL: "CALL",
	OP_VAR: "VAR", OP_LOADV: "LOADV", OP_STOREV: "STOREV", OP_RET: "RET",
	OP_STR: "STR", OP_DELSTR: "DELSTR", OP_STRCAT: "STRCAT",
	OP_JO: "JO", OP_JP: "JP", OP_JC: "JC",
}
