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

package assembler

import (
	"fmt"
	"strings"

	"github.com/lassandro/gorvm/pkg/machine"
	"github.com/lassandro/gorvm/pkg/memory"
)

// Disassemble renders the instruction at pc and returns its size in words.
// Words that are not a known opcode come out as a .WORD directive. Labels
// from symtable replace jump targets when available.
func Disassemble(words []memory.Word, pc int, symtable *SymTable) (string, int) {
	if pc < 0 || pc >= len(words) {
		return "", 0
	}

	opcode := words[pc]
	mnemonic, exists := machine.Mnemonics[opcode]

	if !exists {
		return fmt.Sprintf(".WORD %d", opcode), 1
	}

	mode := machine.OperandMode(opcode)

	if mode == machine.MODE_NONE {
		return mnemonic, 1
	}

	if mode == machine.MODE_STRING {
		var builder strings.Builder

		for i := pc + 1; i < len(words); i++ {
			if words[i] == 0 {
				return fmt.Sprintf("%s %q", mnemonic, builder.String()), i - pc + 1
			}

			char := rune(words[i])
			if char == '_' {
				char = ' '
			}

			builder.WriteRune(char)
		}

		return fmt.Sprintf("%s %q", mnemonic, builder.String()), len(words) - pc
	}

	if pc+1 >= len(words) {
		return mnemonic, 1
	}

	operand := words[pc+1]

	switch mode {
	case machine.MODE_REGISTER:
		return fmt.Sprintf("%s %c", mnemonic, rune(operand)), 2

	case machine.MODE_TARGET:
		if symtable != nil {
			if label, exists := symtable.Labels[int(operand)]; exists {
				return fmt.Sprintf("%s %s", mnemonic, label), 2
			}
		}
	}

	return fmt.Sprintf("%s %d", mnemonic, operand), 2
}
