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
	"bufio"
	"io"
	"strings"

	"github.com/lassandro/gorvm/pkg/encoding"
	"github.com/lassandro/gorvm/pkg/machine"
	"github.com/lassandro/gorvm/pkg/memory"
)

var opcodes = make(map[string]memory.Word)

func init() {
	for opcode, mnemonic := range machine.Mnemonics {
		opcodes[mnemonic] = opcode
	}
}

func parseDirective(ident string) DirectiveType {
	if strings.EqualFold(ident, ".WORD") {
		return DIRECTIVE_WORD
	} else if strings.EqualFold(ident, ".END") {
		return DIRECTIVE_END
	}

	return DIRECTIVE_INVALID
}

func parseInstruction(ident string) (memory.Word, bool) {
	opcode, exists := opcodes[strings.ToUpper(ident)]
	return opcode, exists
}

func isKeyword(ident string) bool {
	_, exists := parseInstruction(ident)
	return exists || strings.EqualFold(ident, PSEUDO_HALT)
}

func parseLiteral(token *Token) (memory.Word, error) {
	result, err := encoding.DecodeWord(token.Value)

	if err != nil {
		return 0, &InvalidLiteralError{token.Position}
	}

	return result, nil
}

func parseRegister(token *Token) (memory.Word, bool) {
	if token.Type != TOKEN_IDENT {
		return 0, false
	}

	if strings.EqualFold(token.Value, "x") {
		return machine.REG_X, true
	} else if strings.EqualFold(token.Value, "c") {
		return machine.REG_C, true
	}

	return 0, false
}

// parseString turns a quoted string token into zero terminated words the way
// STR reads them: spaces travel as underscores, \n is kept as two cells.
func parseString(token *Token) ([]memory.Word, error) {
	text := token.Value

	if len(text) < 2 || text[0] != '"' || text[len(text)-1] != '"' {
		return nil, &InvalidStringError{token.Position}
	}

	text = text[1 : len(text)-1]
	words := make([]memory.Word, 0, len(text)+1)

	for _, char := range text {
		if char == 0 {
			return nil, &InvalidStringError{token.Position}
		}

		if char == ' ' {
			char = '_'
		}

		words = append(words, memory.Word(char))
	}

	return append(words, 0), nil
}

// AssembleSource assembles mnemonic source into program words. Labels may be
// used before they are declared. When symtable is not nil it receives the
// source position of every instruction and every label.
func AssembleSource(input io.Reader, symtable *SymTable) (result []memory.Word, errs []error) {
	type LabelRef struct {
		Label    string
		Addr     int
		Position Cursor
	}

	var labels = make(map[string]int)
	var labelRefs []LabelRef

	var scanner = bufio.NewScanner(input)
	var cursor = Cursor{Line: 1}

	result = make([]memory.Word, 0)
	errs = make([]error, 0)

	next := func(line string) {
		cursor.Line++
		cursor.Byte += int64(len(line) + 1)
		cursor.LineByte += int64(len(line) + 1)
	}

	// operand resolves a literal, or a label reference patched once every
	// label is known.
	operand := func(token *Token, allowLabel bool) memory.Word {
		switch {
		case token.Type == TOKEN_LITERAL:
			literal, err := parseLiteral(token)

			if err != nil {
				errs = append(errs, err)
			}

			return literal

		case token.Type == TOKEN_IDENT && allowLabel:
			labelRefs = append(
				labelRefs, LabelRef{token.Value, len(result), token.Position},
			)

			return 0

		default:
			required := []TokenType{TOKEN_LITERAL}

			if allowLabel {
				required = append(required, TOKEN_IDENT)
			}

			errs = append(
				errs, &InvalidOperandError{token.Position, required, token.Type},
			)

			return 0
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		lineErrs := len(errs)

		tokens, lexErrs := tokenize(line, cursor)
		errs = append(errs, lexErrs...)

		// Skip assembling lines that did not tokenize cleanly
		if len(tokens) == 0 || len(errs) > lineErrs {
			next(line)
			continue
		}

		// Optional leading label, either "name:" or a bare identifier that
		// is not a keyword
		if first := tokens[0]; first.Type == TOKEN_LABEL ||
			(first.Type == TOKEN_IDENT && !isKeyword(first.Value)) {
			if _, exists := labels[first.Value]; !exists {
				labels[first.Value] = len(result)
			} else {
				errs = append(
					errs, &RedeclaredLabelError{first.Position, first.Value},
				)
			}

			tokens = tokens[1:]
		}

		if len(tokens) == 0 {
			next(line)
			continue
		}

		keyword := &tokens[0]
		operands := tokens[1:]
		start := len(result)

		if keyword.Type == TOKEN_DIRECTIVE {
			directive := parseDirective(keyword.Value)

			if directive == DIRECTIVE_INVALID {
				errs = append(
					errs, &UnknownIdentifierError{keyword.Position, keyword.Value},
				)

				next(line)
				continue
			}

			if directive == DIRECTIVE_END {
				if count := len(operands); count != 0 {
					errs = append(
						errs, &InvalidNumArgumentsError{keyword.Position, 0, count},
					)
				}

				break
			}

			// .WORD value|label [value|label...]
			if len(operands) == 0 {
				errs = append(
					errs, &InvalidNumArgumentsError{keyword.Position, 1, 0},
				)
			}

			for i := range operands {
				result = append(result, operand(&operands[i], true))
			}

			if symtable != nil {
				symtable.Symbols[start] = cursor.LineByte
			}

			next(line)
			continue
		}

		if keyword.Type != TOKEN_IDENT || !isKeyword(keyword.Value) {
			errs = append(
				errs, &UnknownIdentifierError{keyword.Position, keyword.Value},
			)

			next(line)
			continue
		}

		if strings.EqualFold(keyword.Value, PSEUDO_HALT) {
			if count := len(operands); count != 0 {
				errs = append(
					errs, &InvalidNumArgumentsError{keyword.Position, 0, count},
				)
			}

			result = append(result,
				machine.OP_LOADI, machine.HALT_SENTINEL,
				machine.OP_STORER, machine.REG_X,
				machine.OP_STORER, machine.REG_C,
				machine.OP_STOP,
			)
		} else {
			opcode, _ := parseInstruction(keyword.Value)
			mode := machine.OperandMode(opcode)

			required := 1
			if mode == machine.MODE_NONE {
				required = 0
			}

			if count := len(operands); count != required {
				errs = append(
					errs,
					&InvalidNumArgumentsError{keyword.Position, required, count},
				)

				next(line)
				continue
			}

			result = append(result, opcode)

			switch mode {
			case machine.MODE_ADDRESS, machine.MODE_NAME:
				result = append(result, operand(&operands[0], false))

			case machine.MODE_IMMEDIATE, machine.MODE_TARGET:
				result = append(result, operand(&operands[0], true))

			case machine.MODE_REGISTER:
				register, ok := parseRegister(&operands[0])

				if !ok {
					errs = append(errs, &InvalidRegisterError{operands[0].Position})
				}

				result = append(result, register)

			case machine.MODE_STRING:
				if operands[0].Type != TOKEN_STRING {
					errs = append(errs, &InvalidOperandError{
						operands[0].Position,
						[]TokenType{TOKEN_STRING},
						operands[0].Type,
					})

					break
				}

				words, err := parseString(&operands[0])

				if err != nil {
					errs = append(errs, err)
				}

				result = append(result, words...)
			}
		}

		if symtable != nil {
			symtable.Symbols[start] = cursor.LineByte
		}

		next(line)
	}

	if err := scanner.Err(); err != nil {
		errs = append(errs, err)
	}

	// Label
	// - Validate and resolve label references
	// - Add labels to symbol table
	for _, ref := range labelRefs {
		addr, exists := labels[ref.Label]

		if !exists {
			errs = append(errs, &UnknownLabelError{ref.Position, ref.Label})
			continue
		}

		result[ref.Addr] = memory.Word(addr)
	}

	if symtable != nil {
		for label, addr := range labels {
			symtable.Labels[addr] = label
		}
	}

	return
}
