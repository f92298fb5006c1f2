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

package assembler_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/lassandro/gorvm/pkg/assembler"
	"github.com/lassandro/gorvm/pkg/machine"
	"github.com/lassandro/gorvm/pkg/memory"
	"github.com/retroenv/retrogolib/assert"
)

type testCase struct {
	Name     string
	Input    string
	Output   []memory.Word
	SymTable *assembler.SymTable
}

type failCase struct {
	Name  string
	Input string
	Error error
}

func testAssemblerSuccess(t *testing.T, test *testCase) {
	var symtable assembler.SymTable
	var symtarget *assembler.SymTable = nil

	if test.SymTable != nil {
		symtable.Symbols = make(map[int]int64)
		symtable.Labels = make(map[int]string)
		symtarget = &symtable
	}

	result, errs := assembler.AssembleSource(
		strings.NewReader(test.Input), symtarget,
	)

	if len(errs) > 0 {
		t.Fatal(errs[0])
	}

	if !reflect.DeepEqual(result, test.Output) {
		t.Fatalf(
			"Program encoding mismatch\n"+
				"want:%v\n"+
				"have:%v",
			test.Output,
			result,
		)
	}

	if test.SymTable != nil {
		assert.Equal(t, test.SymTable.Symbols, symtable.Symbols)
		assert.Equal(t, test.SymTable.Labels, symtable.Labels)
	}
}

func testAssemblerFail(t *testing.T, test *failCase) {
	_, errs := assembler.AssembleSource(strings.NewReader(test.Input), nil)

	if test.Error == nil {
		panic("Fail case missing error value")
	}

	if len(errs) == 0 {
		t.Fatalf(
			"%s produced error of incorrect type"+
				"\nwant:%T (test.Error)\nhave:<nil>",
			t.Name(),
			test.Error,
		)
	}

	if len(errs) > 1 {
		errTypes := make([]reflect.Type, 0, len(errs))
		for _, err := range errs {
			errTypes = append(errTypes, reflect.TypeOf(err))
		}

		t.Fatalf(
			"%s produced multiple errors:\n\twant:%T (test.Error)\n\thave:%v",
			t.Name(),
			test.Error,
			errTypes,
		)
	}

	if reflect.TypeOf(errs[0]) != reflect.TypeOf(test.Error) {
		t.Fatalf(
			"%s produced error of incorrect type"+
				"\nwant:%T (test.Error)\nhave:%T",
			t.Name(),
			test.Error,
			errs[0],
		)
	}

	if _, ok := errs[0].(assembler.TokenError); !ok {
		t.Fatalf("%s error carries no position", t.Name())
	}
}

func testSuccess(t *testing.T, tests []testCase) {
	t.Run("Success", func(t *testing.T) {
		for _, test := range tests {
			test := test
			t.Run(test.Name, func(t *testing.T) {
				testAssemblerSuccess(t, &test)
			})
		}
	})
}

func testFail(t *testing.T, tests []failCase) {
	t.Run("Fail", func(t *testing.T) {
		for _, test := range tests {
			test := test
			t.Run(test.Name, func(t *testing.T) {
				testAssemblerFail(t, &test)
			})
		}
	})
}

func TestOperandModes(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name:   "Immediate",
			Input:  `LOADI 7`,
			Output: []memory.Word{machine.OP_LOADI, 7},
		},
		{
			Name:   "Immediate Hash",
			Input:  `addi #-3`,
			Output: []memory.Word{machine.OP_ADDI, -3},
		},
		{
			Name:   "Immediate Hex",
			Input:  `ANDI 0x0F`,
			Output: []memory.Word{machine.OP_ANDI, 15},
		},
		{
			Name:   "Address",
			Input:  `STOREA 600`,
			Output: []memory.Word{machine.OP_STOREA, 600},
		},
		{
			Name:   "Register X",
			Input:  `STORER x`,
			Output: []memory.Word{machine.OP_STORER, 'x'},
		},
		{
			Name:   "Register C",
			Input:  `CMPR C`,
			Output: []memory.Word{machine.OP_CMPR, 'c'},
		},
		{
			Name:   "Variable",
			Input:  `VAR 3`,
			Output: []memory.Word{machine.OP_VAR, 3},
		},
		{
			Name:   "No Operand",
			Input:  `PUSH`,
			Output: []memory.Word{machine.OP_PUSH},
		},
		{
			Name:   "Interrupt",
			Input:  `INT 10`,
			Output: []memory.Word{machine.OP_INT, 10},
		},
	})

	testFail(t, []failCase{
		{
			Name:  "Missing Operand",
			Input: `LOADI`,
			Error: &assembler.InvalidNumArgumentsError{},
		},
		{
			Name:  "Extra Operand",
			Input: `STOP 1`,
			Error: &assembler.InvalidNumArgumentsError{},
		},
		{
			Name:  "Bad Register",
			Input: `STORER y`,
			Error: &assembler.InvalidRegisterError{},
		},
		{
			Name:  "Register Literal",
			Input: `ADDR 1`,
			Error: &assembler.InvalidRegisterError{},
		},
		{
			Name:  "Label As Address",
			Input: `LOADA somewhere`,
			Error: &assembler.InvalidOperandError{},
		},
		{
			Name:  "Bad Literal",
			Input: `LOADI 12ab`,
			Error: &assembler.InvalidLiteralError{},
		},
		{
			Name:  "Oversized Literal",
			Input: `LOADI 99999999999`,
			Error: &assembler.InvalidLiteralError{},
		},
		{
			Name:  "Unknown Instruction",
			Input: `loop: JUMP loop`,
			Error: &assembler.UnknownIdentifierError{},
		},
	})
}

func TestStrings(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name:  "STR",
			Input: `STR "hi"`,
			Output: []memory.Word{
				machine.OP_STR, 'h', 'i', 0,
			},
		},
		{
			Name:  "STR Spaces",
			Input: `STR "a b;c"`,
			Output: []memory.Word{
				machine.OP_STR, 'a', '_', 'b', ';', 'c', 0,
			},
		},
		{
			Name:  "STR Newline",
			Input: `STR "a\n"`,
			Output: []memory.Word{
				machine.OP_STR, 'a', '\\', 'n', 0,
			},
		},
		{
			Name:   "STR Empty",
			Input:  `STR ""`,
			Output: []memory.Word{machine.OP_STR, 0},
		},
		{
			Name:  "STRCAT",
			Input: `STRCAT "!"`,
			Output: []memory.Word{
				machine.OP_STRCAT, '!', 0,
			},
		},
	})

	testFail(t, []failCase{
		{
			Name:  "Unterminated",
			Input: `STR "hi`,
			Error: &assembler.InvalidStringError{},
		},
		{
			Name:  "Not A String",
			Input: `STR 12`,
			Error: &assembler.InvalidOperandError{},
		},
	})
}

func TestHalt(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name:  "HALT",
			Input: `halt`,
			Output: []memory.Word{
				machine.OP_LOADI, machine.HALT_SENTINEL,
				machine.OP_STORER, 'x',
				machine.OP_STORER, 'c',
				machine.OP_STOP,
			},
		},
	})

	testFail(t, []failCase{
		{
			Name:  "HALT Operand",
			Input: `HALT 1`,
			Error: &assembler.InvalidNumArgumentsError{},
		},
	})
}

func TestWord(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name:   ".WORD",
			Input:  `.WORD 1, -2 0x10`,
			Output: []memory.Word{1, -2, 16},
		},
		{
			Name: ".WORD Label",
			Input: `
			start: .WORD start end
			end:   STOP`,
			Output: []memory.Word{0, 2, machine.OP_STOP},
		},
	})

	testFail(t, []failCase{
		{
			Name:  ".WORD Empty",
			Input: `.WORD`,
			Error: &assembler.InvalidNumArgumentsError{},
		},
		{
			Name:  "Unknown Directive",
			Input: `.FILL 1`,
			Error: &assembler.UnknownIdentifierError{},
		},
	})
}

func TestEnd(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: ".END",
			Input: `
			INC
			.END
			garbage that is never read`,
			Output: []memory.Word{machine.OP_INC},
		},
	})

	testFail(t, []failCase{
		{
			Name:  ".END Operand",
			Input: `.END 1`,
			Error: &assembler.InvalidNumArgumentsError{},
		},
	})
}

func TestComment(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "Comments",
			Input: `
			; full line
			INC ; trailing
			;DEC`,
			Output: []memory.Word{machine.OP_INC},
		},
	})
}

func TestLabel(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "Backward",
			Input: `
			loop: DEC
			      JNZ loop`,
			Output: []memory.Word{machine.OP_DEC, machine.OP_JNZ, 0},
		},
		{
			Name: "Forward",
			Input: `
			CALL sub
			STOP
			sub
			LOADI 1
			RET`,
			Output: []memory.Word{
				machine.OP_CALL, 3,
				machine.OP_STOP,
				machine.OP_LOADI, 1,
				machine.OP_RET,
			},
		},
		{
			Name: "Immediate Label",
			Input: `
			LOADI data
			data: .WORD 5`,
			Output: []memory.Word{machine.OP_LOADI, 2, 5},
		},
	})

	testFail(t, []failCase{
		{
			Name: "Redeclared",
			Input: `
			here: INC
			here: DEC`,
			Error: &assembler.RedeclaredLabelError{},
		},
		{
			Name:  "Unknown",
			Input: `JMP nowhere`,
			Error: &assembler.UnknownLabelError{},
		},
		{
			Name:  "Stray Colon",
			Input: `: INC`,
			Error: &assembler.UnexpectedCharacterError{},
		},
		{
			Name:  "Unexpected Character",
			Input: `INC @`,
			Error: &assembler.UnexpectedCharacterError{},
		},
		{
			Name:  "Non ASCII Identifier",
			Input: `éloop: INC`,
			Error: &assembler.OversizedCharacterError{},
		},
	})
}

func TestSymtable(t *testing.T) {
	input := "start: LOADI 1\n\n; comment\nloop: DEC\nJNZ loop\nSTOP\n"

	testSuccess(t, []testCase{
		{
			Name:  "Symtable",
			Input: input,
			Output: []memory.Word{
				machine.OP_LOADI, 1,
				machine.OP_DEC,
				machine.OP_JNZ, 2,
				machine.OP_STOP,
			},
			SymTable: &assembler.SymTable{
				Symbols: map[int]int64{0: 0, 2: 26, 3: 36, 5: 45},
				Labels:  map[int]string{0: "start", 2: "loop"},
			},
		},
	})
}

func TestDisassemble(t *testing.T) {
	words := []memory.Word{
		machine.OP_LOADI, 7,
		machine.OP_STORER, 'x',
		machine.OP_STR, 'a', '_', 'b', 0,
		machine.OP_JNZ, 0,
		machine.OP_STOP,
		99,
	}

	symtable := &assembler.SymTable{Labels: map[int]string{0: "start"}}

	type disasmCase struct {
		PC   int
		Text string
		Size int
	}

	testCases := []disasmCase{
		{0, "LOADI 7", 2},
		{2, "STORER x", 2},
		{4, `STR "a b"`, 5},
		{9, "JNZ start", 2},
		{11, "STOP", 1},
		{12, ".WORD 99", 1},
		{13, "", 0},
	}

	for _, test := range testCases {
		text, size := assembler.Disassemble(words, test.PC, symtable)
		assert.Equal(t, test.Text, text)
		assert.Equal(t, test.Size, size)
	}
}
