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
	"unicode"
)

// tokenize splits one source line into tokens. cursor carries the line
// number and the byte offset of the line start.
func tokenize(line string, cursor Cursor) (tokens []Token, errs []error) {
	var tokenStart int
	var tokenType TokenType = TOKEN_NONE
	var value []rune

	cursor.Size = int64(len(line))

	flush := func() {
		if len(value) > 0 {
			tokens = append(tokens, Token{
				Type:  tokenType,
				Value: string(value),
				Position: Cursor{
					Line:     cursor.Line,
					Column:   tokenStart,
					Byte:     cursor.LineByte + int64(tokenStart-1),
					Size:     int64(len(string(value))),
					LineByte: cursor.LineByte,
				},
			})
		}

		value = value[:0]
		tokenType = TOKEN_NONE
	}

	for column, char := range line {
		cursor.Column = column + 1

		if tokenType == TOKEN_NONE {
			tokenStart = cursor.Column
		}

		// Everything up to the closing quote belongs to the string
		if tokenType == TOKEN_STRING {
			value = append(value, char)

			if char == '"' {
				flush()
			}

			continue
		}

		switch {
		case unicode.IsSpace(char) || char == ',':
			flush()
			continue

		// Comments
		case char == ';':
			flush()
			return tokens, errs

		// Assembler Directives
		case char == '.':
			if tokenType != TOKEN_NONE {
				errs = append(errs, &UnexpectedCharacterError{cursor, char})
			}

			tokenType = TOKEN_DIRECTIVE

		// Label declaration (i.e. loop:)
		case char == ':':
			if tokenType != TOKEN_IDENT {
				errs = append(errs, &UnexpectedCharacterError{cursor, char})
				continue
			}

			tokenType = TOKEN_LABEL
			flush()
			continue

		// String Literal
		case char == '"':
			if tokenType != TOKEN_NONE {
				errs = append(errs, &UnexpectedCharacterError{cursor, char})
			}

			tokenType = TOKEN_STRING

		// Base 10 Literal (i.e. #42)
		case char == '#':
			if tokenType != TOKEN_NONE {
				errs = append(errs, &UnexpectedCharacterError{cursor, char})
			}

			tokenType = TOKEN_LITERAL

		// Numeric Sign (i.e. -42, #-42)
		case char == '-':
			if tokenType == TOKEN_LITERAL && string(value) != "#" {
				errs = append(errs, &UnexpectedCharacterError{cursor, char})
			} else if tokenType != TOKEN_NONE && tokenType != TOKEN_LITERAL {
				errs = append(errs, &UnexpectedCharacterError{cursor, char})
			}

			tokenType = TOKEN_LITERAL

		case unicode.IsDigit(char):
			if tokenType == TOKEN_NONE {
				tokenType = TOKEN_LITERAL
			}

		// Identifier
		case unicode.IsLetter(char) || char == '_':
			if char > unicode.MaxASCII {
				errs = append(errs, &OversizedCharacterError{cursor})
			}

			if tokenType == TOKEN_NONE {
				tokenType = TOKEN_IDENT
			}

		default:
			errs = append(errs, &UnexpectedCharacterError{cursor, char})
		}

		value = append(value, char)
	}

	if tokenType == TOKEN_STRING {
		errs = append(errs, &InvalidStringError{cursor})
		return tokens, errs
	}

	flush()
	return tokens, errs
}
