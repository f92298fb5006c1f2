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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const prompt = "\033[1;30m(dbg)\033[0m "

var replterm *term.Terminal

// replkeyboard reads stdin when it is not a terminal. It is shared
// with the console device so neither buffers lines meant for the other.
var replkeyboard *bufio.Reader

// session is one stay inside the debug REPL. On a tty stdin is switched to
// raw mode so the terminal can edit lines and keep history.
type session struct {
	out      io.Writer
	readLine func() (string, error)
	restore  func()
}

// lineSession reads commands a line at a time from keyboard.
func lineSession(keyboard *bufio.Reader, out io.Writer) *session {
	return &session{
		out: out,
		readLine: func() (string, error) {
			fmt.Fprint(out, prompt)

			line, err := keyboard.ReadString('\n')

			if errors.Is(err, io.EOF) && line != "" {
				err = nil
			}

			if err != nil {
				return "", err
			}

			return strings.TrimRight(line, "\r\n"), nil
		},
		restore: func() {},
	}
}

func enterRawTerm() *session {
	fd := int(os.Stdin.Fd())

	if !term.IsTerminal(fd) {
		if replkeyboard == nil {
			replkeyboard = bufio.NewReader(os.Stdin)
		}

		return lineSession(replkeyboard, os.Stdout)
	}

	state, err := term.MakeRaw(fd)

	if err != nil {
		panic(err)
	}

	if replterm == nil {
		replterm = term.NewTerminal(
			struct {
				io.Reader
				io.Writer
			}{os.Stdin, os.Stdout},
			prompt,
		)
	}

	return &session{
		out:      replterm,
		readLine: replterm.ReadLine,
		restore: func() {
			if err := term.Restore(fd, state); err != nil {
				panic(err)
			}
		},
	}
}
