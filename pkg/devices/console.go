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

package devices

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// Console is the blocking line device behind the read and print interrupts.
type Console interface {
	ReadLine() (string, error)
	WriteLine(text string) error
}

// Terminal is a Console over a keyboard reader and a display writer.
type Terminal struct {
	Keyboard *bufio.Reader
	Display  *bufio.Writer

	// Written before every read when not empty
	Prompt string
}

func NewTerminal(keyboard io.Reader, display io.Writer) *Terminal {
	return &Terminal{
		Keyboard: bufio.NewReader(keyboard),
		Display:  bufio.NewWriter(display),
	}
}

// ReadLine blocks until a full line is available. A final line without a
// newline is returned as is; io.EOF is only returned when nothing was read.
func (t *Terminal) ReadLine() (string, error) {
	if t.Prompt != "" {
		if _, err := t.Display.WriteString(t.Prompt); err != nil {
			return "", err
		}

		if err := t.Display.Flush(); err != nil {
			return "", err
		}
	}

	line, err := t.Keyboard.ReadString('\n')

	if errors.Is(err, io.EOF) && line != "" {
		err = nil
	}

	if err != nil {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func (t *Terminal) WriteLine(text string) error {
	if _, err := t.Display.WriteString(text + "\n"); err != nil {
		return err
	}

	return t.Display.Flush()
}
