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
	"encoding/gob"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/lassandro/gorvm/pkg/assembler"
	"github.com/lassandro/gorvm/pkg/devices"
	"github.com/lassandro/gorvm/pkg/encoding"
	"github.com/retroenv/retrogolib/buildinfo"
)

var (
	version = "0.1.0"
	commit  = ""
	date    = ""
)

var helpvar bool
var debugvar bool
var versionvar bool
var outvar string

const usage = "gorvm-asm [-debug] [-out outfile] filename"

// Words per line of the output file
const wordsPerLine = 16

func init() {
	log.SetFlags(0)
	log.SetOutput(os.Stderr)
}

func init() {
	flag.BoolVar(&helpvar, "help", false, "Displays command usage")
	flag.BoolVar(&versionvar, "version", false, "Prints the version and exits")
	flag.BoolVar(
		&debugvar, "debug", false,
		"Specifies whether to generate debugging information as a symbol "+
			"table. The table will use the output filename with extension "+
			"'.rmdb'",
	)
	flag.StringVar(
		&outvar, "out", "",
		"Specifies a precise name for the output file, "+
			"overriding the default means of determining it",
	)
}

func printErrors(errs []error, input io.ReadSeeker, seekable bool) {
	for _, err := range errs {
		tokenErr, ok := err.(assembler.TokenError)

		if !ok || !seekable {
			log.Println(err)
			continue
		}

		cursor := tokenErr.GetPosition()

		if _, err := input.Seek(cursor.LineByte, io.SeekStart); err != nil {
			log.Println(err)
			continue
		}

		line, _ := bufio.NewReader(input).ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		size := int(cursor.Size)
		if size < 1 {
			size = 1
		}

		underlinefmt := fmt.Sprintf(
			"%% %ds%s",
			int(cursor.Byte-cursor.LineByte)+1,
			strings.Repeat("~", size-1),
		)

		log.Printf(
			"%s\n%s\n\033[31m%s\033[0m",
			err,
			line,
			fmt.Sprintf(underlinefmt, "^"),
		)
	}
}

func writeSymbols(path string, symtable *assembler.SymTable) error {
	file, err := os.Create(path)

	if err != nil {
		return err
	}

	if err := gob.NewEncoder(file).Encode(symtable); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}

func gorvm_asm() int {
	flag.Parse()

	if helpvar {
		fmt.Println(usage)
		flag.PrintDefaults()
		return 0
	}

	if versionvar {
		fmt.Printf("gorvm-asm version: %s\n", buildinfo.Version(version, commit, date))
		return 0
	}

	args := flag.Args()

	var infile string
	var input io.ReadSeeker
	seekable := true

	if stat, _ := os.Stdin.Stat(); len(args) == 0 && stat.Mode()&os.ModeCharDevice == 0 {
		input = os.Stdin
		seekable = false
		log.SetPrefix("\033[1m<stdin>:\033[0m")

		if outvar == "" {
			outvar = "out" + devices.PROGRAM_EXT
		}
	} else {
		if len(args) != 1 {
			log.Println(usage)
			return 1
		}

		file, err := os.Open(args[0])

		if err != nil {
			log.Println(err)
			return 1
		}

		defer file.Close()

		filename := filepath.Base(file.Name())

		if stat, err := file.Stat(); err != nil {
			log.Println(err)
			return 1
		} else if stat.IsDir() {
			log.Printf("%s is not a valid assembly file", filename)
			return 1
		}

		input = file
		infile = file.Name()
		log.SetPrefix(fmt.Sprintf("\033[1m%s:\033[0m", filename))

		if outvar == "" {
			outvar = strings.TrimSuffix(file.Name(), filepath.Ext(filename)) + devices.PROGRAM_EXT
		}
	}

	var symtable *assembler.SymTable

	if debugvar {
		symtable = &assembler.SymTable{
			Symbols: make(map[int]int64),
			Labels:  make(map[int]string),
		}

		if infile != "" {
			var err error
			if symtable.Source, err = filepath.Abs(infile); err != nil {
				log.Println(err)
				symtable.Source = ""
			}
		}
	}

	result, errs := assembler.AssembleSource(input, symtable)

	if len(errs) > 0 {
		printErrors(errs, input, seekable)
		return 1
	}

	output, err := os.Create(outvar)

	if err != nil {
		log.Println("Error writing output file")
		log.Println(err)
		return 1
	}

	if err := encoding.WriteWords(output, result, wordsPerLine); err != nil {
		output.Close()
		log.Println("Error writing output file")
		log.Println(err)
		return 1
	}

	if err := output.Close(); err != nil {
		log.Println("Error writing output file")
		log.Println(err)
		return 1
	}

	if debugvar {
		filename := strings.TrimSuffix(outvar, filepath.Ext(outvar)) + ".rmdb"

		if err := writeSymbols(filename, symtable); err != nil {
			log.Println("Error writing symbol table")
			log.Println(err)
			return 1
		}
	}

	return 0
}

func main() {
	os.Exit(gorvm_asm())
}
