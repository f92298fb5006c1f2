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
	"encoding/gob"
	"errors"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/lassandro/gorvm/pkg/assembler"
	"github.com/lassandro/gorvm/pkg/config"
	"github.com/lassandro/gorvm/pkg/debugger"
	"github.com/lassandro/gorvm/pkg/devices"
	"github.com/lassandro/gorvm/pkg/encoding"
	"github.com/lassandro/gorvm/pkg/machine"
	"github.com/lassandro/gorvm/pkg/memory"
	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
	"golang.org/x/term"
)

var (
	version = "0.1.0"
	commit  = ""
	date    = ""
)

var helpvar bool
var debugvar bool
var versionvar bool
var freshvar bool
var configvar string
var cyclesvar int
var loglevelvar string

const usage = "gorvm [-debug] [-config file] [-cycles n] [-fresh-flags] program [args...]"

func init() {
	exe, _ := os.Executable()
	stdlog.SetFlags(0)
	stdlog.SetPrefix(fmt.Sprintf("%s: ", filepath.Base(exe)))
	stdlog.SetOutput(os.Stderr)
}

func init() {
	flag.BoolVar(&helpvar, "help", false, "Displays command usage")
	flag.BoolVar(&debugvar, "debug", false, "Runs the machine in a debug CLI")
	flag.BoolVar(&versionvar, "version", false, "Prints the version and exits")
	flag.BoolVar(
		&freshvar, "fresh-flags", false,
		"Clears condition flags before every flag-setting instruction",
	)
	flag.StringVar(&configvar, "config", "", "Path of a JSON config file")
	flag.IntVar(
		&cyclesvar, "cycles", 0,
		"Instructions executed between checks for a halted machine",
	)
	flag.StringVar(
		&loglevelvar, "log", "",
		"Log level: debug, info or error. Overrides the config file",
	)
}

func loadConfig() (config.Config, error) {
	cfg := config.Default()

	if configvar != "" {
		var err error

		if cfg, err = config.Load(configvar); err != nil {
			return cfg, err
		}
	}

	if cyclesvar > 0 {
		cfg.Cycles = cyclesvar
	}

	if freshvar {
		cfg.FreshFlags = true
	}

	if loglevelvar != "" {
		cfg.LogLevel = loglevelvar
	}

	return cfg, cfg.Validate()
}

// loadProgram reads a word file, or assembles source when the file ends in
// .asm. The symbol table is only filled for assembled sources.
func loadProgram(path string, symtable *assembler.SymTable) ([]memory.Word, error) {
	file, err := os.Open(path)

	if err != nil {
		return nil, err
	}

	defer file.Close()

	if filepath.Ext(path) != ".asm" {
		return encoding.ParseWords(file)
	}

	if symtable != nil {
		if symtable.Source, err = filepath.Abs(path); err != nil {
			symtable.Source = ""
		}
	}

	words, errs := assembler.AssembleSource(file, symtable)

	if len(errs) > 0 {
		for _, err := range errs {
			stdlog.Println(err)
		}

		return nil, fmt.Errorf("assembling %s: %d errors", path, len(errs))
	}

	return words, nil
}

func loadSymbols(path string) (*assembler.SymTable, error) {
	file, err := os.Open(path)

	if err != nil {
		return nil, err
	}

	defer file.Close()

	var symtable assembler.SymTable

	if err := gob.NewDecoder(file).Decode(&symtable); err != nil {
		return nil, err
	}

	return &symtable, nil
}

func symbolPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".rmdb"
}

func newDevices(cfg config.Config, console *devices.Terminal) (*machine.Devices, error) {
	files := devices.NewTable()

	if cfg.FileDir != "" {
		var err error

		if files, err = devices.OpenTable(cfg.FileDir); err != nil {
			return nil, err
		}
	}

	return &machine.Devices{
		Console:    console,
		FileSystem: files,
		Programs:   devices.DirStore{Root: cfg.ProgramDir},
	}, nil
}

func attachDebugger(mc *machine.Machine, program string, symtable *assembler.SymTable) func() {
	dbg := &debugger.Debugger{
		HandleBreak: handleBreak,
		HandleRead:  handleRead,
		HandleWrite: handleWrite,
	}

	if filepath.Ext(program) == ".asm" {
		dbg.SymTable = symtable
	} else if loaded, err := loadSymbols(symbolPath(program)); err == nil {
		dbg.SymTable = loaded
	} else {
		stdlog.Println("Error loading symbol file")
		stdlog.Println(err)
	}

	var source *os.File

	if dbg.SymTable != nil && dbg.SymTable.Source != "" {
		if file, err := os.Open(dbg.SymTable.Source); err == nil {
			source = file
			dbg.Source = file
		} else {
			stdlog.Println("Error loading source file")
			stdlog.Println(err)
		}
	}

	mc.Debugger = dbg

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		for range c {
			fmt.Println()
			dbg.Break = true
		}
	}()

	return func() {
		signal.Stop(c)
		close(c)

		if source != nil {
			source.Close()
		}
	}
}

func gorvm() int {
	flag.Parse()

	if helpvar {
		fmt.Println(usage)
		flag.PrintDefaults()
		return 0
	}

	if versionvar {
		fmt.Printf("gorvm version: %s\n", buildinfo.Version(version, commit, date))
		return 0
	}

	args := flag.Args()

	if len(args) < 1 {
		stdlog.Println(usage)
		return 1
	}

	cfg, err := loadConfig()

	if err != nil {
		stdlog.Println(err)
		return 1
	}

	logger := config.CreateLogger(cfg.LogLevel)

	var symtable *assembler.SymTable

	if debugvar {
		symtable = &assembler.SymTable{
			Symbols: make(map[int]int64),
			Labels:  make(map[int]string),
		}
	}

	words, err := loadProgram(args[0], symtable)

	if err != nil {
		stdlog.Println(err)
		return 1
	}

	swap, err := cfg.Swapper()

	if err != nil {
		stdlog.Println(err)
		return 1
	}

	if closer, ok := swap.(io.Closer); ok {
		defer closer.Close()
	}

	console := devices.NewTerminal(os.Stdin, os.Stdout)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		console.Prompt = "> "
	}

	// stdin has a single buffered reader, owned by the console
	replkeyboard = console.Keyboard

	devs, err := newDevices(cfg, console)

	if err != nil {
		stdlog.Println(err)
		return 1
	}

	mm := memory.New(cfg.Memory(swap, logger))
	mc := machine.New(mm, devs, cfg.Options(), logger)

	name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))

	if _, err := mc.Load(words, append([]string{name}, args[1:]...)); err != nil {
		stdlog.Println(err)
		return 1
	}

	if debugvar {
		defer attachDebugger(mc, args[0], symtable)()
		debugREPL(mc.Debugger.(*debugger.Debugger), mc)
	}

	for !mc.Halted() {
		if err := mc.Run(cfg.Cycles); err != nil {
			var fault *machine.Fault
			var instruction *machine.InstructionError

			// instruction errors were logged by the machine
			if errors.As(err, &fault) {
				logger.Error("Program faulted",
					log.Int("pid", fault.PID),
					log.Int("pc", int(fault.PC)),
					log.Err(fault.Err))
			} else if !errors.As(err, &instruction) {
				logger.Error("Machine stopped", log.Err(err))
			}

			return 1
		}
	}

	return 0
}

func main() {
	os.Exit(gorvm())
}
