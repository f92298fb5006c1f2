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

// Package config loads machine settings and builds the shared logger.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lassandro/gorvm/pkg/machine"
	"github.com/lassandro/gorvm/pkg/memory"
	"github.com/retroenv/retrogolib/log"
)

const (
	SWAP_MEMORY  = "memory"
	SWAP_DISCARD = "discard"
	SWAP_MMAP    = "mmap"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Cycles     int    `json:"cycles"`
	Frames     int    `json:"frames"`
	Pages      int    `json:"pages"`
	FreshFlags bool   `json:"fresh_flags"`
	Swap       string `json:"swap"`
	SwapFile   string `json:"swap_file"`
	ProgramDir string `json:"program_dir"`
	FileDir    string `json:"file_dir"`
	LogLevel   string `json:"log_level"`
}

func Default() Config {
	return Config{
		Cycles:     machine.DEFAULT_CYCLES,
		Frames:     memory.DEFAULT_FRAMES,
		Pages:      memory.DEFAULT_PAGES,
		Swap:       SWAP_MEMORY,
		ProgramDir: ".",
		LogLevel:   "error",
	}
}

// Load reads a JSON config file on top of the defaults. Keys missing from
// the file keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	file, err := os.Open(path)

	if err != nil {
		return cfg, err
	}

	defer file.Close()

	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

func (cfg Config) Validate() error {
	if cfg.Cycles <= 0 {
		return fmt.Errorf("%w: cycles must be positive, got %d", ErrInvalidConfig, cfg.Cycles)
	}

	if cfg.Frames <= 0 {
		return fmt.Errorf("%w: frames must be positive, got %d", ErrInvalidConfig, cfg.Frames)
	}

	if cfg.Pages <= 0 {
		return fmt.Errorf("%w: pages must be positive, got %d", ErrInvalidConfig, cfg.Pages)
	}

	switch cfg.Swap {
	case SWAP_MEMORY, SWAP_DISCARD:
	case SWAP_MMAP:
		if cfg.SwapFile == "" {
			return fmt.Errorf("%w: mmap swap needs a swap_file", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown swap kind %q", ErrInvalidConfig, cfg.Swap)
	}

	return validLevel(cfg.LogLevel)
}

// Swapper opens the backing store named by the config. An mmap swap must be
// closed by the caller.
func (cfg Config) Swapper() (memory.Swapper, error) {
	switch cfg.Swap {
	case SWAP_MEMORY, "":
		return memory.NewMemorySwap(), nil
	case SWAP_DISCARD:
		return memory.DiscardSwap{}, nil
	case SWAP_MMAP:
		swap, err := memory.OpenMmapSwap(cfg.SwapFile, cfg.Pages)

		if err != nil {
			return nil, err
		}

		return swap, nil
	default:
		return nil, fmt.Errorf("%w: unknown swap kind %q", ErrInvalidConfig, cfg.Swap)
	}
}

// Memory builds the memory manager config, logging through logger.
func (cfg Config) Memory(swap memory.Swapper, logger *log.Logger) memory.Config {
	return memory.Config{
		Frames: cfg.Frames,
		Pages:  cfg.Pages,
		Swap:   swap,
		Logger: logger,
	}
}

func (cfg Config) Options() machine.Options {
	return machine.Options{
		Cycles:     cfg.Cycles,
		FreshFlags: cfg.FreshFlags,
	}
}

var levels = map[string]bool{
	"debug": true, "info": true, "error": true, "": true,
}

func validLevel(level string) error {
	if !levels[strings.ToLower(level)] {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, level)
	}

	return nil
}

// CreateLogger creates a logger with appropriate settings. Unknown levels
// fall back to errors only.
func CreateLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()

	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = log.DebugLevel
	case "info":
		cfg.Level = log.InfoLevel
	default:
		cfg.Level = log.ErrorLevel
	}

	return log.NewWithConfig(cfg)
}
