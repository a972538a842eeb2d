package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
)

// ErrNoCommand is returned when args do not start with a subcommand.
var ErrNoCommand = errors.New("no command given")

// LoadConfig loads configuration from args (without the program name) with
// priority: CLI flags > Config file > Defaults
func LoadConfig(args []string) (*Config, error) {
	if len(args) > 0 && isHelp(args[0]) {
		return nil, flag.ErrHelp
	}
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return nil, ErrNoCommand
	}
	command, args := args[0], args[1:]

	cfg := DefaultConfig()

	configPath := configFlag(args)
	if configPath == "" {
		configPath = FindConfigFile()
	}

	if configPath != "" {
		fileCfg, err := LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg = fileCfg
	}

	if err := cfg.MergeFromFlags(args); err != nil {
		return nil, err
	}
	cfg.Command = command

	if cfg.Workers == 0 {
		cfg.Workers = AutoWorkers()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// AutoWorkers picks a concurrent export count: each export runs up to four
// decoders and one encoder.
func AutoWorkers() int {
	return max(runtime.NumCPU()/4, 1)
}

// configFlag extracts -config / --config / -config=path without a full parse.
func configFlag(args []string) string {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func isHelp(arg string) bool {
	switch arg {
	case "-h", "-help", "--help", "help":
		return true
	}
	return false
}

// Usage prints the command-line help to stderr.
func Usage() {
	printUsage(os.Stderr)
}
