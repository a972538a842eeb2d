// Package config loads viewer settings from defaults, a YAML file and
// command-line flags, in increasing priority.
package config

import (
	"os"
	"path/filepath"
	"slices"
	"time"
)

// Subcommands
const (
	CommandList      = "list"
	CommandPlay      = "play"
	CommandExport    = "export"
	CommandExportAll = "export-all"
	CommandConcat    = "concat"
	CommandSnapshot  = "snapshot"
	CommandTag       = "tag"
)

// Config holds all viewer configuration options
type Config struct {
	// Library
	Root         string        `yaml:"root"`          // TeslaCam folder, or any folder of clips
	Category     string        `yaml:"category"`      // all, saved, sentry, recent
	GapThreshold time.Duration `yaml:"gap_threshold"` // max gap between segments of one event
	MetadataDir  string        `yaml:"metadata_dir"`  // tag/notes store; empty = in-memory

	// Ambient
	Log         LogConfig `yaml:"log"`
	MetricsAddr string    `yaml:"metrics_addr"` // empty = no /metrics endpoint

	// Playback settings
	Playback PlaybackConfig `yaml:"playback"`

	// Composite grid
	Grid GridConfig `yaml:"grid"`

	// Encoding settings for export
	Video VideoConfig `yaml:"video"`

	// Execution settings
	Workers int  `yaml:"workers"` // concurrent exports for export-all, 0 = auto-detect
	Threads int  `yaml:"threads"` // ffmpeg decoder threads per segment, 0 = ffmpeg default
	Strict  bool `yaml:"strict"`  // concat fails on missing segments or gaps
	DryRun  bool `yaml:"dry_run"` // print configuration and exit

	SaveTo string `yaml:"-"` // write the effective configuration here and exit

	// Per-invocation request, never read from file
	Command string  `yaml:"-"`
	Request Request `yaml:"-"`
}

// Request carries the arguments of one subcommand.
type Request struct {
	Event      string   // event index from `list` or stable event ID
	Output     string   // output file, or directory for export-all
	At         float64  // seek fraction for play and snapshot
	Camera     string   // camera for concat
	Filter     string   // tag filter for list and export-all
	AddTags    []string // tag: tags to add
	RemoveTags []string // tag: tags to remove
	Notes      *string  // tag: replacement notes, nil = unchanged
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// PlaybackConfig holds headless playback settings
type PlaybackConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"` // scheduler polling period
	Speed        float64       `yaml:"speed"`         // playback speed multiplier
}

// GridConfig holds composite cell size
type GridConfig struct {
	CellWidth  int `yaml:"cell_width"`
	CellHeight int `yaml:"cell_height"`
}

// VideoConfig holds export encoding settings
type VideoConfig struct {
	Codec           string `yaml:"codec"`            // e.g., "libx264", "libx265"
	CRF             int    `yaml:"crf"`              // Constant Rate Factor (0-51, lower = better quality)
	Preset          string `yaml:"preset"`           // e.g., "ultrafast", "medium", "slow"
	HardwareEncoder string `yaml:"hardware_encoder"` // e.g., "h264_nvenc"; overrides codec, crf and pixel format
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Root:         ".",
		Category:     "all",
		GapThreshold: 15 * time.Minute,
		MetadataDir:  defaultMetadataDir(),

		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},

		Playback: PlaybackConfig{
			TickInterval: 10 * time.Millisecond,
			Speed:        1,
		},

		Grid: GridConfig{
			CellWidth:  480,
			CellHeight: 270,
		},

		Video: VideoConfig{
			Codec:  "libx264",
			CRF:    23,
			Preset: "medium",
		},

		Workers: 0, // Auto-detect
		Strict:  false,

		Request: Request{Camera: "front"},
	}
}

func defaultMetadataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".teslacam", "metadata")
}

// Copy creates a deep copy of the config
func (c *Config) Copy() *Config {
	cp := *c
	cp.Request.AddTags = slices.Clone(c.Request.AddTags)
	cp.Request.RemoveTags = slices.Clone(c.Request.RemoveTags)
	if c.Request.Notes != nil {
		notes := *c.Request.Notes
		cp.Request.Notes = &notes
	}
	return &cp
}

// CommandValues returns valid subcommands
func CommandValues() []string {
	return []string{CommandList, CommandPlay, CommandExport, CommandExportAll, CommandConcat, CommandSnapshot, CommandTag}
}

// IsValidCommand checks if command is a known subcommand
func IsValidCommand(command string) bool {
	return slices.Contains(CommandValues(), command)
}

// LogFormatValues returns valid log formats
func LogFormatValues() []string {
	return []string{"json", "console"}
}

// NeedsEvent reports whether the command operates on one selected event.
func (c *Config) NeedsEvent() bool {
	switch c.Command {
	case CommandPlay, CommandExport, CommandConcat, CommandSnapshot, CommandTag:
		return true
	}
	return false
}

// NeedsOutput reports whether the command writes a file or directory.
func (c *Config) NeedsOutput() bool {
	switch c.Command {
	case CommandExport, CommandExportAll, CommandConcat, CommandSnapshot:
		return true
	}
	return false
}
