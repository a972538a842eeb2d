package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"teslacam/internal/logging"
	"teslacam/models"
)

// Speed bounds offered by the CLI
const (
	MinSpeed = 0.25
	MaxSpeed = 16.0
)

// Validate checks if the configuration is valid, reporting every problem
func (c *Config) Validate() error {
	var errors []string

	if !IsValidCommand(c.Command) {
		errors = append(errors, fmt.Sprintf("invalid command '%s', must be one of: %s",
			c.Command, strings.Join(CommandValues(), ", ")))
	}

	if c.Root == "" {
		errors = append(errors, "root folder is required")
	} else if st, err := os.Stat(c.Root); err != nil || !st.IsDir() {
		errors = append(errors, fmt.Sprintf("root folder does not exist: %s", c.Root))
	}

	if _, err := models.ParseCategory(c.Category); err != nil {
		errors = append(errors, fmt.Sprintf("invalid category '%s', must be one of: %s",
			c.Category, strings.Join(models.CategoryValues(), ", ")))
	}

	if c.GapThreshold <= 0 {
		errors = append(errors, "gap threshold must be positive")
	}

	if c.Workers < 0 {
		errors = append(errors, "workers cannot be negative (use 0 for auto-detect)")
	}
	if c.Threads < 0 {
		errors = append(errors, "threads cannot be negative")
	}

	if err := c.Log.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("log config: %v", err))
	}
	if err := c.Playback.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("playback config: %v", err))
	}
	if err := c.Grid.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("grid config: %v", err))
	}
	if err := c.Video.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("video config: %v", err))
	}

	errors = append(errors, c.validateRequest()...)

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func (c *Config) validateRequest() []string {
	var errors []string
	r := c.Request

	if c.NeedsEvent() && r.Event == "" {
		errors = append(errors, fmt.Sprintf("%s requires -event", c.Command))
	}
	if c.NeedsOutput() && r.Output == "" {
		errors = append(errors, fmt.Sprintf("%s requires -output", c.Command))
	}

	if r.At < 0 || r.At > 1 {
		errors = append(errors, "seek fraction must be between 0 and 1")
	}

	if c.Command == CommandConcat {
		if _, err := models.ParseCamera(r.Camera); err != nil {
			errors = append(errors, fmt.Sprintf("concat camera: %v", err))
		}
	}

	if c.Command == CommandTag && len(r.AddTags) == 0 && len(r.RemoveTags) == 0 && r.Notes == nil {
		errors = append(errors, "tag requires -add, -remove or -notes")
	}

	return errors
}

// Validate checks if log configuration is valid
func (lc *LogConfig) Validate() error {
	var errors []string

	if !logging.IsValidLevel(lc.Level) {
		errors = append(errors, fmt.Sprintf("unknown level '%s'", lc.Level))
	}
	if !slices.Contains(LogFormatValues(), lc.Format) {
		errors = append(errors, fmt.Sprintf("format must be one of: %s", strings.Join(LogFormatValues(), ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, ", "))
	}
	return nil
}

// Validate checks if playback configuration is valid
func (pc *PlaybackConfig) Validate() error {
	var errors []string

	if pc.TickInterval <= 0 {
		errors = append(errors, "tick interval must be positive")
	}
	if pc.Speed < MinSpeed || pc.Speed > MaxSpeed {
		errors = append(errors, fmt.Sprintf("speed must be between %g and %g", MinSpeed, MaxSpeed))
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, ", "))
	}
	return nil
}

// Validate checks if grid configuration is valid
func (gc *GridConfig) Validate() error {
	if gc.CellWidth <= 0 || gc.CellHeight <= 0 {
		return fmt.Errorf("cell size must be positive")
	}
	if gc.CellWidth%2 != 0 || gc.CellHeight%2 != 0 {
		return fmt.Errorf("cell size must be even, got %dx%d", gc.CellWidth, gc.CellHeight)
	}
	return nil
}

// Validate checks if video configuration is valid
func (vc *VideoConfig) Validate() error {
	var errors []string

	if vc.Codec == "" && vc.HardwareEncoder == "" {
		errors = append(errors, "codec is required")
	}

	if vc.CRF < 0 || vc.CRF > 51 {
		errors = append(errors, "CRF must be between 0 and 51")
	}

	if vc.Preset == "" {
		errors = append(errors, "preset is required")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, ", "))
	}
	return nil
}

// ParseCellSize parses "WIDTHxHEIGHT" (e.g., "480x270")
func ParseCellSize(s string) (width, height int, err error) {
	parts := strings.Split(s, "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("cell size must be in format WIDTHxHEIGHT (e.g., 480x270)")
	}

	_, err1 := fmt.Sscanf(parts[0], "%d", &width)
	_, err2 := fmt.Sscanf(parts[1], "%d", &height)
	if err1 != nil || err2 != nil || width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid cell size %q", s)
	}
	return width, height, nil
}
