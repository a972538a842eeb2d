// Package command provides the Command interface shared by the ffmpeg
// argument builders (decode, encode, concat).
//
// Builders only assemble arguments. Processes are started by the ffmpeg and
// concatenator packages, which need streaming access to stdin/stdout.
package command

import (
	"fmt"
	"strings"
)

// Binary is the ffmpeg executable looked up on PATH.
const Binary = "ffmpeg"

// TaskType represents the kind of ffmpeg invocation.
type TaskType string

const (
	TaskTypeDecode TaskType = "decode" // Segment file to raw RGBA frames on stdout
	TaskTypeEncode TaskType = "encode" // Raw RGBA frames on stdin to a video file
	TaskTypeConcat TaskType = "concat" // Stream-copy join of segment files
)

// Pipe targets used in place of file paths.
const (
	StdinPipe  = "pipe:0"
	StdoutPipe = "pipe:1"
)

// Command represents an ffmpeg command that can be built or previewed.
//
// Example usage:
//
//	cmd := decode.NewDecodeBuilder("2019-05-21_10-15-34-front.mp4").
//		SetStart(12.5)
//
//	// Preview the command
//	line, _ := cmd.DryRun()
//
//	// Start it
//	proc := exec.CommandContext(ctx, command.Binary, cmd.BuildArgs()...)
type Command interface {
	// BuildArgs constructs and returns the ffmpeg command arguments.
	// The returned slice is suitable for exec.Command("ffmpeg", args...).
	BuildArgs() []string

	// Validate reports whether the builder has enough to run.
	Validate() error

	// DryRun returns the ffmpeg command as a string without executing it.
	DryRun() (string, error)

	// GetTaskType returns the type of task.
	GetTaskType() TaskType

	// GetInputPath returns the primary input, or StdinPipe.
	GetInputPath() string

	// GetOutputPath returns the output file, or StdoutPipe.
	GetOutputPath() string
}

// GlobalArgs are prepended to every invocation: quiet banner, errors only,
// and never read the terminal.
func GlobalArgs() []string {
	return []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
}

// DryRun renders a command line for logging after validating cmd.
func DryRun(cmd Command) (string, error) {
	if err := cmd.Validate(); err != nil {
		return "", fmt.Errorf("invalid %s command: %w", cmd.GetTaskType(), err)
	}
	return Binary + " " + strings.Join(cmd.BuildArgs(), " "), nil
}
