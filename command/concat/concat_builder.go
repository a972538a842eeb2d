// Package concat builds ffmpeg arguments that join segment files of one
// camera with the concat demuxer, without re-encoding.
package concat

import (
	"fmt"
	"strings"

	"teslacam/command"
)

// ConcatBuilder assembles a concat-demuxer stream copy.
type ConcatBuilder struct {
	listPath   string // Concat list file ("file '<path>'" per line)
	outputPath string
	progress   bool
}

// NewConcatBuilder creates a builder reading listPath and writing outputPath.
func NewConcatBuilder(listPath, outputPath string) *ConcatBuilder {
	return &ConcatBuilder{listPath: listPath, outputPath: outputPath}
}

// EnableProgress asks ffmpeg for key=value progress blocks on stdout.
func (c *ConcatBuilder) EnableProgress() *ConcatBuilder {
	c.progress = true
	return c
}

// BuildArgs constructs the ffmpeg concat arguments
func (c *ConcatBuilder) BuildArgs() []string {
	args := command.GlobalArgs()
	if c.progress {
		args = append(args, "-progress", command.StdoutPipe, "-nostats")
	}
	args = append(args,
		"-f", "concat",
		"-safe", "0",
		"-i", c.listPath,
		"-c", "copy", // Copy without re-encoding
		"-movflags", "+faststart",
		"-y", c.outputPath,
	)
	return args
}

// Validate checks both paths are set.
func (c *ConcatBuilder) Validate() error {
	if strings.TrimSpace(c.listPath) == "" {
		return fmt.Errorf("concat list path cannot be empty")
	}
	if strings.TrimSpace(c.outputPath) == "" {
		return fmt.Errorf("output path cannot be empty")
	}
	return nil
}

// DryRun returns the command that would be executed without running it
func (c *ConcatBuilder) DryRun() (string, error) {
	return command.DryRun(c)
}

// GetTaskType returns the task type identifier
func (c *ConcatBuilder) GetTaskType() command.TaskType {
	return command.TaskTypeConcat
}

// GetInputPath returns the concat list path
func (c *ConcatBuilder) GetInputPath() string {
	return c.listPath
}

// GetOutputPath returns the output file path
func (c *ConcatBuilder) GetOutputPath() string {
	return c.outputPath
}

// ListLine renders one concat list entry, escaping single quotes.
func ListLine(path string) string {
	return fmt.Sprintf("file '%s'\n", strings.ReplaceAll(path, "'", "'\\''"))
}
