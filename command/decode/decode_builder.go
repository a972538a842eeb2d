// Package decode builds ffmpeg arguments that decode one segment file into
// raw RGBA frames on stdout.
package decode

import (
	"fmt"
	"strings"

	"teslacam/command"
	"teslacam/internal/timeutil"
)

// PixelFormat is the raw frame layout written to stdout: 4 bytes per pixel.
const PixelFormat = "rgba"

// DecodeBuilder assembles a rawvideo decode of a single segment.
type DecodeBuilder struct {
	inputPath string
	start     float64 // Seconds into the segment, 0 for the beginning
	maxFrames int     // 0 means until end of stream
	threads   int
}

// NewDecodeBuilder creates a decode builder for inputPath.
func NewDecodeBuilder(inputPath string) *DecodeBuilder {
	return &DecodeBuilder{inputPath: inputPath}
}

// SetStart seeks the input before decoding. Negative values are treated as 0.
func (d *DecodeBuilder) SetStart(seconds float64) *DecodeBuilder {
	if seconds < 0 {
		seconds = 0
	}
	d.start = seconds
	return d
}

// SetStartFrame seeks so that the first decoded frame is frame at fps.
// The seek lands half a frame early and ffmpeg drops everything before it.
func (d *DecodeBuilder) SetStartFrame(frame int, fps float64) *DecodeBuilder {
	return d.SetStart(timeutil.FrameSeekSeconds(frame, fps))
}

// SetMaxFrames limits the number of decoded frames.
func (d *DecodeBuilder) SetMaxFrames(n int) *DecodeBuilder {
	d.maxFrames = n
	return d
}

// SetThreads limits decoder threads (0 lets ffmpeg decide).
func (d *DecodeBuilder) SetThreads(n int) *DecodeBuilder {
	d.threads = n
	return d
}

// BuildArgs constructs the ffmpeg decode arguments.
//
// -ss is placed before -i so ffmpeg seeks the demuxer and then discards
// frames up to the exact timestamp.
func (d *DecodeBuilder) BuildArgs() []string {
	args := command.GlobalArgs()

	if d.threads > 0 {
		args = append(args, "-threads", fmt.Sprintf("%d", d.threads))
	}
	if d.start > 0 {
		args = append(args, "-ss", timeutil.FormatSeconds(d.start))
	}

	args = append(args,
		"-i", d.inputPath,
		"-map", "0:v:0",
		"-an", "-sn",
	)

	if d.maxFrames > 0 {
		args = append(args, "-frames:v", fmt.Sprintf("%d", d.maxFrames))
	}

	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", PixelFormat,
		command.StdoutPipe,
	)
	return args
}

// Validate checks an input path is set.
func (d *DecodeBuilder) Validate() error {
	if strings.TrimSpace(d.inputPath) == "" {
		return fmt.Errorf("input path cannot be empty")
	}
	if d.maxFrames < 0 {
		return fmt.Errorf("max frames cannot be negative")
	}
	return nil
}

// DryRun returns the command that would be executed without running it
func (d *DecodeBuilder) DryRun() (string, error) {
	return command.DryRun(d)
}

// GetTaskType returns the task type identifier
func (d *DecodeBuilder) GetTaskType() command.TaskType {
	return command.TaskTypeDecode
}

// GetInputPath returns the segment path
func (d *DecodeBuilder) GetInputPath() string {
	return d.inputPath
}

// GetOutputPath returns stdout
func (d *DecodeBuilder) GetOutputPath() string {
	return command.StdoutPipe
}
