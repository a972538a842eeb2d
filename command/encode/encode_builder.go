// Package encode builds ffmpeg arguments that encode raw RGBA frames read
// from stdin into a single video file.
package encode

import (
	"fmt"
	"strconv"
	"strings"

	"teslacam/command"
)

// InputPixelFormat is the raw layout expected on stdin.
const InputPixelFormat = "rgba"

// EncodeBuilder assembles a rawvideo-to-file encode.
type EncodeBuilder struct {
	outputPath string

	width, height int
	frameRate     float64

	// Encoding settings
	codec       string
	encoder     string // Hardware encoder (e.g., "h264_nvenc"); disables crf and pix_fmt
	crf         int
	preset      string
	pixelFormat string

	extraArgs []string
}

// NewEncodeBuilder creates an encode builder with H.264 defaults.
func NewEncodeBuilder(outputPath string) *EncodeBuilder {
	return &EncodeBuilder{
		outputPath:  outputPath,
		codec:       "libx264",
		crf:         23,
		preset:      "medium",
		pixelFormat: "yuv420p",
	}
}

// SetSize sets the frame size of the raw input.
func (e *EncodeBuilder) SetSize(width, height int) *EncodeBuilder {
	e.width, e.height = width, height
	return e
}

// SetFrameRate sets the input and output frame rate.
func (e *EncodeBuilder) SetFrameRate(fps float64) *EncodeBuilder {
	e.frameRate = fps
	return e
}

// SetCodec sets the software codec (e.g., "libx264", "libx265")
func (e *EncodeBuilder) SetCodec(codec string) *EncodeBuilder {
	e.codec = codec
	return e
}

// SetHardwareEncoder selects a hardware encoder directly (e.g., "h264_nvenc", "h264_videotoolbox")
func (e *EncodeBuilder) SetHardwareEncoder(encoder string) *EncodeBuilder {
	e.encoder = encoder
	return e
}

// SetCRF sets the Constant Rate Factor (0-51, lower is better quality)
func (e *EncodeBuilder) SetCRF(crf int) *EncodeBuilder {
	e.crf = crf
	return e
}

// SetPreset sets the encoding preset (ultrafast ... veryslow)
func (e *EncodeBuilder) SetPreset(preset string) *EncodeBuilder {
	e.preset = preset
	return e
}

// SetPixelFormat sets the output pixel format (e.g., "yuv420p")
func (e *EncodeBuilder) SetPixelFormat(pixfmt string) *EncodeBuilder {
	e.pixelFormat = pixfmt
	return e
}

// AddExtraArgs adds custom output arguments before the output path
func (e *EncodeBuilder) AddExtraArgs(args ...string) *EncodeBuilder {
	e.extraArgs = append(e.extraArgs, args...)
	return e
}

// FrameSize returns the number of bytes of one raw input frame.
func (e *EncodeBuilder) FrameSize() int {
	return e.width * e.height * 4
}

// BuildArgs constructs the ffmpeg arguments for encoding
func (e *EncodeBuilder) BuildArgs() []string {
	args := []string{"-hide_banner", "-loglevel", "error"}

	// Raw input description
	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", InputPixelFormat,
		"-s", fmt.Sprintf("%dx%d", e.width, e.height),
		"-r", formatRate(e.frameRate),
		"-i", command.StdinPipe,
		"-an",
	)

	if e.encoder != "" {
		args = append(args, "-c:v", e.encoder)
	} else {
		args = append(args, "-c:v", e.codec)
		if e.crf >= 0 && e.crf <= 51 {
			args = append(args, "-crf", strconv.Itoa(e.crf))
		}
	}

	if e.preset != "" {
		args = append(args, "-preset", e.preset)
	}

	if e.pixelFormat != "" && e.encoder == "" {
		args = append(args, "-pix_fmt", e.pixelFormat)
	}

	// Index at the front so the file plays while downloading
	args = append(args, "-movflags", "+faststart")
	args = append(args, e.extraArgs...)
	args = append(args, "-y", e.outputPath)

	return args
}

func formatRate(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}

// Validate checks size, rate and output are usable.
func (e *EncodeBuilder) Validate() error {
	var problems []string
	if strings.TrimSpace(e.outputPath) == "" {
		problems = append(problems, "output path cannot be empty")
	}
	if e.width <= 0 || e.height <= 0 {
		problems = append(problems, fmt.Sprintf("invalid frame size %dx%d", e.width, e.height))
	}
	if e.width%2 != 0 || e.height%2 != 0 {
		problems = append(problems, "frame size must be even for yuv420p")
	}
	if e.frameRate <= 0 {
		problems = append(problems, fmt.Sprintf("invalid frame rate %v", e.frameRate))
	}
	if e.encoder == "" && e.codec == "" {
		problems = append(problems, "codec cannot be empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// DryRun returns the command that would be executed without running it
func (e *EncodeBuilder) DryRun() (string, error) {
	return command.DryRun(e)
}

// GetTaskType returns the task type identifier
func (e *EncodeBuilder) GetTaskType() command.TaskType {
	return command.TaskTypeEncode
}

// GetInputPath returns stdin
func (e *EncodeBuilder) GetInputPath() string {
	return command.StdinPipe
}

// GetOutputPath returns the output file path
func (e *EncodeBuilder) GetOutputPath() string {
	return e.outputPath
}
