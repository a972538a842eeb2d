package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"

	"teslacam/command"
	"teslacam/command/encode"
	"teslacam/internal/logging"
)

// EncoderSink writes composite frames to an ffmpeg process that encodes
// them into one output file.
type EncoderSink struct {
	width, height int
	cmd           *exec.Cmd
	cancel        context.CancelFunc
	stdin         io.WriteCloser
	stderr        bytes.Buffer
	written       int
	closed        bool
}

// NewEncoderSink validates builder and starts ffmpeg. The builder must carry
// the frame size and rate.
func NewEncoderSink(ctx context.Context, builder *encode.EncodeBuilder, width, height int) (*EncoderSink, error) {
	builder.SetSize(width, height)
	if err := builder.Validate(); err != nil {
		return nil, fmt.Errorf("invalid encoder settings: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, command.Binary, builder.BuildArgs()...)
	cmd.WaitDelay = killGrace

	e := &EncoderSink{width: width, height: height, cmd: cmd, cancel: cancel}
	cmd.Stderr = &e.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	e.stdin = stdin

	line, _ := builder.DryRun()
	log := logging.WithComponent("encoder")
	log.Debug().Str("cmd", line).Msg("encoder started")
	return e, nil
}

// WriteFrame writes one frame. The frame must match the sink's size.
func (e *EncoderSink) WriteFrame(img *image.RGBA) error {
	if e.closed {
		return fmt.Errorf("encoder closed")
	}
	b := img.Bounds()
	if b.Dx() != e.width || b.Dy() != e.height {
		return fmt.Errorf("frame size %dx%d does not match encoder %dx%d", b.Dx(), b.Dy(), e.width, e.height)
	}

	rowBytes := e.width * 4
	if img.Stride == rowBytes && b.Min == (image.Point{}) {
		if _, err := e.stdin.Write(img.Pix[:rowBytes*e.height]); err != nil {
			return e.writeErr(err)
		}
	} else {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			start := img.PixOffset(b.Min.X, y)
			if _, err := e.stdin.Write(img.Pix[start : start+rowBytes]); err != nil {
				return e.writeErr(err)
			}
		}
	}
	e.written++
	return nil
}

func (e *EncoderSink) writeErr(err error) error {
	return fmt.Errorf("write frame %d: %w (%s)", e.written, err, strings.TrimSpace(e.stderr.String()))
}

// Written returns the number of frames accepted so far.
func (e *EncoderSink) Written() int {
	return e.written
}

// Close flushes stdin and waits for ffmpeg to finish the file.
func (e *EncoderSink) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	defer e.cancel()

	closeErr := e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg encode failed: %w (%s)", err, strings.TrimSpace(e.stderr.String()))
	}
	return closeErr
}

// Abort kills ffmpeg without finishing the file.
func (e *EncoderSink) Abort() {
	if e.closed {
		return
	}
	e.closed = true
	e.cancel()
	_ = e.stdin.Close()
	_ = e.cmd.Wait()
}
