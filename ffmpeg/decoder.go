// Package ffmpeg runs ffmpeg subprocesses: segment decoders that stream raw
// RGBA frames, the composite encoder sink, and progress parsing.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"teslacam/command"
	"teslacam/command/decode"
	"teslacam/ffprobe"
	"teslacam/models"
	"teslacam/track"
)

// killGrace bounds how long Close waits for pipes after killing ffmpeg.
const killGrace = 5 * time.Second

// Opener opens subprocess decoders, caching probe results by path, size
// and modification time.
type Opener struct {
	Threads int

	mu    sync.Mutex
	cache map[string]probeEntry
	probe func(ctx context.Context, path string) (models.StreamInfo, error)
}

type probeEntry struct {
	size    int64
	modTime time.Time
	info    models.StreamInfo
}

// NewOpener creates an opener that probes with ffprobe.
func NewOpener() *Opener {
	return &Opener{
		cache: make(map[string]probeEntry),
		probe: ffprobe.ProbeVideo,
	}
}

// Open probes path and returns a decoder positioned at frame 0. No ffmpeg
// process is started until the first ReadFrame.
func (o *Opener) Open(ctx context.Context, path string) (track.Decoder, error) {
	info, err := o.streamInfo(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Decoder{
		ctx:       ctx,
		path:      path,
		info:      info,
		threads:   o.Threads,
		frameSize: info.Width * info.Height * 4,
	}, nil
}

func (o *Opener) streamInfo(ctx context.Context, path string) (models.StreamInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return models.StreamInfo{}, err
	}

	o.mu.Lock()
	entry, ok := o.cache[path]
	o.mu.Unlock()
	if ok && entry.size == st.Size() && entry.modTime.Equal(st.ModTime()) {
		return entry.info, nil
	}

	info, err := o.probe(ctx, path)
	if err != nil {
		return models.StreamInfo{}, err
	}

	o.mu.Lock()
	o.cache[path] = probeEntry{size: st.Size(), modTime: st.ModTime(), info: info}
	o.mu.Unlock()
	return info, nil
}

// Decoder streams raw RGBA frames of one segment from an ffmpeg subprocess.
type Decoder struct {
	ctx       context.Context
	path      string
	info      models.StreamInfo
	threads   int
	frameSize int

	start int // local frame the next process starts at
	pos   int

	cmd    *exec.Cmd
	cancel context.CancelFunc
	reader *bufio.Reader
	stderr bytes.Buffer
}

// Info returns the probed stream parameters.
func (d *Decoder) Info() models.StreamInfo {
	return d.info
}

// Seek stops any running process; the next ReadFrame restarts decoding at frame.
func (d *Decoder) Seek(frame int) error {
	if frame < 0 || (d.info.Frames > 0 && frame >= d.info.Frames) {
		return fmt.Errorf("frame %d out of range [0,%d)", frame, d.info.Frames)
	}
	if err := d.stop(); err != nil {
		return err
	}
	d.start = frame
	d.pos = frame
	return nil
}

// ReadFrame returns the next frame, or io.EOF at the end of the segment.
// A truncated final frame also reads as io.EOF.
func (d *Decoder) ReadFrame() (*image.RGBA, error) {
	if d.frameSize <= 0 {
		return nil, fmt.Errorf("invalid frame size for %s", d.path)
	}
	if d.cmd == nil {
		if err := d.startProcess(); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, d.frameSize)
	if _, err := io.ReadFull(d.reader, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame %d of %s: %w", d.pos, d.path, err)
	}
	d.pos++

	return &image.RGBA{
		Pix:    buf,
		Stride: d.info.Width * 4,
		Rect:   image.Rect(0, 0, d.info.Width, d.info.Height),
	}, nil
}

// builder decodes from the current start frame up to the probed frame
// count, so the process never emits more frames than the track expects.
func (d *Decoder) builder() *decode.DecodeBuilder {
	fps := d.info.FPS
	if fps <= 0 {
		fps = track.DefaultFPS
	}
	b := decode.NewDecodeBuilder(d.path).
		SetStartFrame(d.start, fps).
		SetThreads(d.threads)
	if d.info.Frames > 0 {
		b.SetMaxFrames(d.info.Frames - d.start)
	}
	return b
}

func (d *Decoder) startProcess() error {
	builder := d.builder()
	if err := builder.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(d.ctx)
	cmd := exec.CommandContext(ctx, command.Binary, builder.BuildArgs()...)
	cmd.WaitDelay = killGrace
	d.stderr.Reset()
	cmd.Stderr = &d.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	d.cmd = cmd
	d.cancel = cancel
	d.reader = bufio.NewReaderSize(stdout, d.frameSize*2)
	return nil
}

// stop kills the running process and waits for it.
func (d *Decoder) stop() error {
	if d.cmd == nil {
		return nil
	}
	d.cancel()
	err := d.cmd.Wait()
	d.cmd = nil
	d.cancel = nil
	d.reader = nil

	// Killed by cancel is the normal way out.
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("ffmpeg decode %s: %w (%s)", d.path, err, strings.TrimSpace(d.stderr.String()))
	}
	return nil
}

// Close releases the subprocess. It is safe to call more than once.
func (d *Decoder) Close() error {
	return d.stop()
}
