// Package tracktest provides in-memory decoders for tests of code built on
// track.TrackSet.
package tracktest

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"

	"teslacam/models"
	"teslacam/track"
)

// FPS and frame size reported by every fake segment.
const (
	FPS    = 36.0
	Width  = 8
	Height = 6
)

// Opener serves synthetic segments by path. Each frame's first pixel holds
// the local frame index and its second the camera index.
type Opener struct {
	mu     sync.Mutex
	frames map[string]int
	cams   map[string]models.Camera
	open   int
}

// NewOpener creates an empty opener.
func NewOpener() *Opener {
	return &Opener{frames: map[string]int{}, cams: map[string]models.Camera{}}
}

// Add registers a segment with n frames.
func (o *Opener) Add(path string, cam models.Camera, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frames[path] = n
	o.cams[path] = cam
}

// Open implements track.Opener.
func (o *Opener) Open(_ context.Context, path string) (track.Decoder, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	n, ok := o.frames[path]
	if !ok {
		return nil, fmt.Errorf("%s: no such file", path)
	}
	o.open++
	return &decoder{opener: o, frames: n, cam: o.cams[path]}, nil
}

// OpenDecoders returns how many decoders are currently open.
func (o *Opener) OpenDecoders() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open
}

// Event builds an event with the given per-camera segment frame counts and
// registers its segments with o.
func (o *Opener) Event(id string, counts map[models.Camera][]int) *models.Event {
	ev := &models.Event{ID: id, Segments: map[models.Camera][]models.Segment{}}
	for cam, segs := range counts {
		for i, n := range segs {
			path := fmt.Sprintf("%s/%s/%d", id, cam, i)
			o.Add(path, cam, n)
			ev.Segments[cam] = append(ev.Segments[cam], models.Segment{Path: path, Camera: cam})
		}
	}
	return ev
}

type decoder struct {
	opener *Opener
	frames int
	cam    models.Camera
	pos    int
	closed bool
}

func (d *decoder) Info() models.StreamInfo {
	return models.StreamInfo{Frames: d.frames, FPS: FPS, Width: Width, Height: Height}
}

func (d *decoder) Seek(frame int) error {
	d.pos = frame
	return nil
}

func (d *decoder) ReadFrame() (*image.RGBA, error) {
	if d.pos >= d.frames {
		return nil, io.EOF
	}
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	img.Pix[0] = byte(d.pos)
	img.Pix[1] = byte(d.cam)
	img.Pix[3] = 255
	d.pos++
	return img, nil
}

func (d *decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.opener.mu.Lock()
	d.opener.open--
	d.opener.mu.Unlock()
	return nil
}
