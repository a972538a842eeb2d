// Package track presents one camera's ordered segment files as a single
// seekable frame stream, and groups up to four such streams into a TrackSet.
package track

import (
	"context"
	"errors"
	"image"

	"teslacam/models"
)

var (
	// ErrTrackUnavailable means no segment of a track could be opened or
	// every segment reported zero frames.
	ErrTrackUnavailable = errors.New("track unavailable")

	// ErrNoCameras means every camera of an event failed to load.
	ErrNoCameras = errors.New("no cameras available")

	// ErrExhausted is the normal end-of-track signal.
	ErrExhausted = errors.New("track exhausted")

	// ErrNoFrame means one frame failed to decode and was skipped.
	ErrNoFrame = errors.New("no frame")
)

// Decoder reads frames from one segment file.
//
// ReadFrame returns io.EOF at the end of the segment. Seek positions the
// decoder so the next ReadFrame returns the given zero-based local frame.
type Decoder interface {
	Info() models.StreamInfo
	Seek(frame int) error
	ReadFrame() (*image.RGBA, error)
	Close() error
}

// Opener opens decoders for segment files. Opening must be cheap enough to
// probe every segment of an event when a track is built.
type Opener interface {
	Open(ctx context.Context, path string) (Decoder, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, path string) (Decoder, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, path string) (Decoder, error) {
	return f(ctx, path)
}
