package track

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sort"

	"github.com/rs/zerolog"

	"teslacam/internal/logging"
	"teslacam/internal/metrics"
	"teslacam/models"
)

// SegmentTrack is a virtual concatenation of one camera's segment files.
//
// offsets[i] is the global index of segment i's first frame and
// offsets[len(paths)] is the total. Missing or unreadable segments count as
// zero frames.
type SegmentTrack struct {
	ctx    context.Context
	camera models.Camera
	opener Opener
	log    zerolog.Logger

	paths   []string
	frames  []int
	offsets []int
	info    models.StreamInfo

	cur   int // index of the segment holding the position, len(paths) when exhausted
	dec   Decoder
	local int // next frame to read within cur
}

// Open probes every segment for its frame count, then opens the first
// non-empty segment for decoding.
func Open(ctx context.Context, camera models.Camera, opener Opener, paths []string) (*SegmentTrack, error) {
	t := &SegmentTrack{
		ctx:     ctx,
		camera:  camera,
		opener:  opener,
		log:     logging.WithComponent("track").With().Str("camera", camera.String()).Logger(),
		paths:   append([]string(nil), paths...),
		frames:  make([]int, len(paths)),
		offsets: make([]int, len(paths)+1),
		cur:     -1,
	}

	for i, p := range t.paths {
		t.frames[i] = t.probe(p)
		t.offsets[i+1] = t.offsets[i] + t.frames[i]
	}

	if t.Total() == 0 {
		return nil, fmt.Errorf("%s: %w", camera, ErrTrackUnavailable)
	}
	if err := t.advance(); err != nil {
		return nil, fmt.Errorf("%s: %w", camera, ErrTrackUnavailable)
	}

	t.log.Debug().
		Int("segments", len(t.paths)).
		Int("frames", t.Total()).
		Float64("fps", t.info.FPS).
		Msg("track opened")
	return t, nil
}

// probe opens a segment only to read its frame count.
func (t *SegmentTrack) probe(path string) int {
	dec, err := t.opener.Open(t.ctx, path)
	if err != nil {
		metrics.SegmentsUnavailable.Inc()
		t.log.Warn().Err(err).Str("path", path).Msg("segment unavailable")
		return 0
	}
	info := dec.Info()
	if err := dec.Close(); err != nil {
		t.log.Debug().Err(err).Str("path", path).Msg("close after probe")
	}
	if info.Frames <= 0 {
		metrics.SegmentsUnavailable.Inc()
		t.log.Warn().Str("path", path).Msg("segment has no frames")
		return 0
	}
	if t.info.FPS == 0 && t.info.Width == 0 {
		t.info = info
	}
	return info.Frames
}

// Camera returns the camera this track reads.
func (t *SegmentTrack) Camera() models.Camera {
	return t.camera
}

// Info returns the stream parameters of the first readable segment.
// Frames is the track total.
func (t *SegmentTrack) Info() models.StreamInfo {
	info := t.info
	info.Frames = t.Total()
	return info
}

// Total returns the sum of all segment frame counts.
func (t *SegmentTrack) Total() int {
	return t.offsets[len(t.paths)]
}

// SegmentFrames returns the probed frame count of each segment.
func (t *SegmentTrack) SegmentFrames() []int {
	return append([]int(nil), t.frames...)
}

// Position returns the global index of the next frame ReadNext returns.
func (t *SegmentTrack) Position() int {
	if t.cur < 0 {
		return 0
	}
	return t.offsets[t.cur] + t.local
}

// SegmentIndex returns the segment holding the current position.
func (t *SegmentTrack) SegmentIndex() int {
	return t.cur
}

// Exhausted reports whether every frame has been consumed.
func (t *SegmentTrack) Exhausted() bool {
	return t.Position() >= t.Total()
}

// ReadNext decodes the next frame, crossing segment boundaries as needed.
//
// It returns ErrExhausted when no further segment yields a frame, and an
// error wrapping ErrNoFrame when a single frame fails to decode; the
// position still advances past that frame.
func (t *SegmentTrack) ReadNext() (*image.RGBA, error) {
	for t.cur >= 0 && t.cur < len(t.paths) {
		if t.dec == nil || t.local >= t.frames[t.cur] {
			if err := t.advance(); err != nil {
				return nil, err
			}
			continue
		}

		img, err := t.dec.ReadFrame()
		switch {
		case err == nil:
			t.local++
			metrics.FramesDecoded.WithLabelValues(t.camera.String()).Inc()
			return img, nil
		case errors.Is(err, io.EOF):
			// Segment shorter than probed; continue with the next one.
			t.log.Debug().Str("path", t.paths[t.cur]).Int("at", t.local).Msg("early end of segment")
			t.closeDecoder()
		default:
			t.local++
			metrics.FramesDropped.WithLabelValues(t.camera.String()).Inc()
			return nil, fmt.Errorf("%w: %s: %v", ErrNoFrame, t.camera, err)
		}
	}
	return nil, ErrExhausted
}

// advance closes the current segment and opens the next non-empty one.
func (t *SegmentTrack) advance() error {
	t.closeDecoder()
	for next := t.cur + 1; next < len(t.paths); next++ {
		if t.frames[next] == 0 {
			continue
		}
		if err := t.openSegment(next, 0); err != nil {
			t.log.Warn().Err(err).Str("path", t.paths[next]).Msg("skipping segment")
			continue
		}
		return nil
	}
	t.cur = len(t.paths)
	t.local = 0
	return ErrExhausted
}

func (t *SegmentTrack) openSegment(idx, local int) error {
	t.cur = idx
	t.local = local

	dec, err := t.opener.Open(t.ctx, t.paths[idx])
	if err != nil {
		return err
	}
	if local > 0 {
		if err := dec.Seek(local); err != nil {
			_ = dec.Close()
			return err
		}
	}
	t.dec = dec
	return nil
}

func (t *SegmentTrack) closeDecoder() {
	if t.dec == nil {
		return
	}
	if err := t.dec.Close(); err != nil {
		t.log.Debug().Err(err).Msg("close decoder")
	}
	t.dec = nil
}

// Seek moves to a global frame, clamped to [0, Total()-1]. The owning
// segment is the last one whose offset is <= frame; the decoder is reopened
// only when that segment differs from the current one.
func (t *SegmentTrack) Seek(frame int) error {
	total := t.Total()
	if total == 0 {
		return ErrTrackUnavailable
	}
	if frame < 0 {
		frame = 0
	}
	if frame > total-1 {
		frame = total - 1
	}

	n := len(t.paths)
	idx := sort.Search(n, func(i int) bool { return t.offsets[i] > frame }) - 1
	local := frame - t.offsets[idx]

	if idx == t.cur && t.dec != nil {
		err := t.dec.Seek(local)
		if err == nil {
			t.local = local
			return nil
		}
		t.log.Debug().Err(err).Int("frame", frame).Msg("seek in segment failed, reopening")
	}

	t.closeDecoder()
	if err := t.openSegment(idx, local); err != nil {
		return fmt.Errorf("seek %s to %d: %w", t.camera, frame, err)
	}
	return nil
}

// Close releases the open decoder. It is safe to call more than once.
func (t *SegmentTrack) Close() error {
	t.closeDecoder()
	return nil
}
