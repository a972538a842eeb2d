package track

import (
	"context"
	"errors"
	"image"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"teslacam/internal/logging"
	"teslacam/models"
)

// DefaultFPS is used when the reference track reports no frame rate.
const DefaultFPS = 30.0

// TrackSet holds one SegmentTrack per available camera of an event.
//
// Tracks keep independent frame scales. The reference track (front when
// present) drives progress, time display and fraction-to-frame conversion.
type TrackSet struct {
	tracks map[models.Camera]*SegmentTrack
	ref    models.Camera
	log    zerolog.Logger
}

// Load opens a track for every camera with segments, in parallel. Cameras
// whose track fails to open are left out; ErrNoCameras is returned only when
// none open.
func Load(ctx context.Context, ev *models.Event, opener Opener) (*TrackSet, error) {
	log := logging.WithComponent("trackset").With().Str("event", ev.ID).Logger()

	var (
		mu     sync.Mutex
		tracks = make(map[models.Camera]*SegmentTrack, len(models.Cameras))
	)

	var g errgroup.Group
	for _, cam := range ev.Cameras() {
		cam := cam
		paths := ev.Paths(cam)
		g.Go(func() error {
			t, err := Open(ctx, cam, opener, paths)
			if err != nil {
				log.Warn().Err(err).Str("camera", cam.String()).Msg("camera unavailable")
				return nil
			}
			mu.Lock()
			tracks[cam] = t
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	ts := NewTrackSet(tracks)
	if err := ctx.Err(); err != nil {
		_ = ts.Close()
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, ErrNoCameras
	}

	log.Info().
		Int("cameras", len(tracks)).
		Str("reference", ts.ref.String()).
		Int("frames", ts.Total()).
		Msg("event loaded")
	return ts, nil
}

// NewTrackSet wraps already opened tracks.
func NewTrackSet(tracks map[models.Camera]*SegmentTrack) *TrackSet {
	ts := &TrackSet{
		tracks: tracks,
		ref:    models.CameraFront,
		log:    logging.WithComponent("trackset"),
	}
	if _, ok := tracks[models.CameraFront]; !ok {
		for _, c := range models.Cameras {
			if _, ok := tracks[c]; ok {
				ts.ref = c
				break
			}
		}
	}
	return ts
}

// Cameras returns the present cameras in grid order.
func (ts *TrackSet) Cameras() []models.Camera {
	var out []models.Camera
	for _, c := range models.Cameras {
		if _, ok := ts.tracks[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Track returns the track for a camera, or nil when absent.
func (ts *TrackSet) Track(c models.Camera) *SegmentTrack {
	return ts.tracks[c]
}

// ReferenceCamera returns the camera that drives progress and seeking.
func (ts *TrackSet) ReferenceCamera() models.Camera {
	return ts.ref
}

// Reference returns the reference track.
func (ts *TrackSet) Reference() *SegmentTrack {
	return ts.tracks[ts.ref]
}

// Total returns the reference track's frame count.
func (ts *TrackSet) Total() int {
	if r := ts.Reference(); r != nil {
		return r.Total()
	}
	return 0
}

// Position returns the reference track's position.
func (ts *TrackSet) Position() int {
	if r := ts.Reference(); r != nil {
		return r.Position()
	}
	return 0
}

// FPS returns the reference frame rate, DefaultFPS when unknown.
func (ts *TrackSet) FPS() float64 {
	if r := ts.Reference(); r != nil && r.Info().FPS > 0 {
		return r.Info().FPS
	}
	return DefaultFPS
}

// ReadAll reads the next frame of every track. Cameras that are exhausted
// or failed to decode this tick are absent from the result.
func (ts *TrackSet) ReadAll() map[models.Camera]*image.RGBA {
	frames := make(map[models.Camera]*image.RGBA, len(ts.tracks))
	for c, t := range ts.tracks {
		img, err := t.ReadNext()
		if err != nil {
			continue
		}
		frames[c] = img
	}
	return frames
}

// SeekFraction moves every track to round(f x reference total) and returns
// that target. Tracks with a different total land on the same nominal frame
// number, so they may drift slightly from true time alignment.
func (ts *TrackSet) SeekFraction(f float64) int {
	if math.IsNaN(f) || f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	target := int(math.Round(f * float64(ts.Total())))
	ts.SeekFrame(target)
	return target
}

// SeekFrame moves every track to the same global frame; each track clamps
// to its own range.
func (ts *TrackSet) SeekFrame(frame int) {
	for c, t := range ts.tracks {
		if err := t.Seek(frame); err != nil {
			ts.log.Warn().Err(err).Str("camera", c.String()).Msg("seek failed")
		}
	}
}

// IsExhausted reports whether every track has reached its end.
func (ts *TrackSet) IsExhausted() bool {
	for _, t := range ts.tracks {
		if !t.Exhausted() {
			return false
		}
	}
	return true
}

// Reset seeks every track to frame 0.
func (ts *TrackSet) Reset() {
	ts.SeekFrame(0)
}

// Close releases every decoder.
func (ts *TrackSet) Close() error {
	var errs []error
	for _, t := range ts.tracks {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
