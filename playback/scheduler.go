// Package playback paces composite frames to wall-clock time.
package playback

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"teslacam/compositor"
	"teslacam/internal/logging"
	"teslacam/internal/metrics"
	"teslacam/internal/timeutil"
	"teslacam/models"
	"teslacam/track"
)

// DefaultTickInterval is how often Run polls for a due frame.
const DefaultTickInterval = 10 * time.Millisecond

// State is the playback state.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Source is the frame source the scheduler drives. *track.TrackSet
// implements it.
type Source interface {
	ReadAll() map[models.Camera]*image.RGBA
	SeekFraction(f float64) int
	SeekFrame(frame int)
	IsExhausted() bool
	Reset()
	Position() int
	Total() int
	FPS() float64
	Close() error
}

var _ Source = (*track.TrackSet)(nil)

// Update is one frame pushed to the display sink.
type Update struct {
	Image    *image.RGBA
	Position int     // Reference frames consumed
	Total    int     // Reference frame count
	Elapsed  float64 // Seconds
	Duration float64 // Seconds
	Label    string  // "MM:SS / MM:SS"
}

// Sink displays updates. It must not call back into the Scheduler.
type Sink interface {
	Show(u Update)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(u Update)

// Show calls f.
func (f SinkFunc) Show(u Update) { f(u) }

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock injects the time source.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithSpeed sets the initial speed multiplier. Invalid values are ignored.
func WithSpeed(speed float64) Option {
	return func(s *Scheduler) {
		if validSpeed(speed) {
			s.speed = speed
		}
	}
}

// Scheduler owns the playback state for one loaded event.
type Scheduler struct {
	mu sync.Mutex

	src   Source
	comp  *compositor.Compositor
	sink  Sink
	clock Clock
	log   zerolog.Logger

	state     State
	speed     float64
	lastFrame time.Time
	startedAt time.Time
}

// New creates a stopped scheduler over src.
func New(src Source, comp *compositor.Compositor, sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		src:   src,
		comp:  comp,
		sink:  sink,
		clock: systemClock{},
		log:   logging.WithComponent("playback"),
		speed: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validSpeed(speed float64) bool {
	return speed > 0 && !math.IsInf(speed, 0) && !math.IsNaN(speed)
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Speed returns the speed multiplier.
func (s *Scheduler) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// SetSpeed changes the speed multiplier. It must be positive.
func (s *Scheduler) SetSpeed(speed float64) error {
	if !validSpeed(speed) {
		return fmt.Errorf("invalid speed %v: must be > 0", speed)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = speed
	return nil
}

// Interval returns the wall-clock time between frames at the current speed.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval()
}

func (s *Scheduler) interval() time.Duration {
	fps := s.src.FPS()
	if fps <= 0 {
		fps = track.DefaultFPS
	}
	return time.Duration(float64(time.Second) / fps / s.speed)
}

// Play starts or resumes playback. The first tick after Play emits a frame.
func (s *Scheduler) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Playing {
		return
	}
	s.state = Playing
	s.startedAt = s.clock.Now()
	s.lastFrame = time.Time{}
	s.log.Debug().Int("position", s.src.Position()).Float64("speed", s.speed).Msg("play")
}

// Pause suspends playback at the current position.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Playing {
		return
	}
	s.state = Paused
	s.log.Debug().Int("position", s.src.Position()).Msg("pause")
}

// Stop returns to frame 0 without pushing a frame. Calling it twice is the
// same as calling it once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
}

func (s *Scheduler) stop() {
	s.state = Stopped
	s.lastFrame = time.Time{}
	s.src.Reset()
}

// Tick emits one frame if playing and the frame interval has elapsed.
// It reports whether a frame was emitted. Reaching the end stops playback
// and rewinds to frame 0 without replaying.
func (s *Scheduler) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Playing {
		return false
	}
	now := s.clock.Now()
	if !s.lastFrame.IsZero() && now.Sub(s.lastFrame) < s.interval() {
		return false
	}
	if s.src.IsExhausted() {
		s.log.Debug().Dur("played", now.Sub(s.startedAt)).Msg("end of event")
		s.stop()
		return false
	}

	frames := s.src.ReadAll()
	s.emit(frames, s.src.Position())
	s.lastFrame = now
	return true
}

// Seek moves every track to fraction f of the reference track and returns
// the reference position it landed on, which is the last frame when f is 1.
// While paused or stopped one refreshed frame is pushed so the display
// matches the new position.
func (s *Scheduler) Seek(f float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.src.SeekFraction(f)
	pos := s.src.Position()
	if s.state != Playing {
		frames := s.src.ReadAll()
		s.src.SeekFrame(target)
		s.emit(frames, pos)
	}
	return pos
}

func (s *Scheduler) emit(frames map[models.Camera]*image.RGBA, position int) {
	img := s.comp.Compose(frames)
	metrics.FramesComposed.Inc()

	fps := s.src.FPS()
	total := s.src.Total()
	elapsed := timeutil.FramesToSeconds(position, fps)
	duration := timeutil.FramesToSeconds(total, fps)

	s.sink.Show(Update{
		Image:    img,
		Position: position,
		Total:    total,
		Elapsed:  elapsed,
		Duration: duration,
		Label:    timeutil.FormatClock(elapsed) + " / " + timeutil.FormatClock(duration),
	})
}

// Run starts playback and drives Tick every period until ctx is done or
// playback stops. A non-positive period uses DefaultTickInterval.
func (s *Scheduler) Run(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		period = DefaultTickInterval
	}
	s.Play()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Pause()
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
			if s.State() == Stopped {
				return nil
			}
		}
	}
}

// Close stops playback and releases the source's decoders.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Stopped
	return s.src.Close()
}
