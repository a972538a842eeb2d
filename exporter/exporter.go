// Package exporter renders an event's composite grid into a single video
// file, frame by frame, without real-time pacing.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"teslacam/command/encode"
	"teslacam/compositor"
	"teslacam/ffmpeg"
	"teslacam/internal/logging"
	"teslacam/internal/metrics"
	"teslacam/models"
	"teslacam/track"
)

// ErrExportFailed wraps every failure of the output sink.
var ErrExportFailed = errors.New("export failed")

// Sink receives composite frames in order.
type Sink interface {
	WriteFrame(img *image.RGBA) error
	Close() error
}

// aborter is implemented by sinks that can discard a partial output.
type aborter interface {
	Abort()
}

// SinkFactory opens a sink for a frame size and rate.
type SinkFactory func(ctx context.Context, outputPath string, width, height int, fps float64) (Sink, error)

// EncoderSettings selects the ffmpeg encoder for FFmpegSinks.
type EncoderSettings struct {
	Codec           string
	HardwareEncoder string
	Preset          string
	CRF             int
}

// FFmpegSinks returns a factory that encodes with an ffmpeg subprocess.
func FFmpegSinks(settings EncoderSettings) SinkFactory {
	return func(ctx context.Context, outputPath string, width, height int, fps float64) (Sink, error) {
		b := encode.NewEncodeBuilder(outputPath).
			SetFrameRate(fps).
			SetCRF(settings.CRF)
		if settings.Codec != "" {
			b.SetCodec(settings.Codec)
		}
		if settings.Preset != "" {
			b.SetPreset(settings.Preset)
		}
		if settings.HardwareEncoder != "" {
			b.SetHardwareEncoder(settings.HardwareEncoder)
		}
		return ffmpeg.NewEncoderSink(ctx, b, width, height)
	}
}

// Result describes a finished export.
type Result struct {
	JobID    string
	Output   string
	Frames   int
	Camera   models.Camera // Reference camera
	FPS      float64
	Duration time.Duration
}

// Exporter drives a TrackSet and Compositor into a Sink.
type Exporter struct {
	opener   track.Opener
	comp     *compositor.Compositor
	newSink  SinkFactory
	progress models.ProgressCallback
}

// New creates an exporter. Each export opens its own decoders through opener.
func New(opener track.Opener, comp *compositor.Compositor, newSink SinkFactory) *Exporter {
	return &Exporter{opener: opener, comp: comp, newSink: newSink}
}

// SetProgressCallback sets a callback invoked with fraction 0 before the
// first frame and after every written frame.
func (e *Exporter) SetProgressCallback(cb models.ProgressCallback) *Exporter {
	e.progress = cb
	return e
}

// Export writes exactly as many composite frames as the reference track
// has. Sink failures are wrapped in ErrExportFailed; the partial output
// should be discarded by the caller. Decoders and the sink are released on
// every path.
func (e *Exporter) Export(ctx context.Context, ev *models.Event, outputPath string) (res Result, err error) {
	started := time.Now()
	res = Result{JobID: uuid.NewString()[:8], Output: outputPath}
	log := logging.WithComponent("exporter").With().
		Str("job", res.JobID).
		Str("event", ev.ID).
		Logger()

	defer func() {
		res.Duration = time.Since(started)
		metrics.RecordExport(err, res.Duration)
	}()

	ts, err := track.Load(ctx, ev, e.opener)
	if err != nil {
		return res, fmt.Errorf("load event: %w", err)
	}
	defer ts.Close()

	total := ts.Total()
	res.Camera = ts.ReferenceCamera()
	res.FPS = ts.FPS()

	w, h := e.comp.Size()
	sink, err := e.newSink(ctx, outputPath, w, h, res.FPS)
	if err != nil {
		return res, fmt.Errorf("%w: open output: %v", ErrExportFailed, err)
	}

	log.Info().
		Str("output", outputPath).
		Int("frames", total).
		Float64("fps", res.FPS).
		Str("reference", res.Camera.String()).
		Msg("export started")

	p := models.NewProgress(int64(total))
	p.State = models.ProgressStateStarting
	p.Status = "Starting export"
	e.report(p)
	p.State = models.ProgressStateRunning

	written, err := e.render(ctx, ts, sink, p, total)
	res.Frames = written
	if err != nil {
		abort(sink, log)
		log.Error().Err(err).Int("written", written).Msg("export aborted")
		return res, err
	}

	if err := sink.Close(); err != nil {
		return res, fmt.Errorf("%w: finalize output: %v", ErrExportFailed, err)
	}

	log.Info().Int("frames", written).Dur("took", time.Since(started)).Msg("export finished")
	return res, nil
}

func (e *Exporter) render(ctx context.Context, ts *track.TrackSet, sink Sink, p *models.Progress, total int) (int, error) {
	written := 0
	for written < total && !ts.IsExhausted() {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		img := e.comp.Compose(ts.ReadAll())
		if err := sink.WriteFrame(img); err != nil {
			return written, fmt.Errorf("%w: frame %d: %v", ErrExportFailed, written, err)
		}
		written++
		metrics.ExportFramesWritten.Inc()

		p.SetFrame(int64(written))
		p.Status = fmt.Sprintf("Exported frame %d/%d", written, total)
		e.report(p)
	}
	return written, nil
}

func (e *Exporter) report(p *models.Progress) {
	if e.progress != nil {
		e.progress(p)
	}
}

func abort(sink Sink, log zerolog.Logger) {
	if a, ok := sink.(aborter); ok {
		a.Abort()
		return
	}
	if err := sink.Close(); err != nil {
		log.Debug().Err(err).Msg("close after failure")
	}
}
