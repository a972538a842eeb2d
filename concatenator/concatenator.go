// Package concatenator joins one camera's segment files into a single file
// with ffmpeg's concat demuxer, copying streams without re-encoding.
package concatenator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"teslacam/command"
	"teslacam/command/concat"
	"teslacam/ffmpeg"
	"teslacam/ffprobe"
	"teslacam/internal/logging"
	"teslacam/models"
)

// DefaultSegmentSpacing is the expected start-to-start distance of
// consecutive segments; larger distances are reported as gaps.
const DefaultSegmentSpacing = 70 * time.Second

// Concatenator handles merging a camera's segments into one output file
type Concatenator struct {
	strictMode bool // If true, fail if any segment is missing or a gap is found.
	spacing    time.Duration
	progress   models.ProgressCallback
	probe      func(ctx context.Context, path string) (models.StreamInfo, error)
	log        zerolog.Logger
}

// NewConcatenator creates a new concatenator
func NewConcatenator(strictMode bool) *Concatenator {
	return &Concatenator{
		strictMode: strictMode,
		spacing:    DefaultSegmentSpacing,
		probe:      ffprobe.ProbeVideo,
		log:        logging.WithComponent("concatenator"),
	}
}

// SetProgressCallback receives time-based progress parsed from ffmpeg.
func (c *Concatenator) SetProgressCallback(cb models.ProgressCallback) *Concatenator {
	c.progress = cb
	return c
}

// SetSegmentSpacing overrides the gap detection distance.
func (c *Concatenator) SetSegmentSpacing(d time.Duration) *Concatenator {
	if d > 0 {
		c.spacing = d
	}
	return c
}

// ConcatenateEvent joins the segments of one camera of an event.
func (c *Concatenator) ConcatenateEvent(ctx context.Context, ev *models.Event, cam models.Camera, finalOutputPath string) error {
	segs := ev.Segments[cam]
	if len(segs) == 0 {
		return fmt.Errorf("event %s has no %s segments", ev.ID, cam)
	}
	return c.Concatenate(ctx, segs, finalOutputPath)
}

// Concatenate merges segments into a final output file using ffmpeg's concat demuxer
func (c *Concatenator) Concatenate(ctx context.Context, segments []models.Segment, finalOutputPath string) error {
	available, missing, err := c.validateSegments(segments)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if len(missing) > 0 {
		if c.strictMode {
			return fmt.Errorf("strict mode: %d segments missing", len(missing))
		}
		c.log.Warn().Int("missing", len(missing)).Int("available", len(available)).Msg("skipping missing segments")
	}

	if len(available) == 0 {
		return fmt.Errorf("no segments available to concatenate")
	}

	if err := c.checkForGaps(available); err != nil {
		if c.strictMode {
			return fmt.Errorf("strict mode: %w", err)
		}
		c.log.Warn().Err(err).Msg("timeline gaps")
	}

	concatFilePath, err := c.createConcatFile(available)
	if err != nil {
		return fmt.Errorf("failed to create concat file: %w", err)
	}
	defer os.Remove(concatFilePath)

	if err := c.runConcat(ctx, concatFilePath, finalOutputPath, c.totalDuration(ctx, available)); err != nil {
		return fmt.Errorf("ffmpeg concat failed: %w", err)
	}

	c.log.Info().Int("segments", len(available)).Str("output", finalOutputPath).Msg("concatenated")
	return nil
}

// validateSegments separates present and missing segment files, sorted by start time
func (c *Concatenator) validateSegments(segments []models.Segment) (available, missing []models.Segment, err error) {
	if len(segments) == 0 {
		return nil, nil, fmt.Errorf("no segments provided")
	}

	for _, seg := range segments {
		if _, err := os.Stat(seg.Path); err != nil {
			missing = append(missing, seg)
		} else {
			available = append(available, seg)
		}
	}

	sort.SliceStable(available, func(i, j int) bool {
		return available[i].Start.Before(available[j].Start)
	})

	return available, missing, nil
}

// checkForGaps reports consecutive timed segments that start further apart than the spacing
func (c *Concatenator) checkForGaps(available []models.Segment) error {
	var gaps []string
	for i := 1; i < len(available); i++ {
		prev, cur := available[i-1], available[i]
		if !prev.HasTime || !cur.HasTime {
			continue
		}
		if d := cur.Start.Sub(prev.Start); d > c.spacing {
			gaps = append(gaps, fmt.Sprintf("%s after %s", d, filepath.Base(prev.Path)))
		}
	}

	if len(gaps) > 0 {
		return fmt.Errorf("gaps: %s", strings.Join(gaps, ", "))
	}
	return nil
}

// createConcatFile creates a text file listing all segment paths for ffmpeg concat demuxer
// Format: file '/path/to/segment1.mp4'
//
//	file '/path/to/segment2.mp4'
func (c *Concatenator) createConcatFile(available []models.Segment) (string, error) {
	tmpFile, err := os.CreateTemp("", "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tmpFile.Close()

	for _, seg := range available {
		absPath, err := filepath.Abs(seg.Path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path for %s: %w", seg.Path, err)
		}
		if _, err := tmpFile.WriteString(concat.ListLine(absPath)); err != nil {
			return "", fmt.Errorf("failed to write to concat file: %w", err)
		}
	}

	return tmpFile.Name(), nil
}

// totalDuration sums probed durations; 0 when any probe fails.
func (c *Concatenator) totalDuration(ctx context.Context, available []models.Segment) float64 {
	total := 0.0
	for _, seg := range available {
		info, err := c.probe(ctx, seg.Path)
		if err != nil {
			c.log.Debug().Err(err).Str("path", seg.Path).Msg("probe failed, progress unknown")
			return 0
		}
		total += info.Duration()
	}
	return total
}

// runConcat executes ffmpeg concat operation, parsing -progress output from stdout
func (c *Concatenator) runConcat(ctx context.Context, concatFilePath, outputPath string, totalSeconds float64) error {
	builder := concat.NewConcatBuilder(concatFilePath, outputPath).EnableProgress()
	if err := builder.Validate(); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, command.Binary, builder.BuildArgs()...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	progress := models.NewTimedProgress(totalSeconds)
	progress.State = models.ProgressStateStarting
	parseErr := ffmpeg.NewProgressParser().StreamProgress(stdout, progress, c.progress)

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg error: %w\nOutput: %s", err, stderr.String())
	}
	if parseErr != nil {
		c.log.Debug().Err(parseErr).Msg("no progress parsed")
	}

	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("output file not created: %w", err)
	}

	if c.progress != nil {
		progress.State = models.ProgressStateCompleted
		progress.Fraction = 1
		progress.Status = "Concatenation complete"
		c.progress(progress)
	}
	return nil
}
