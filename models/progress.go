package models

import (
	"fmt"
	"time"
)

// Progress tracks a long-running export or concatenation.
type Progress struct {
	// Position
	Frame       int64   // Frames written (export) or last reported frame (ffmpeg)
	TotalFrames int64   // Frames expected, 0 when unknown
	CurrentTime string  // Output time reported by ffmpeg (HH:MM:SS.MS)
	FPS         float64 // Processing rate
	Speed       float64 // Processing speed multiplier relative to realtime
	Size        string  // Output size reported by ffmpeg
	Bitrate     string  // Output bitrate reported by ffmpeg

	// Fraction complete in [0,1]
	TotalDuration float64 // Seconds, for time-based progress
	Fraction      float64

	Status    string        // Human-readable status text
	State     ProgressState // Current state
	StartTime time.Time
	UpdatedAt time.Time
}

// ProgressState represents the current state of a job
type ProgressState string

const (
	ProgressStateQueued    ProgressState = "queued"
	ProgressStateStarting  ProgressState = "starting"
	ProgressStateRunning   ProgressState = "running"
	ProgressStateCompleted ProgressState = "completed"
	ProgressStateFailed    ProgressState = "failed"
	ProgressStateCancelled ProgressState = "cancelled"
)

// ProgressCallback receives progress updates
type ProgressCallback func(progress *Progress)

// NewProgress creates a frame-based progress tracker
func NewProgress(totalFrames int64) *Progress {
	now := time.Now()
	return &Progress{
		TotalFrames: totalFrames,
		State:       ProgressStateQueued,
		StartTime:   now,
		UpdatedAt:   now,
	}
}

// NewTimedProgress creates a progress tracker driven by output time
func NewTimedProgress(totalDuration float64) *Progress {
	p := NewProgress(0)
	p.TotalDuration = totalDuration
	return p
}

// SetFrame records frames done and recomputes the fraction
func (p *Progress) SetFrame(frame int64) {
	p.Frame = frame
	if p.TotalFrames > 0 {
		p.Fraction = clampFraction(float64(frame) / float64(p.TotalFrames))
	}
	p.UpdatedAt = time.Now()
}

// CalculateProgress updates the fraction from output seconds
func (p *Progress) CalculateProgress(currentSeconds float64) {
	if p.TotalDuration > 0 {
		p.Fraction = clampFraction(currentSeconds / p.TotalDuration)
	}
	p.UpdatedAt = time.Now()
}

// Percent returns the fraction as a percentage
func (p *Progress) Percent() float64 {
	return p.Fraction * 100
}

// EstimatedTimeRemaining extrapolates from elapsed time and fraction done
func (p *Progress) EstimatedTimeRemaining() time.Duration {
	if p.Fraction <= 0 {
		return 0
	}

	elapsed := time.Since(p.StartTime)
	totalEstimated := time.Duration(float64(elapsed) / p.Fraction)
	remaining := totalEstimated - elapsed

	if remaining < 0 {
		return 0
	}
	return remaining
}

// FormatSummary returns a human-readable summary of the progress
func (p *Progress) FormatSummary() string {
	return fmt.Sprintf(
		"Progress: %.1f%% | Frame: %d/%d | Speed: %.2fx | ETA: %s",
		p.Percent(),
		p.Frame,
		p.TotalFrames,
		p.Speed,
		formatDuration(p.EstimatedTimeRemaining()),
	)
}

func clampFraction(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// formatDuration converts a duration to a human-readable string
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "calculating..."
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	seconds = seconds % 60

	if minutes < 60 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}
