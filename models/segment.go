package models

import (
	"fmt"
	"strings"
	"time"
)

// Segment is one physical fixed-duration recording file.
//
// Start is the capture time parsed from the file name; HasTime is false when
// the name did not match the timestamp grammar.
type Segment struct {
	Path    string    `json:"path"`
	Camera  Camera    `json:"camera"`
	Start   time.Time `json:"start"`
	HasTime bool      `json:"has_time"`
}

// Validate checks the segment has a path and a known camera.
func (s Segment) Validate() error {
	if strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if !s.Camera.Valid() {
		return fmt.Errorf("invalid camera %d", int(s.Camera))
	}
	return nil
}

// StreamInfo describes a probed video stream.
type StreamInfo struct {
	Frames int     `json:"frames"`
	FPS    float64 `json:"fps"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// Duration returns the stream length in seconds, or 0 when fps is unknown.
func (si StreamInfo) Duration() float64 {
	if si.FPS <= 0 {
		return 0
	}
	return float64(si.Frames) / si.FPS
}
