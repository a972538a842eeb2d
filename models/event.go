package models

import (
	"fmt"
	"time"
)

// Event is a time-contiguous group of segments, one ordered list per camera.
//
// Within a camera list segments are ordered by non-decreasing Start. Lists
// may differ in length when an angle is missing for some timestamps.
type Event struct {
	ID       string               `json:"id"`
	Category Category             `json:"category"`
	Folder   string               `json:"folder"`
	Start    time.Time            `json:"start"`
	HasTime  bool                 `json:"has_time"`
	Segments map[Camera][]Segment `json:"segments"`
	Tags     []string             `json:"tags,omitempty"`
	Notes    string               `json:"notes,omitempty"`
}

// Cameras returns the cameras that have at least one segment, in grid order.
func (e *Event) Cameras() []Camera {
	var out []Camera
	for _, c := range Cameras {
		if len(e.Segments[c]) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// Paths returns the ordered segment paths for one camera.
func (e *Event) Paths(c Camera) []string {
	segs := e.Segments[c]
	paths := make([]string, len(segs))
	for i, s := range segs {
		paths[i] = s.Path
	}
	return paths
}

// SegmentCount returns the number of segments across all cameras.
func (e *Event) SegmentCount() int {
	n := 0
	for _, segs := range e.Segments {
		n += len(segs)
	}
	return n
}

// StableID derives the metadata key: the first segment of the first present camera.
func (e *Event) StableID() string {
	for _, c := range Cameras {
		if segs := e.Segments[c]; len(segs) > 0 {
			return segs[0].Path
		}
	}
	return ""
}

// DisplayName returns "[category] timestamp" for listings.
func (e *Event) DisplayName() string {
	if !e.HasTime {
		return fmt.Sprintf("[%s] %s", e.Category, e.ID)
	}
	return fmt.Sprintf("[%s] %s", e.Category, e.Start.Format("2006-01-02 15:04:05"))
}

// Validate checks the event has at least one segment and a stable ID.
func (e *Event) Validate() error {
	if e.SegmentCount() == 0 {
		return fmt.Errorf("event has no segments")
	}
	if e.ID == "" {
		return fmt.Errorf("event id cannot be empty")
	}
	return nil
}
