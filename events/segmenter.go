// Package events groups discovered segment files into time-contiguous events.
package events

import (
	"path/filepath"
	"sort"
	"time"

	"teslacam/clipname"
	"teslacam/internal/logging"
	"teslacam/models"
)

// DefaultGapThreshold is the largest gap between consecutive front segments
// that still belongs to one event. A gap strictly greater starts a new event.
const DefaultGapThreshold = 15 * time.Minute

// Segmenter splits per-folder listings into events.
type Segmenter struct {
	gap     time.Duration
	primary models.Camera
}

// NewSegmenter creates a segmenter with the default threshold and the front
// camera as the primary camera.
func NewSegmenter() *Segmenter {
	return &Segmenter{
		gap:     DefaultGapThreshold,
		primary: models.CameraFront,
	}
}

// SetGapThreshold sets the split threshold. Non-positive values are ignored.
func (s *Segmenter) SetGapThreshold(d time.Duration) *Segmenter {
	if d > 0 {
		s.gap = d
	}
	return s
}

// GapThreshold returns the configured split threshold.
func (s *Segmenter) GapThreshold() time.Duration {
	return s.gap
}

// Segment groups every listing into events, sorted newest first. Events with
// no parseable timestamp follow all timed events, ordered by ID.
func (s *Segmenter) Segment(listings []models.Listing) []models.Event {
	log := logging.WithComponent("events")

	var out []models.Event
	for _, l := range listings {
		folderEvents := s.segmentFolder(l)
		log.Debug().
			Str("folder", l.Folder).
			Int("files", len(l.Paths)).
			Int("events", len(folderEvents)).
			Msg("folder segmented")
		out = append(out, folderEvents...)
	}

	sortEvents(out)
	return out
}

func (s *Segmenter) segmentFolder(l models.Listing) []models.Event {
	exists := make(map[string]bool, len(l.Paths))
	var timed, untimed []models.Segment
	for _, p := range l.Paths {
		exists[p] = true
		seg, ok := clipname.ToSegment(p)
		if !ok || seg.Camera != s.primary {
			continue
		}
		if seg.HasTime {
			timed = append(timed, seg)
		} else {
			untimed = append(untimed, seg)
		}
	}

	sort.SliceStable(timed, func(i, j int) bool {
		if timed[i].Start.Equal(timed[j].Start) {
			return timed[i].Path < timed[j].Path
		}
		return timed[i].Start.Before(timed[j].Start)
	})
	sort.Slice(untimed, func(i, j int) bool { return untimed[i].Path < untimed[j].Path })

	var out []models.Event
	for _, group := range Split(timed, s.gap) {
		out = append(out, s.expand(l, group, exists))
	}
	for _, seg := range untimed {
		out = append(out, s.expand(l, []models.Segment{seg}, exists))
	}
	return out
}

// Split partitions segments sorted by Start into runs where each consecutive
// gap is at most threshold.
func Split(sorted []models.Segment, threshold time.Duration) [][]models.Segment {
	var groups [][]models.Segment
	var current []models.Segment
	for i, seg := range sorted {
		if i > 0 && seg.Start.Sub(sorted[i-1].Start) > threshold {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, seg)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// expand builds per-camera lists by swapping the primary tag for each other
// camera's tags, keeping only files present in the listing.
func (s *Segmenter) expand(l models.Listing, primary []models.Segment, exists map[string]bool) models.Event {
	ev := models.Event{
		Category: l.Category,
		Folder:   l.Folder,
		Start:    primary[0].Start,
		HasTime:  primary[0].HasTime,
		Segments: make(map[models.Camera][]models.Segment, len(models.Cameras)),
	}

	for _, cam := range models.Cameras {
		if cam == s.primary {
			ev.Segments[cam] = primary
			continue
		}
		var segs []models.Segment
		for _, p := range primary {
			for _, candidate := range clipname.Sibling(p.Path, cam) {
				if !exists[candidate] {
					continue
				}
				segs = append(segs, models.Segment{
					Path:    candidate,
					Camera:  cam,
					Start:   p.Start,
					HasTime: p.HasTime,
				})
				break
			}
		}
		if len(segs) > 0 {
			ev.Segments[cam] = segs
		}
	}

	ev.ID = ev.StableID()
	if ev.Folder == "" {
		ev.Folder = filepath.Dir(primary[0].Path)
	}
	return ev
}

func sortEvents(evs []models.Event) {
	sort.SliceStable(evs, func(i, j int) bool {
		a, b := evs[i], evs[j]
		if a.HasTime != b.HasTime {
			return a.HasTime
		}
		if a.HasTime && !a.Start.Equal(b.Start) {
			return a.Start.After(b.Start)
		}
		return a.ID < b.ID
	})
}
