// Package clipname parses and formats dashcam segment file names.
//
// Segment files are named "<date>_<time>-<camera-tag>.mp4", for example
// "2019-05-21_10-15-34-front.mp4". The name is the only source of a
// segment's capture time and camera.
package clipname

import (
	"path/filepath"
	"strings"
	"time"

	"teslacam/models"
)

const (
	// Layout is the date/time portion of a segment name.
	Layout = "2006-01-02_15-04-05"

	// Extension is the container suffix written by the vehicle.
	Extension = ".mp4"
)

// tags maps every accepted camera suffix to its camera. The first entry per
// camera in canonicalTags is what Format writes.
var tags = map[string]models.Camera{
	"front":          models.CameraFront,
	"back":           models.CameraBack,
	"left_repeater":  models.CameraLeft,
	"right_repeater": models.CameraRight,
	"left":           models.CameraLeft,
	"right":          models.CameraRight,
}

var canonicalTags = map[models.Camera]string{
	models.CameraFront: "front",
	models.CameraBack:  "back",
	models.CameraLeft:  "left_repeater",
	models.CameraRight: "right_repeater",
}

// Tag returns the canonical file-name tag for a camera.
func Tag(c models.Camera) string {
	return canonicalTags[c]
}

// TagsFor returns every accepted tag for a camera, canonical first.
func TagsFor(c models.Camera) []string {
	out := []string{canonicalTags[c]}
	for tag, cam := range tags {
		if cam == c && tag != canonicalTags[c] {
			out = append(out, tag)
		}
	}
	return out
}

// Split separates a file name into its stem and camera tag.
// ok is false when the name carries no recognized tag.
func Split(name string) (stem, tag string, ok bool) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	i := strings.LastIndex(base, "-")
	if i < 0 {
		return "", "", false
	}
	stem, tag = base[:i], base[i+1:]
	if _, known := tags[tag]; !known {
		return "", "", false
	}
	return stem, tag, true
}

// CameraFromName returns the camera encoded in a file name.
func CameraFromName(name string) (models.Camera, bool) {
	_, tag, ok := Split(name)
	if !ok {
		return 0, false
	}
	return tags[tag], true
}

// Parse extracts the capture time and camera from a segment file name.
//
// ok is false ("no timestamp") when the tag is unknown or the date/time
// fields do not match Layout. Callers treat that as unordered, never as an
// error. Times are wall-clock values in UTC.
func Parse(name string) (ts time.Time, camera models.Camera, ok bool) {
	stem, tag, ok := Split(name)
	if !ok {
		return time.Time{}, 0, false
	}
	camera = tags[tag]
	ts, err := time.ParseInLocation(Layout, stem, time.UTC)
	if err != nil {
		return time.Time{}, camera, false
	}
	return ts, camera, true
}

// Format produces the canonical file name for a capture time and camera.
func Format(ts time.Time, camera models.Camera) string {
	return ts.UTC().Format(Layout) + "-" + Tag(camera) + Extension
}

// Sibling rewrites path to the same capture under another camera tag.
// The returned candidates share the directory of path, canonical tag first.
func Sibling(path string, camera models.Camera) []string {
	stem, _, ok := Split(path)
	if !ok {
		return nil
	}
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	var out []string
	for _, tag := range TagsFor(camera) {
		out = append(out, filepath.Join(dir, stem+"-"+tag+ext))
	}
	return out
}

// ToSegment builds a Segment from a path. HasTime reports whether the name parsed.
func ToSegment(path string) (models.Segment, bool) {
	ts, camera, ok := Parse(path)
	if !ok {
		cam, known := CameraFromName(path)
		if !known {
			return models.Segment{}, false
		}
		return models.Segment{Path: path, Camera: cam}, true
	}
	return models.Segment{Path: path, Camera: camera, Start: ts, HasTime: true}, true
}
