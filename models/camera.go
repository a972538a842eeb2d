// Package models provides core data structures for the dashcam viewer.
package models

import "fmt"

// Camera identifies one of the four synchronized vehicle cameras.
type Camera int

const (
	CameraFront Camera = iota
	CameraBack
	CameraLeft
	CameraRight
)

// Cameras lists every camera in grid and reference order.
var Cameras = []Camera{CameraFront, CameraBack, CameraLeft, CameraRight}

// String returns the short lower-case camera name used in logs and flags.
func (c Camera) String() string {
	switch c {
	case CameraFront:
		return "front"
	case CameraBack:
		return "back"
	case CameraLeft:
		return "left"
	case CameraRight:
		return "right"
	default:
		return fmt.Sprintf("camera(%d)", int(c))
	}
}

// Label returns the display name drawn on composite cells.
func (c Camera) Label() string {
	switch c {
	case CameraFront:
		return "Front"
	case CameraBack:
		return "Back"
	case CameraLeft:
		return "Left"
	case CameraRight:
		return "Right"
	default:
		return "Unknown"
	}
}

// Valid reports whether c is one of the four known cameras.
func (c Camera) Valid() bool {
	return c >= CameraFront && c <= CameraRight
}

// ParseCamera converts a short camera name ("front", "back", "left", "right").
func ParseCamera(name string) (Camera, error) {
	for _, c := range Cameras {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown camera %q", name)
}
