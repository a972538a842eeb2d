// Package timeutil provides time formatting for ffmpeg arguments and playback labels.
package timeutil

import (
	"fmt"
	"math"
)

// FormatSeconds renders seconds as HH:MM:SS.ffffff for ffmpeg's -ss.
// Values are rounded to the microsecond, so a frame boundary at 36 fps
// survives the round trip. Negative and NaN inputs render as zero.
//
//	FormatSeconds(90)        // "00:01:30.000000"
//	FormatSeconds(0.4861111) // "00:00:00.486111"
func FormatSeconds(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	us := int64(math.Round(seconds * 1e6))
	whole := us / 1e6
	return fmt.Sprintf("%02d:%02d:%02d.%06d", whole/3600, (whole%3600)/60, whole%60, us%1e6)
}

// FrameSeekSeconds returns the seek time that lands exactly on frame at fps:
// half a frame before its timestamp, so an accurate seek keeps the frame
// even when the container's timestamps jitter slightly. Frame 0 and a
// non-positive fps return 0.
func FrameSeekSeconds(frame int, fps float64) float64 {
	if frame <= 0 || fps <= 0 {
		return 0
	}
	return (float64(frame) - 0.5) / fps
}

// FormatClock renders whole seconds as MM:SS, or H:MM:SS from one hour up.
// Negative and NaN inputs render as 00:00.
//
//	FormatClock(0)     // "00:00"
//	FormatClock(61.9)  // "01:01"
//	FormatClock(3725)  // "1:02:05"
func FormatClock(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	if total >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// FramesToSeconds converts a frame index to seconds at fps.
// Returns 0 when fps is not positive.
func FramesToSeconds(frames int, fps float64) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(frames) / fps
}
