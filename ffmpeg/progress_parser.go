package ffmpeg

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"teslacam/models"
)

// ProgressParser reads the key=value blocks ffmpeg writes with
// -progress. Each block ends with progress=continue or progress=end.
type ProgressParser struct {
	sawMicros bool // out_time_us seen; out_time is then display-only
}

// NewProgressParser creates a new parser for ffmpeg progress output
func NewProgressParser() *ProgressParser {
	return &ProgressParser{}
}

// ParseLine applies one line to progress and reports whether it closed a
// block. Unknown keys and N/A values are ignored.
func (pp *ProgressParser) ParseLine(line string, progress *models.Progress) (blockEnd bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return false
	}
	value = strings.TrimSpace(value)
	if value == "" || value == "N/A" {
		return false
	}

	switch key {
	case "progress":
		return value == "continue" || value == "end"
	case "frame":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			progress.SetFrame(n)
		}
	case "fps":
		if fps, err := strconv.ParseFloat(value, 64); err == nil {
			progress.FPS = fps
		}
	case "total_size":
		if n, err := strconv.ParseUint(value, 10, 64); err == nil {
			progress.Size = humanize.Bytes(n)
		}
	case "bitrate":
		progress.Bitrate = value
	case "speed":
		if s, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil {
			progress.Speed = s
		}
	case "out_time_us", "out_time_ms": // both are microseconds
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			pp.sawMicros = true
			progress.CalculateProgress(float64(us) / 1e6)
		}
	case "out_time":
		progress.CurrentTime = value
		if !pp.sawMicros {
			if sec := TimeToSeconds(value); sec > 0 {
				progress.CalculateProgress(sec)
			}
		}
	}
	return false
}

// StreamProgress reads ffmpeg -progress output until EOF, invoking callback
// once per completed block.
func (pp *ProgressParser) StreamProgress(reader io.Reader, progress *models.Progress, callback models.ProgressCallback) error {
	scanner := bufio.NewScanner(reader)
	blocks := 0

	for scanner.Scan() {
		if !pp.ParseLine(scanner.Text(), progress) {
			continue
		}
		blocks++
		progress.State = models.ProgressStateRunning
		if callback != nil {
			callback(progress)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading ffmpeg output: %w", err)
	}
	if blocks == 0 {
		return fmt.Errorf("no progress output captured from ffmpeg")
	}
	return nil
}

// TimeToSeconds converts ffmpeg time format (HH:MM:SS.micro) to seconds.
// Malformed input yields 0.
func TimeToSeconds(timeStr string) float64 {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 3 {
		return 0
	}

	var total float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 {
			return 0
		}
		total = total*60 + v
	}
	return total
}
