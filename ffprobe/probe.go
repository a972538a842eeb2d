// Package ffprobe extracts stream metadata from segment files using the
// ffprobe command-line tool.
package ffprobe

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"teslacam/models"
)

// Binary is the ffprobe executable looked up on PATH.
var Binary = "ffprobe"

// Stream represents a media stream as reported by ffprobe.
type Stream struct {
	Index         int    `json:"index"`
	CodecName     string `json:"codec_name"`
	CodecType     string `json:"codec_type"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	Duration      string `json:"duration,omitempty"`
	AvgFrameRate  string `json:"avg_frame_rate,omitempty"`
	RFrameRate    string `json:"r_frame_rate,omitempty"`
	NbFrames      string `json:"nb_frames,omitempty"`
	NbReadPackets string `json:"nb_read_packets,omitempty"`
}

// Format represents the container format information.
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

// ProbeResult holds the metadata extracted from a segment file.
type ProbeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// GetDuration returns the duration of the media file in seconds.
//
// Returns an error if the duration cannot be parsed.
func (pr *ProbeResult) GetDuration() (float64, error) {
	if pr.Format.Duration == "" {
		return 0, fmt.Errorf("duration not available in format metadata")
	}

	duration, err := strconv.ParseFloat(pr.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration '%s': %w", pr.Format.Duration, err)
	}

	return duration, nil
}

// GetVideoStreams returns all video streams from the media file.
func (pr *ProbeResult) GetVideoStreams() []Stream {
	var videoStreams []Stream
	for _, stream := range pr.Streams {
		if stream.CodecType == "video" {
			videoStreams = append(videoStreams, stream)
		}
	}
	return videoStreams
}

// VideoInfo summarizes the first video stream.
//
// The frame count comes from nb_frames, then nb_read_packets, then
// round(duration x fps). The rate comes from avg_frame_rate, then r_frame_rate.
func (pr *ProbeResult) VideoInfo() (models.StreamInfo, error) {
	streams := pr.GetVideoStreams()
	if len(streams) == 0 {
		return models.StreamInfo{}, fmt.Errorf("no video stream")
	}
	s := streams[0]

	info := models.StreamInfo{Width: s.Width, Height: s.Height}
	if fps, err := ParseFrameRate(s.AvgFrameRate); err == nil {
		info.FPS = fps
	} else if fps, err := ParseFrameRate(s.RFrameRate); err == nil {
		info.FPS = fps
	}

	switch {
	case parseCount(s.NbFrames) > 0:
		info.Frames = parseCount(s.NbFrames)
	case parseCount(s.NbReadPackets) > 0:
		info.Frames = parseCount(s.NbReadPackets)
	default:
		dur, err := strconv.ParseFloat(s.Duration, 64)
		if err != nil {
			dur, err = pr.GetDuration()
		}
		if err != nil || info.FPS <= 0 {
			return models.StreamInfo{}, fmt.Errorf("frame count not available")
		}
		info.Frames = int(math.Round(dur * info.FPS))
	}

	if info.Width <= 0 || info.Height <= 0 {
		return models.StreamInfo{}, fmt.Errorf("invalid dimensions %dx%d", info.Width, info.Height)
	}
	return info, nil
}

func parseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ParseFrameRate parses ffprobe rationals such as "30000/1001" or plain "30".
func ParseFrameRate(rate string) (float64, error) {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return 0, fmt.Errorf("empty frame rate")
	}

	num, den, found := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate '%s': %w", rate, err)
	}
	d := 1.0
	if found {
		d, err = strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid frame rate '%s': %w", rate, err)
		}
	}
	if n <= 0 || d <= 0 {
		return 0, fmt.Errorf("invalid frame rate '%s'", rate)
	}
	return n / d, nil
}

// ParseOutput decodes ffprobe's JSON output.
func ParseOutput(data []byte) (*ProbeResult, error) {
	var result ProbeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe JSON output: %w", err)
	}
	return &result, nil
}

// Args returns the ffprobe arguments used to probe the first video stream.
//
// -count_packets makes ffprobe fill nb_read_packets when the container
// omits nb_frames.
func Args(sourcePath string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-count_packets",
		"-select_streams", "v:0",
		"-show_streams",
		"-show_format",
		sourcePath,
	}
}

// Probe analyzes a segment file and extracts its metadata using ffprobe.
//
// Example:
//
//	result, err := ffprobe.Probe(ctx, "/TeslaCam/RecentClips/2019-05-21_10-15-34-front.mp4")
//	if err != nil {
//	    return err
//	}
//	info, _ := result.VideoInfo()
//	fmt.Printf("%d frames at %.2f fps\n", info.Frames, info.FPS)
func Probe(ctx context.Context, sourcePath string) (*ProbeResult, error) {
	if sourcePath == "" {
		return nil, fmt.Errorf("source path cannot be empty")
	}

	cmd := exec.CommandContext(ctx, Binary, Args(sourcePath)...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return ParseOutput(output)
}

// ProbeVideo probes sourcePath and summarizes its video stream.
func ProbeVideo(ctx context.Context, sourcePath string) (models.StreamInfo, error) {
	result, err := Probe(ctx, sourcePath)
	if err != nil {
		return models.StreamInfo{}, err
	}
	info, err := result.VideoInfo()
	if err != nil {
		return models.StreamInfo{}, fmt.Errorf("%s: %w", sourcePath, err)
	}
	return info, nil
}
