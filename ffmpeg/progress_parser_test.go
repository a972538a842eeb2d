package ffmpeg

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teslacam/models"
)

func TestProgressParser_ParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		blockEnd bool
		check    func(t *testing.T, p *models.Progress)
	}{
		{
			name: "frame",
			line: "frame=100",
			check: func(t *testing.T, p *models.Progress) {
				assert.EqualValues(t, 100, p.Frame)
			},
		},
		{
			name: "out_time_us drives fraction",
			line: "out_time_us=15000000",
			check: func(t *testing.T, p *models.Progress) {
				assert.InDelta(t, 0.5, p.Fraction, 1e-9)
			},
		},
		{
			name: "out_time without micros",
			line: "out_time=00:00:06.000000",
			check: func(t *testing.T, p *models.Progress) {
				assert.Equal(t, "00:00:06.000000", p.CurrentTime)
				assert.InDelta(t, 0.2, p.Fraction, 1e-9)
			},
		},
		{
			name: "total size humanized",
			line: "total_size=2048000",
			check: func(t *testing.T, p *models.Progress) {
				assert.Equal(t, "2.0 MB", p.Size)
			},
		},
		{
			name: "speed suffix",
			line: "speed=3.5x",
			check: func(t *testing.T, p *models.Progress) {
				assert.Equal(t, 3.5, p.Speed)
			},
		},
		{
			name: "bitrate kept verbatim",
			line: "bitrate=1234.5kbits/s",
			check: func(t *testing.T, p *models.Progress) {
				assert.Equal(t, "1234.5kbits/s", p.Bitrate)
			},
		},
		{
			name: "not available",
			line: "bitrate=N/A",
			check: func(t *testing.T, p *models.Progress) {
				assert.Empty(t, p.Bitrate)
			},
		},
		{name: "continue closes block", line: "progress=continue", blockEnd: true},
		{name: "end closes block", line: "progress=end", blockEnd: true},
		{name: "blank", line: "   "},
		{name: "no separator", line: "Press [q] to stop"},
		{name: "unknown key", line: "dup_frames=0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := models.NewTimedProgress(30)
			got := NewProgressParser().ParseLine(tt.line, p)
			assert.Equal(t, tt.blockEnd, got)
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}
}

func TestProgressParser_MicrosWinOverOutTime(t *testing.T) {
	pp := NewProgressParser()
	p := models.NewTimedProgress(10)

	pp.ParseLine("out_time_us=2000000", p)
	pp.ParseLine("out_time=00:00:09.000000", p)

	assert.InDelta(t, 0.2, p.Fraction, 1e-9)
	assert.Equal(t, "00:00:09.000000", p.CurrentTime)
}

const progressOutput = `frame=30
fps=0.00
out_time_us=1000000
out_time=00:00:01.000000
total_size=48
speed=N/A
progress=continue
frame=60
fps=59.9
out_time_us=2000000
out_time=00:00:02.000000
total_size=1024
speed=2x
progress=continue
frame=90
out_time_us=3000000
out_time=00:00:03.000000
speed=2.5x
progress=end
`

func TestStreamProgress(t *testing.T) {
	p := models.NewTimedProgress(3)
	var fractions []float64
	var frames []int64

	err := NewProgressParser().StreamProgress(strings.NewReader(progressOutput), p, func(p *models.Progress) {
		fractions = append(fractions, p.Fraction)
		frames = append(frames, p.Frame)
		assert.Equal(t, models.ProgressStateRunning, p.State)
	})
	require.NoError(t, err)

	require.Len(t, fractions, 3)
	assert.InDelta(t, 1.0/3, fractions[0], 1e-9)
	assert.InDelta(t, 2.0/3, fractions[1], 1e-9)
	assert.InDelta(t, 1, fractions[2], 1e-9)
	assert.Equal(t, []int64{30, 60, 90}, frames)
	assert.Equal(t, 2.5, p.Speed)
	assert.Equal(t, "1.0 kB", p.Size)
}

func TestStreamProgress_NoBlocks(t *testing.T) {
	err := NewProgressParser().StreamProgress(strings.NewReader("[concat @ 0x1] Impossible to open 'x.mp4'\n"), models.NewTimedProgress(1), nil)
	assert.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("pipe broken") }

func TestStreamProgress_ReadError(t *testing.T) {
	err := NewProgressParser().StreamProgress(failingReader{}, models.NewTimedProgress(1), nil)
	assert.ErrorContains(t, err, "pipe broken")
}

func TestTimeToSeconds(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"00:00:00.00", 0},
		{"00:00:01.50", 1.5},
		{"00:01:00.00", 60},
		{"01:00:00.00", 3600},
		{"01:23:45.678", 5025.678},
		{"invalid", 0},
		{"00:00", 0},
		{"aa:bb:cc", 0},
		{"00:-1:00.0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.InDelta(t, tt.want, TimeToSeconds(tt.input), 1e-9)
		})
	}
}
