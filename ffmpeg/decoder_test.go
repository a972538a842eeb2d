package ffmpeg

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teslacam/command/encode"
	"teslacam/ffprobe"
	"teslacam/models"
	"teslacam/track"
)

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	if _, err := exec.LookPath(ffprobe.Binary); err != nil {
		t.Skip("ffprobe not installed")
	}
}

// makeClip encodes a short synthetic clip and returns its path.
func makeClip(t *testing.T, dir, name string, seconds, fps int) string {
	t.Helper()
	out := filepath.Join(dir, name)
	cmd := exec.Command("ffmpeg", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=size=64x48:rate="+strconv.Itoa(fps)+":duration="+strconv.Itoa(seconds),
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "-y", out)
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cannot create test clip: %v (%s)", err, b)
	}
	return out
}

// makeCounterClip encodes a losslessly coded clip whose luma rises with the
// frame number, so every decoded frame identifies itself.
func makeCounterClip(t *testing.T, dir, name string, frames, fps int) string {
	t.Helper()
	out := filepath.Join(dir, name)
	src := "color=c=black:s=32x16:r=" + strconv.Itoa(fps) +
		",format=yuv444p,geq=lum=16+N*5:cb=128:cr=128"
	cmd := exec.Command("ffmpeg", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", src, "-frames:v", strconv.Itoa(frames),
		"-c:v", "libx264", "-qp", "0", "-pix_fmt", "yuv444p", "-y", out)
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cannot create counter clip: %v (%s)", err, b)
	}
	return out
}

// readMarkers decodes the rest of the stream and returns each frame's
// top-left red value.
func readMarkers(t *testing.T, dec track.Decoder) []byte {
	t.Helper()
	var out []byte
	for {
		img, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, img.Pix[0])
	}
}

func TestOpener_CachesProbe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "2019-05-21_10-00-00-front.mp4")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	calls := 0
	o := NewOpener()
	o.probe = func(_ context.Context, _ string) (models.StreamInfo, error) {
		calls++
		return models.StreamInfo{Frames: 10, FPS: 36, Width: 4, Height: 2}, nil
	}

	for i := 0; i < 3; i++ {
		dec, err := o.Open(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, 10, dec.Info().Frames)
		require.NoError(t, dec.Close())
	}
	assert.Equal(t, 1, calls)

	// rewriting the file invalidates the entry
	require.NoError(t, os.WriteFile(path, []byte("longer"), 0o644))
	_, err := o.Open(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestOpener_MissingFile(t *testing.T) {
	_, err := NewOpener().Open(context.Background(), "/nonexistent/a-front.mp4")
	assert.Error(t, err)
}

func TestOpener_ProbeError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a-front.mp4")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	o := NewOpener()
	o.probe = func(context.Context, string) (models.StreamInfo, error) {
		return models.StreamInfo{}, errors.New("moov atom not found")
	}
	_, err := o.Open(context.Background(), path)
	assert.Error(t, err)
}

func TestDecoder_SeekOutOfRange(t *testing.T) {
	d := &Decoder{info: models.StreamInfo{Frames: 5, FPS: 10, Width: 2, Height: 2}, frameSize: 16}
	assert.Error(t, d.Seek(5))
	assert.Error(t, d.Seek(-1))
	assert.NoError(t, d.Seek(4))
	assert.NoError(t, d.Close())
}

func TestDecoder_BuilderArgs(t *testing.T) {
	tests := []struct {
		name    string
		info    models.StreamInfo
		seek    int
		want    []string
		notWant []string
	}{
		{
			name:    "from start",
			info:    models.StreamInfo{Frames: 20, FPS: 10, Width: 2, Height: 2},
			want:    []string{"-frames:v 20"},
			notWant: []string{"-ss"},
		},
		{
			name: "seek caps remaining frames",
			info: models.StreamInfo{Frames: 20, FPS: 10, Width: 2, Height: 2},
			seek: 15,
			want: []string{"-ss 00:00:01.450000", "-frames:v 5"},
		},
		{
			name: "36 fps lands before the frame",
			info: models.StreamInfo{Frames: 2160, FPS: 36, Width: 2, Height: 2},
			seek: 1,
			want: []string{"-ss 00:00:00.013889", "-frames:v 2159"},
		},
		{
			name:    "unknown frame count is not capped",
			info:    models.StreamInfo{FPS: 0, Width: 2, Height: 2},
			seek:    3,
			want:    []string{"-ss 00:00:00.083333"},
			notWant: []string{"-frames:v"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Decoder{path: "in.mp4", info: tt.info, frameSize: 16}
			require.NoError(t, d.Seek(tt.seek))
			args := strings.Join(d.builder().BuildArgs(), " ")
			for _, w := range tt.want {
				assert.Contains(t, args, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, args, w)
			}
		})
	}
}

func TestDecoder_ReadsAllFrames(t *testing.T) {
	requireFFmpeg(t)
	clip := makeClip(t, t.TempDir(), "2019-05-21_10-00-00-front.mp4", 2, 10)

	dec, err := NewOpener().Open(context.Background(), clip)
	require.NoError(t, err)
	defer dec.Close()

	info := dec.Info()
	assert.Equal(t, 64, info.Width)
	assert.Equal(t, 48, info.Height)
	assert.Equal(t, 20, info.Frames)

	n := 0
	for {
		img, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
		n++
	}
	assert.Equal(t, info.Frames, n)

	require.NoError(t, dec.Seek(15))
	read := 0
	for {
		if _, err := dec.ReadFrame(); errors.Is(err, io.EOF) {
			break
		}
		read++
	}
	assert.Equal(t, 5, read)
}

func TestDecoder_SeekLandsOnFrame(t *testing.T) {
	requireFFmpeg(t)
	for _, fps := range []int{36, 30} {
		t.Run(strconv.Itoa(fps)+"fps", func(t *testing.T) {
			clip := makeCounterClip(t, t.TempDir(), "2019-05-21_10-00-00-front.mp4", 40, fps)

			dec, err := NewOpener().Open(context.Background(), clip)
			require.NoError(t, err)
			defer dec.Close()
			require.Equal(t, 40, dec.Info().Frames)

			all := readMarkers(t, dec)
			require.Len(t, all, 40)
			for i := 1; i < len(all); i++ {
				require.Greater(t, all[i], all[i-1], "frame %d not distinguishable", i)
			}

			for _, k := range []int{1, 2, 3, 7, 17, 18, 35, 39} {
				require.NoError(t, dec.Seek(k))
				rest := readMarkers(t, dec)
				require.Len(t, rest, 40-k, "frames after seek(%d)", k)
				assert.Equal(t, all[k], rest[0], "seek(%d) decoded the wrong frame", k)
			}
		})
	}
}

func TestDecoder_TrackSeekRoundTrip(t *testing.T) {
	requireFFmpeg(t)
	dir := t.TempDir()
	a := makeCounterClip(t, dir, "2019-05-21_10-00-00-front.mp4", 10, 36)
	b := makeCounterClip(t, dir, "2019-05-21_10-01-00-front.mp4", 7, 36)

	dec, err := NewOpener().Open(context.Background(), a)
	require.NoError(t, err)
	markers := readMarkers(t, dec)
	require.NoError(t, dec.Close())
	require.Len(t, markers, 10)

	tr, err := track.Open(context.Background(), models.CameraFront, NewOpener(), []string{a, b})
	require.NoError(t, err)
	defer tr.Close()
	require.Equal(t, 17, tr.Total())

	// both clips number their frames from zero
	for _, k := range []int{3, 11, 16, 9, 0, 13} {
		require.NoError(t, tr.Seek(k))
		assert.Equal(t, k, tr.Position())

		img, err := tr.ReadNext()
		require.NoError(t, err)
		assert.Equal(t, k+1, tr.Position(), "position after reading frame %d", k)

		local := k
		if k >= 10 {
			local = k - 10
		}
		assert.Equal(t, markers[local], img.Pix[0], "seek(%d)", k)
	}
}

func TestDecoder_WithSegmentTrack(t *testing.T) {
	requireFFmpeg(t)
	dir := t.TempDir()
	a := makeClip(t, dir, "2019-05-21_10-00-00-front.mp4", 1, 10)
	b := makeClip(t, dir, "2019-05-21_10-01-00-front.mp4", 1, 10)

	tr, err := track.Open(context.Background(), models.CameraFront, NewOpener(), []string{a, b})
	require.NoError(t, err)
	defer tr.Close()

	assert.Equal(t, 20, tr.Total())
	require.NoError(t, tr.Seek(12))
	_, err = tr.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, 13, tr.Position())
}

func TestEncoderSink_WritesFile(t *testing.T) {
	requireFFmpeg(t)
	out := filepath.Join(t.TempDir(), "out.mp4")

	builder := encode.NewEncodeBuilder(out).SetFrameRate(10).SetPreset("ultrafast")
	sink, err := NewEncoderSink(context.Background(), builder, 64, 48)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 64, 48))
		img.Set(i, i, color.RGBA{R: 255, A: 255})
		require.NoError(t, sink.WriteFrame(img))
	}
	assert.Equal(t, 10, sink.Written())
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	info, err := ffprobe.ProbeVideo(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, 10, info.Frames)
	assert.Equal(t, 64, info.Width)
}

func TestEncoderSink_RejectsWrongSize(t *testing.T) {
	requireFFmpeg(t)
	out := filepath.Join(t.TempDir(), "out.mp4")

	sink, err := NewEncoderSink(context.Background(), encode.NewEncodeBuilder(out).SetFrameRate(10), 64, 48)
	require.NoError(t, err)
	defer sink.Abort()

	err = sink.WriteFrame(image.NewRGBA(image.Rect(0, 0, 32, 32)))
	assert.Error(t, err)
}

func TestNewEncoderSink_InvalidSettings(t *testing.T) {
	_, err := NewEncoderSink(context.Background(), encode.NewEncodeBuilder("o.mp4"), 64, 48)
	assert.Error(t, err, "missing frame rate")
}
