package concatenator

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"teslacam/models"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func seg(path string, offset time.Duration) models.Segment {
	return models.Segment{Path: path, Camera: models.CameraFront, Start: base.Add(offset), HasTime: true}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
}

func TestValidateSegments(t *testing.T) {
	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a-front.mp4")
	b := filepath.Join(tmpDir, "b-front.mp4")
	touch(t, a)
	touch(t, b)
	gone := filepath.Join(tmpDir, "gone-front.mp4")

	tests := []struct {
		name            string
		segments        []models.Segment
		expectAvailable int
		expectMissing   int
		expectError     bool
	}{
		{name: "empty", expectError: true},
		{name: "all present", segments: []models.Segment{seg(a, 0), seg(b, time.Minute)}, expectAvailable: 2},
		{name: "one missing", segments: []models.Segment{seg(a, 0), seg(gone, time.Minute)}, expectAvailable: 1, expectMissing: 1},
		{name: "all missing", segments: []models.Segment{seg(gone, 0)}, expectMissing: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConcatenator(true)
			available, missing, err := c.validateSegments(tt.segments)

			if tt.expectError && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if len(available) != tt.expectAvailable {
				t.Errorf("Expected %d available, got %d", tt.expectAvailable, len(available))
			}
			if len(missing) != tt.expectMissing {
				t.Errorf("Expected %d missing, got %d", tt.expectMissing, len(missing))
			}
		})
	}
}

func TestValidateSegments_SortsByStart(t *testing.T) {
	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a.mp4")
	b := filepath.Join(tmpDir, "b.mp4")
	touch(t, a)
	touch(t, b)

	available, _, err := NewConcatenator(false).validateSegments([]models.Segment{seg(b, time.Minute), seg(a, 0)})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if available[0].Path != a || available[1].Path != b {
		t.Errorf("Segments not sorted by start: %v", available)
	}
}

func TestCheckForGaps(t *testing.T) {
	tests := []struct {
		name        string
		segments    []models.Segment
		expectError bool
	}{
		{name: "contiguous", segments: []models.Segment{seg("a", 0), seg("b", time.Minute), seg("c", 2*time.Minute)}},
		{name: "single gap", segments: []models.Segment{seg("a", 0), seg("b", 5*time.Minute)}, expectError: true},
		{name: "single segment", segments: []models.Segment{seg("a", 0)}},
		{name: "empty"},
		{
			name:     "untimed ignored",
			segments: []models.Segment{seg("a", 0), {Path: "b"}, seg("c", time.Minute)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConcatenator(true).checkForGaps(tt.segments)
			if tt.expectError && err == nil {
				t.Error("Expected gap error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestSetSegmentSpacing(t *testing.T) {
	c := NewConcatenator(true).SetSegmentSpacing(10 * time.Minute)
	if err := c.checkForGaps([]models.Segment{seg("a", 0), seg("b", 5*time.Minute)}); err != nil {
		t.Errorf("Unexpected error with wide spacing: %v", err)
	}
	c.SetSegmentSpacing(0)
	if c.spacing != 10*time.Minute {
		t.Errorf("Non-positive spacing should be ignored, got %s", c.spacing)
	}
}

func TestCreateConcatFile(t *testing.T) {
	tmpDir := t.TempDir()
	first := filepath.Join(tmpDir, "2024-03-01_10-00-00-front.mp4")
	quoted := filepath.Join(tmpDir, "it's-front.mp4")
	touch(t, first)
	touch(t, quoted)

	c := NewConcatenator(true)
	concatFile, err := c.createConcatFile([]models.Segment{seg(first, 0), seg(quoted, time.Minute)})
	if err != nil {
		t.Fatalf("createConcatFile failed: %v", err)
	}
	defer os.Remove(concatFile)

	content, err := os.ReadFile(concatFile)
	if err != nil {
		t.Fatalf("Failed to read concat file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %q", len(lines), content)
	}
	if lines[0] != "file '"+first+"'" {
		t.Errorf("Unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[1], `it'\''s-front.mp4`) {
		t.Errorf("Quote not escaped: %q", lines[1])
	}
}

func TestTotalDuration(t *testing.T) {
	c := NewConcatenator(false)
	c.probe = func(ctx context.Context, path string) (models.StreamInfo, error) {
		return models.StreamInfo{Frames: 60, FPS: 30}, nil
	}
	if got := c.totalDuration(context.Background(), []models.Segment{seg("a", 0), seg("b", time.Minute)}); got != 4 {
		t.Errorf("Expected 4s, got %v", got)
	}

	c.probe = func(ctx context.Context, path string) (models.StreamInfo, error) {
		return models.StreamInfo{}, errors.New("probe failed")
	}
	if got := c.totalDuration(context.Background(), []models.Segment{seg("a", 0)}); got != 0 {
		t.Errorf("Expected 0 when probe fails, got %v", got)
	}
}

func TestConcatenate_StrictMode(t *testing.T) {
	tmpDir := t.TempDir()
	present := filepath.Join(tmpDir, "present.mp4")
	touch(t, present)

	segments := []models.Segment{seg(present, 0), seg(filepath.Join(tmpDir, "missing.mp4"), time.Minute)}
	err := NewConcatenator(true).Concatenate(context.Background(), segments, filepath.Join(tmpDir, "out.mp4"))
	if err == nil || !strings.Contains(err.Error(), "strict mode") {
		t.Errorf("Expected strict mode error, got %v", err)
	}
}

func TestConcatenate_NothingAvailable(t *testing.T) {
	tmpDir := t.TempDir()
	segments := []models.Segment{seg(filepath.Join(tmpDir, "missing.mp4"), 0)}
	err := NewConcatenator(false).Concatenate(context.Background(), segments, filepath.Join(tmpDir, "out.mp4"))
	if err == nil || !strings.Contains(err.Error(), "no segments available") {
		t.Errorf("Expected no segments error, got %v", err)
	}
}

func TestConcatenateEvent_NoSegments(t *testing.T) {
	ev := &models.Event{ID: "ev", Segments: map[models.Camera][]models.Segment{}}
	if err := NewConcatenator(false).ConcatenateEvent(context.Background(), ev, models.CameraBack, "out.mp4"); err == nil {
		t.Error("Expected error for camera without segments")
	}
}

func makeClip(t *testing.T, path string, seconds int) {
	t.Helper()
	cmd := exec.Command("ffmpeg", "-hide_banner", "-loglevel", "error", "-f", "lavfi",
		"-i", "testsrc=size=64x48:rate=10:duration="+strconv.Itoa(seconds),
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "-y", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("ffmpeg cannot build test clip: %v: %s", err, out)
	}
}

func TestConcatenate_FFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}

	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a-front.mp4")
	b := filepath.Join(tmpDir, "b-front.mp4")
	makeClip(t, a, 1)
	makeClip(t, b, 1)
	out := filepath.Join(tmpDir, "joined.mp4")

	var last *models.Progress
	c := NewConcatenator(false).SetProgressCallback(func(p *models.Progress) {
		cp := *p
		last = &cp
	})
	segments := []models.Segment{seg(a, 0), seg(b, time.Minute), seg(filepath.Join(tmpDir, "gone.mp4"), 2*time.Minute)}
	if err := c.Concatenate(context.Background(), segments, out); err != nil {
		t.Fatalf("Concatenate failed: %v", err)
	}

	if _, err := os.Stat(out); err != nil {
		t.Fatalf("Output missing: %v", err)
	}
	if last == nil || last.State != models.ProgressStateCompleted || last.Fraction != 1 {
		t.Errorf("Expected completed progress, got %+v", last)
	}
}
