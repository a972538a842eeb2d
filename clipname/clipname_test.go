package clipname

import (
	"path/filepath"
	"testing"
	"time"

	"teslacam/models"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantOK   bool
		wantCam  models.Camera
		wantTime time.Time
	}{
		{"front", "2019-05-21_10-15-34-front.mp4", true, models.CameraFront, time.Date(2019, 5, 21, 10, 15, 34, 0, time.UTC)},
		{"back with dir", "/media/TeslaCam/SavedClips/2019-05-21_10-15-34-back.mp4", true, models.CameraBack, time.Date(2019, 5, 21, 10, 15, 34, 0, time.UTC)},
		{"left repeater", "2020-01-01_00-00-00-left_repeater.mp4", true, models.CameraLeft, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"right alias", "2020-01-01_23-59-59-right.mp4", true, models.CameraRight, time.Date(2020, 1, 1, 23, 59, 59, 0, time.UTC)},
		{"unknown tag", "2019-05-21_10-15-34-roof.mp4", false, 0, time.Time{}},
		{"bad date", "2019-13-21_10-15-34-front.mp4", false, models.CameraFront, time.Time{}},
		{"no tag", "event.mp4", false, 0, time.Time{}},
		{"garbage stem", "clip-front.mp4", false, models.CameraFront, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, cam, ok := Parse(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok = %v; want %v", tt.input, ok, tt.wantOK)
			}
			if cam != tt.wantCam {
				t.Errorf("Parse(%q) camera = %v; want %v", tt.input, cam, tt.wantCam)
			}
			if !ts.Equal(tt.wantTime) {
				t.Errorf("Parse(%q) time = %v; want %v", tt.input, ts, tt.wantTime)
			}
		})
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	ts := time.Date(2023, 7, 4, 18, 30, 5, 0, time.UTC)
	for _, cam := range models.Cameras {
		name := Format(ts, cam)
		got, gotCam, ok := Parse(name)
		if !ok {
			t.Fatalf("Parse(Format(...)) failed for %s", name)
		}
		if !got.Equal(ts) || gotCam != cam {
			t.Errorf("Round trip mismatch for %s: %v %v", name, got, gotCam)
		}
	}

	if got := Format(ts, models.CameraLeft); got != "2023-07-04_18-30-05-left_repeater.mp4" {
		t.Errorf("Unexpected canonical name %q", got)
	}
}

func TestSibling(t *testing.T) {
	path := filepath.Join("SavedClips", "2019-05-21_10-15-34-front.mp4")

	got := Sibling(path, models.CameraRight)
	if len(got) != 2 {
		t.Fatalf("Expected canonical and alias candidates, got %v", got)
	}
	if got[0] != filepath.Join("SavedClips", "2019-05-21_10-15-34-right_repeater.mp4") {
		t.Errorf("Unexpected canonical sibling %q", got[0])
	}
	if got[1] != filepath.Join("SavedClips", "2019-05-21_10-15-34-right.mp4") {
		t.Errorf("Unexpected alias sibling %q", got[1])
	}

	if Sibling("nothing.mp4", models.CameraBack) != nil {
		t.Error("Expected nil siblings for untagged name")
	}
}

func TestToSegment(t *testing.T) {
	seg, ok := ToSegment("2019-05-21_10-15-34-back.mp4")
	if !ok || !seg.HasTime || seg.Camera != models.CameraBack {
		t.Errorf("Unexpected segment %+v ok=%v", seg, ok)
	}

	seg, ok = ToSegment("broken-front.mp4")
	if !ok || seg.HasTime || seg.Camera != models.CameraFront {
		t.Errorf("Expected untimed front segment, got %+v ok=%v", seg, ok)
	}

	if _, ok := ToSegment("readme.txt"); ok {
		t.Error("Expected untagged file to be rejected")
	}
}
