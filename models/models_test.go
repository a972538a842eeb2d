package models

import (
	"testing"
	"time"
)

func TestCamera_StringAndParse(t *testing.T) {
	for _, c := range Cameras {
		parsed, err := ParseCamera(c.String())
		if err != nil {
			t.Fatalf("ParseCamera(%q) failed: %v", c.String(), err)
		}
		if parsed != c {
			t.Errorf("ParseCamera(%q) = %v; want %v", c.String(), parsed, c)
		}
	}

	if _, err := ParseCamera("roof"); err == nil {
		t.Error("Expected error for unknown camera")
	}
	if Camera(9).Valid() {
		t.Error("Camera(9) should be invalid")
	}
}

func TestCategory_DirAndExpand(t *testing.T) {
	tests := []struct {
		category Category
		dir      string
	}{
		{CategorySaved, "SavedClips"},
		{CategorySentry, "SentryClips"},
		{CategoryRecent, "RecentClips"},
		{CategoryCustom, ""},
	}
	for _, tt := range tests {
		if got := tt.category.Dir(); got != tt.dir {
			t.Errorf("%s.Dir() = %q; want %q", tt.category, got, tt.dir)
		}
	}

	if got := CategoryAll.Expand(); len(got) != 3 {
		t.Errorf("Expected all to expand to 3 categories, got %v", got)
	}
	if got := CategorySaved.Expand(); len(got) != 1 || got[0] != CategorySaved {
		t.Errorf("Expected saved to expand to itself, got %v", got)
	}

	if _, err := ParseCategory("archive"); err == nil {
		t.Error("Expected error for unknown category")
	}
}

func TestEvent_StableIDAndCameras(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	e := &Event{
		Segments: map[Camera][]Segment{
			CameraBack:  {{Path: "/c/back1.mp4", Camera: CameraBack, Start: start}},
			CameraRight: {{Path: "/c/right1.mp4", Camera: CameraRight, Start: start}},
		},
	}

	if id := e.StableID(); id != "/c/back1.mp4" {
		t.Errorf("Expected stable id from back camera, got %q", id)
	}

	cams := e.Cameras()
	if len(cams) != 2 || cams[0] != CameraBack || cams[1] != CameraRight {
		t.Errorf("Unexpected cameras %v", cams)
	}

	if err := e.Validate(); err == nil {
		t.Error("Expected validation error for empty id")
	}
	e.ID = e.StableID()
	if err := e.Validate(); err != nil {
		t.Errorf("Unexpected validation error: %v", err)
	}
}

func TestSegment_Validate(t *testing.T) {
	if err := (Segment{Path: "  ", Camera: CameraFront}).Validate(); err == nil {
		t.Error("Expected error for blank path")
	}
	if err := (Segment{Path: "a.mp4", Camera: Camera(7)}).Validate(); err == nil {
		t.Error("Expected error for invalid camera")
	}
	if err := (Segment{Path: "a.mp4", Camera: CameraLeft}).Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestStreamInfo_Duration(t *testing.T) {
	if d := (StreamInfo{Frames: 1800, FPS: 30}).Duration(); d != 60 {
		t.Errorf("Expected 60s, got %.2f", d)
	}
	if d := (StreamInfo{Frames: 1800}).Duration(); d != 0 {
		t.Errorf("Expected 0 with unknown fps, got %.2f", d)
	}
}
