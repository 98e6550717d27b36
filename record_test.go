package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stridesync/stridesync/internal/recorder"
)

const testGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="stridesync-test">
  <trk><trkseg>
    <trkpt lat="52.5" lon="13.4"><ele>34.0</ele><time>2025-06-01T08:00:00Z</time></trkpt>
  </trkseg></trk>
</gpx>`

func TestNewSampleSourceSelection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.gpx")
	if err := os.WriteFile(path, []byte(testGPX), 0644); err != nil {
		t.Fatalf("write gpx: %v", err)
	}

	src, closeSrc, err := newSampleSource(path, false, nil)
	if err != nil {
		t.Fatalf("gpx source: %v", err)
	}
	if _, ok := src.(*recorder.GPXSource); !ok {
		t.Fatalf("--gpx selected %T, want GPX replay", src)
	}
	if err := closeSrc(); err != nil {
		t.Fatalf("close gpx source: %v", err)
	}

	src, closeSrc, err = newSampleSource("", true, strings.NewReader(""))
	if err != nil {
		t.Fatalf("stdin source: %v", err)
	}
	if _, ok := src.(*recorder.JSONLSource); !ok {
		t.Fatalf("--stdin selected %T, want JSON-lines reader", src)
	}
	closeSrc()

	if _, _, err := newSampleSource("", false, nil); err == nil {
		t.Fatal("expected error when neither flag is set")
	}
}
