package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/freedive-data/apnea.report/internal/analysis"
	"github.com/freedive-data/apnea.report/internal/dive"
)

func testDives(t *testing.T) []analysis.Dive {
	t.Helper()

	var samples []dive.Sample
	depths := []float64{0, 2, 4, 6, 8, 10, 10, 10, 8, 6, 4, 2, 0}
	for i, depth := range depths {
		hr := 70 - i
		samples = append(samples, dive.Sample{
			TimeOffset: float64(i),
			Depth:      depth,
			HeartRate:  &hr,
		})
	}

	series := dive.Series{Samples: samples, HasDepth: true, HasHeartRate: true}
	lap := dive.LapBoundary{Duration: 13, MaxDepth: 10, AvgDepth: 6}

	sess, err := analysis.NewAnalyzer(nil).AnalyzeActivity(series, []dive.LapBoundary{lap}, nil)
	if err != nil {
		t.Fatalf("AnalyzeActivity: %v", err)
	}
	return sess.Dives
}

func TestRenderSession(t *testing.T) {
	dives := testDives(t)

	var buf bytes.Buffer
	if err := RenderSession(&buf, "Test Session", dives); err != nil {
		t.Fatalf("RenderSession: %v", err)
	}

	html := buf.String()
	for _, want := range []string{"Depth Profiles", "Heart Rate", "Classification Confidence", "Dive 1"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered dashboard missing %q", want)
		}
	}
}

func TestWriteSessionHTML(t *testing.T) {
	dives := testDives(t)
	path := filepath.Join(t.TempDir(), "session.html")

	if err := WriteSessionHTML(path, "Test Session", dives); err != nil {
		t.Fatalf("WriteSessionHTML: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat report: %v", err)
	}
	if info.Size() == 0 {
		t.Error("report file is empty")
	}
}

func TestSaveProfilePNG(t *testing.T) {
	dives := testDives(t)
	path := filepath.Join(t.TempDir(), "dive1.png")

	if err := SaveProfilePNG(dives[0], path); err != nil {
		t.Fatalf("SaveProfilePNG: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading png: %v", err)
	}
	if len(data) < 8 || string(data[1:4]) != "PNG" {
		t.Error("output is not a PNG file")
	}
}

func TestSaveProfilePNGWithoutSamples(t *testing.T) {
	if err := SaveProfilePNG(analysis.Dive{DiveNumber: 1}, filepath.Join(t.TempDir(), "x.png")); err == nil {
		t.Error("expected error for sample-less dive")
	}
}
