package dive

import (
	"errors"
	"testing"
	"time"

	"github.com/freedive-data/apnea.report/internal/testutil"
)

func flatSeries(n int) Series {
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{TimeOffset: float64(i), Depth: float64(i % 10)}
	}
	return Series{Samples: samples, HasDepth: true}
}

func TestSplitRequiresDepthChannel(t *testing.T) {
	_, err := Split(Series{HasDepth: false}, []LapBoundary{{Duration: 10}})
	if !errors.Is(err, ErrMissingDepthChannel) {
		t.Fatalf("got %v, want ErrMissingDepthChannel", err)
	}
}

func TestSplitRebasesOffsetsPerLap(t *testing.T) {
	series := flatSeries(30)
	laps := []LapBoundary{
		{StartTime: time.Date(2025, 7, 10, 9, 0, 0, 0, time.UTC), Duration: 10},
		{StartTime: time.Date(2025, 7, 10, 9, 5, 0, 0, time.UTC), Duration: 20},
	}

	segments, err := Split(series, laps)
	testutil.AssertNoError(t, err)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}

	if segments[0].DiveNumber != 1 || segments[1].DiveNumber != 2 {
		t.Errorf("dive numbers %d, %d", segments[0].DiveNumber, segments[1].DiveNumber)
	}
	if len(segments[0].Samples) != 10 || len(segments[1].Samples) != 20 {
		t.Fatalf("sample counts %d, %d", len(segments[0].Samples), len(segments[1].Samples))
	}

	// the second lap's first sample was at activity offset 10
	if segments[1].Samples[0].TimeOffset != 0 {
		t.Errorf("second lap not rebased: first offset %v", segments[1].Samples[0].TimeOffset)
	}
	if segments[1].Samples[0].Depth != series.Samples[10].Depth {
		t.Errorf("second lap starts at wrong sample")
	}
	for _, s := range segments[1].Samples {
		if s.TimeOffset < 0 || s.TimeOffset >= laps[1].Duration {
			t.Errorf("offset %v outside [0, %v)", s.TimeOffset, laps[1].Duration)
		}
	}
}

func TestSplitEmptyLapKeepsNumbering(t *testing.T) {
	series := flatSeries(10)
	laps := []LapBoundary{
		{Duration: 10},
		{Duration: 15}, // no samples left for this one
	}

	segments, err := Split(series, laps)
	testutil.AssertNoError(t, err)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if len(segments[1].Samples) != 0 {
		t.Errorf("expected empty second segment, got %d samples", len(segments[1].Samples))
	}
	if segments[1].DiveNumber != 2 {
		t.Errorf("empty segment numbered %d, want 2", segments[1].DiveNumber)
	}
}

func TestSplitDropsSamplesBetweenLaps(t *testing.T) {
	// Shift offsets so the first five samples precede the first lap window,
	// like surface noise recorded before the watch opened lap one.
	series := flatSeries(30)
	for i := range series.Samples {
		series.Samples[i].TimeOffset = float64(i) - 5
	}
	laps := []LapBoundary{{Duration: 10}, {Duration: 10}}

	segments, err := Split(series, laps)
	testutil.AssertNoError(t, err)
	if len(segments[0].Samples) != 10 {
		t.Errorf("first lap got %d samples, want 10", len(segments[0].Samples))
	}
}

func TestParseLabels(t *testing.T) {
	if got := ParseDiscipline("CWT"); got != DisciplineCWT {
		t.Errorf("ParseDiscipline(CWT) = %q", got)
	}
	if got := ParseDiscipline("DYN"); got != DisciplineUnknown {
		t.Errorf("ParseDiscipline(DYN) = %q, want unknown", got)
	}
	if got := ParseLungVolume("frc"); got != LungFRC {
		t.Errorf("ParseLungVolume(frc) = %q", got)
	}
	if got := ParseLungVolume(""); got != LungUnknown {
		t.Errorf("ParseLungVolume(empty) = %q, want unknown", got)
	}
}
