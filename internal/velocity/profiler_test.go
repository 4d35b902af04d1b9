package velocity

import (
	"math"
	"testing"

	"github.com/freedive-data/apnea.report/internal/dive"
	"github.com/freedive-data/apnea.report/internal/monitoring"
	"github.com/freedive-data/apnea.report/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

// rampSegment descends at a constant rate for down seconds, then ascends
// back at the same rate.
func rampSegment(rate float64, down int) dive.Segment {
	var samples []dive.Sample
	for i := 0; i <= 2*down; i++ {
		depth := rate * float64(i)
		if i > down {
			depth = rate * float64(2*down-i)
		}
		samples = append(samples, dive.Sample{TimeOffset: float64(i), Depth: depth})
	}
	return dive.Segment{DiveNumber: 1, Samples: samples}
}

func TestAnalyzeConstantRamp(t *testing.T) {
	p := NewProfiler(nil)
	prof := p.Analyze(rampSegment(0.5, 20))

	if prof.Empty() {
		t.Fatal("expected a profile for a 41-sample dive")
	}
	if len(prof.Series) != 41 {
		t.Fatalf("series length %d, want 41", len(prof.Series))
	}

	// Smoothing bleeds a little speed at the turn, so allow slack.
	testutil.AssertInDelta(t, "descent rate", prof.DescentRate, 0.5, 0.06)
	testutil.AssertInDelta(t, "ascent rate", prof.AscentRate, 0.5, 0.06)
	if prof.MaxDescentRate > 0.55 {
		t.Errorf("max descent rate %v above ramp speed", prof.MaxDescentRate)
	}
}

func TestAnalyzeConstantDescentHasLowCV(t *testing.T) {
	p := NewProfiler(nil)
	var samples []dive.Sample
	for i := 0; i <= 30; i++ {
		samples = append(samples, dive.Sample{TimeOffset: float64(i), Depth: 0.5 * float64(i)})
	}
	prof := p.Analyze(dive.Segment{DiveNumber: 1, Samples: samples})
	// Edge smoothing leaves a little spread, but a steady pace stays well
	// under the no-fins threshold.
	if prof.CV > 0.2 {
		t.Errorf("CV %v too high for a constant descent", prof.CV)
	}
}

func TestAnalyzeTooFewSamples(t *testing.T) {
	p := NewProfiler(nil)
	for _, n := range []int{0, 1} {
		seg := dive.Segment{DiveNumber: 1, Samples: make([]dive.Sample, n)}
		if prof := p.Analyze(seg); !prof.Empty() {
			t.Errorf("%d samples: expected empty profile", n)
		}
	}
}

func TestAnalyzeSkipsNonMonotonicTimestamps(t *testing.T) {
	p := NewProfiler(nil)
	seg := dive.Segment{DiveNumber: 1, Samples: []dive.Sample{
		{TimeOffset: 0, Depth: 0},
		{TimeOffset: 1, Depth: 1},
		{TimeOffset: 1, Depth: 5}, // duplicate timestamp must not divide by zero
		{TimeOffset: 2, Depth: 2},
		{TimeOffset: 3, Depth: 3},
	}}
	prof := p.Analyze(seg)
	for i, v := range prof.Series {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			t.Fatalf("series[%d] = %v", i, v)
		}
	}
}

func TestDetectPeaksFindsPulls(t *testing.T) {
	// Pulses at indices 2, 6, 10 over a quiet floor.
	series := []float64{0.1, 0.2, 0.9, 0.2, 0.1, 0.2, 0.9, 0.2, 0.1, 0.2, 0.9, 0.2}
	peaks := detectPeaks(series, 0.4)
	want := []int{2, 6, 10}
	if len(peaks) != len(want) {
		t.Fatalf("got peaks %v, want %v", peaks, want)
	}
	for i := range want {
		if peaks[i] != want[i] {
			t.Fatalf("got peaks %v, want %v", peaks, want)
		}
	}
}

func TestPeakIntervals(t *testing.T) {
	mean, stdev, ok := PeakIntervals([]int{2, 5, 8, 11})
	if !ok {
		t.Fatal("expected ok for 4 peaks")
	}
	testutil.AssertInDelta(t, "mean interval", mean, 3, 1e-9)
	testutil.AssertInDelta(t, "interval stdev", stdev, 0, 1e-9)

	if _, _, ok := PeakIntervals([]int{2, 5}); ok {
		t.Error("two peaks should not produce a rhythm")
	}
	if _, _, ok := PeakIntervals(nil); ok {
		t.Error("no peaks should not produce a rhythm")
	}
}

func TestMovingAverageEdges(t *testing.T) {
	data := []float64{1, 1, 1, 1, 1}
	out := movingAverage(data, 3)
	if len(out) != len(data) {
		t.Fatalf("length changed: %d", len(out))
	}
	for i, v := range out {
		if math.Abs(v-1) > 1e-12 {
			t.Errorf("out[%d] = %v, want 1", i, v)
		}
	}

	// window < 2 is a copy
	out = movingAverage([]float64{1, 2, 3}, 1)
	if out[1] != 2 {
		t.Errorf("window 1 should not smooth: %v", out)
	}
}

func TestBuoyancyBands(t *testing.T) {
	p := NewProfiler(nil)

	// Slow through 0-2 m, fast through 2-5 m: a positively buoyant entry.
	var samples []dive.Sample
	depth := 0.0
	offset := 0.0
	for depth < 2 {
		samples = append(samples, dive.Sample{TimeOffset: offset, Depth: depth})
		depth += 0.2
		offset++
	}
	for depth < 6 {
		samples = append(samples, dive.Sample{TimeOffset: offset, Depth: depth})
		depth += 0.6
		offset++
	}
	seg := dive.Segment{DiveNumber: 1, Samples: samples}
	prof := p.Analyze(seg)

	b := p.Buoyancy(seg, prof)
	if b.AvgVelocity0to2m == nil || b.AvgVelocity2to5m == nil || b.Acceleration == nil {
		t.Fatalf("expected both bands populated: %+v", b)
	}
	if *b.AvgVelocity2to5m <= *b.AvgVelocity0to2m {
		t.Errorf("deep band %v should be faster than shallow %v",
			*b.AvgVelocity2to5m, *b.AvgVelocity0to2m)
	}
	if *b.Acceleration <= 0 {
		t.Errorf("acceleration %v, want positive", *b.Acceleration)
	}
	if !b.Struggle {
		t.Error("expected buoyancy struggle for a 3x speed-up")
	}
}

func TestBuoyancyShortSegment(t *testing.T) {
	p := NewProfiler(nil)
	seg := rampSegment(0.5, 3)
	seg.Samples = seg.Samples[:7]
	b := p.Buoyancy(seg, p.Analyze(seg))
	if b.AvgVelocity0to2m != nil || b.Struggle {
		t.Errorf("short segment should return zero value: %+v", b)
	}
}
