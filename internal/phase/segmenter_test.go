package phase

import (
	"testing"

	"github.com/freedive-data/apnea.report/internal/dive"
	"github.com/freedive-data/apnea.report/internal/testutil"
	"github.com/freedive-data/apnea.report/internal/velocity"
)

// deepDive builds a 1 Hz dive: descent to 20 m over 20 s, 10 s at the
// bottom, 20 s ascent. HR reads bottomHR whenever the diver is in the
// bottom band (at or below 16 m) and surfaceHR elsewhere.
func deepDive(surfaceHR, bottomHR int) dive.Segment {
	var samples []dive.Sample
	add := func(offset, depth float64) {
		h := surfaceHR
		if depth >= 16 {
			h = bottomHR
		}
		samples = append(samples, dive.Sample{TimeOffset: offset, Depth: depth, HeartRate: &h})
	}
	for i := 0; i <= 19; i++ {
		add(float64(i), float64(i))
	}
	for i := 20; i <= 29; i++ {
		add(float64(i), 20)
	}
	for i := 30; i <= 49; i++ {
		add(float64(i), float64(50-i))
	}
	return dive.Segment{DiveNumber: 1, Samples: samples}
}

func TestDetectThreePhases(t *testing.T) {
	seg := deepDive(80, 55)
	s := NewSegmenter(nil)
	prof := velocity.NewProfiler(nil).Analyze(seg)

	res := s.Detect(seg, prof)
	if len(res.Phases) != 3 {
		t.Fatalf("got %d phases, want 3: %+v", len(res.Phases), res.Phases)
	}

	descent := res.Get(Descent)
	bottom := res.Get(Bottom)
	ascent := res.Get(Ascent)
	if descent == nil || bottom == nil || ascent == nil {
		t.Fatal("missing a phase")
	}

	if descent.StartDepth != 0 {
		t.Errorf("descent starts at %v m", descent.StartDepth)
	}
	if bottom.MaxDepth != 20 {
		t.Errorf("bottom max depth %v, want 20", bottom.MaxDepth)
	}
	// Bottom threshold is 80% of 20 m, so descent hands over at 16 m.
	if descent.EndDepth < 15 || descent.EndDepth > 17 {
		t.Errorf("descent ends at %v m, want about 16", descent.EndDepth)
	}
	if ascent.EndDepth > 1 {
		t.Errorf("ascent ends at %v m, want near surface", ascent.EndDepth)
	}

	if bottom.AvgHR == nil {
		t.Fatal("bottom phase missing HR")
	}
	testutil.AssertInDelta(t, "bottom avg HR", *bottom.AvgHR, 55, 3)

	if res.MinHR == nil || *res.MinHR != 55 {
		t.Errorf("dive-wide min HR = %v, want 55", res.MinHR)
	}
}

func TestDetectSpikeProfile(t *testing.T) {
	// A touch-and-go to 10 m: the bottom band shrinks to the turn itself.
	depths := []float64{0, 3, 6, 10, 6, 3, 0}
	var samples []dive.Sample
	for i, d := range depths {
		samples = append(samples, dive.Sample{TimeOffset: float64(i), Depth: d})
	}
	seg := dive.Segment{DiveNumber: 1, Samples: samples}

	s := NewSegmenter(nil)
	res := s.Detect(seg, velocity.NewProfiler(nil).Analyze(seg))

	if len(res.Phases) != 3 {
		t.Fatalf("got %d phases: %+v", len(res.Phases), res.Phases)
	}
	for i, want := range []Name{Descent, Bottom, Ascent} {
		if res.Phases[i].Name != want {
			t.Errorf("phase %d = %s, want %s", i, res.Phases[i].Name, want)
		}
	}
	if bottom := res.Get(Bottom); bottom.Duration > 1 {
		t.Errorf("bottom duration %v, want the single turn second", bottom.Duration)
	}
}

func TestDetectTooShort(t *testing.T) {
	s := NewSegmenter(nil)
	res := s.Detect(dive.Segment{Samples: make([]dive.Sample, 2)}, velocity.Profile{})
	if len(res.Phases) != 0 {
		t.Fatalf("expected no phases, got %d", len(res.Phases))
	}
}

func TestDetectWithoutHR(t *testing.T) {
	seg := deepDive(80, 55)
	for i := range seg.Samples {
		seg.Samples[i].HeartRate = nil
	}
	s := NewSegmenter(nil)
	res := s.Detect(seg, velocity.NewProfiler(nil).Analyze(seg))

	if res.MinHR != nil {
		t.Error("min HR should be nil without readings")
	}
	for _, ph := range res.Phases {
		if ph.AvgHR != nil || ph.HRChange != nil {
			t.Errorf("%s phase reports HR without readings", ph.Name)
		}
	}
}

func TestTypeHints(t *testing.T) {
	seg := deepDive(80, 55)
	s := NewSegmenter(nil)
	profiler := velocity.NewProfiler(nil)
	prof := profiler.Analyze(seg)
	res := s.Detect(seg, prof)

	avgHR := 75.0
	hints := s.TypeHints(res, prof, &avgHR, res.MinHR)
	// 55 bpm against a 75 average is well under the low-HR ratio.
	if hints.LungVolume == "" {
		t.Error("expected a lung volume hint for a deep HR drop")
	}

	empty := s.TypeHints(Result{}, prof, &avgHR, res.MinHR)
	if empty.Discipline != "" || empty.LungVolume != "" {
		t.Errorf("phaseless dive should have no hints: %+v", empty)
	}
}
