package phase

import (
	"github.com/freedive-data/apnea.report/internal/velocity"
)

// Hint thresholds are deliberately looser than the scoring classifiers use;
// hints are advisory text for the labeling UI, never classifier input.
const (
	hintFIMCV       = 0.3
	hintCNFCV       = 0.15
	hintCWTSpeed    = 0.7  // m/s
	hintRhythmStdev = 2.0  // seconds
	hintLowHRRatio  = 0.85 // min HR vs dive average
	hintFlatHRDrop  = 5.0  // bpm
)

// Hints are free-text suggestions derived from phase characteristics.
type Hints struct {
	Discipline   string   `json:"discipline_hint,omitempty"`
	FIMRhythm    bool     `json:"fim_rhythm_detected,omitempty"`
	PullInterval *float64 `json:"pull_interval,omitempty"` // seconds
	LungVolume   string   `json:"lung_volume_hint,omitempty"`
}

// TypeHints inspects the velocity profile and HR envelope and suggests a
// discipline and lung-volume reading in plain words. avgHR is the dive's lap
// average; minHR comes from Detect.
func (s *Segmenter) TypeHints(res Result, prof velocity.Profile, avgHR, minHR *float64) Hints {
	var h Hints
	if len(res.Phases) == 0 {
		return h
	}

	if res.Get(Descent) != nil && !prof.Empty() {
		switch {
		case prof.CV > hintFIMCV:
			h.Discipline = "FIM (high velocity variation)"
		case prof.CV < hintCNFCV:
			h.Discipline = "CNF (very smooth)"
		case prof.DescentRate > hintCWTSpeed:
			h.Discipline = "CWT (high speed)"
		}

		if mean, stdev, ok := velocity.PeakIntervals(prof.Peaks); ok && stdev < hintRhythmStdev {
			h.FIMRhythm = true
			h.PullInterval = &mean
		}
	}

	if avgHR != nil && minHR != nil {
		switch {
		case *minHR < *avgHR*hintLowHRRatio:
			h.LungVolume = "FRC or Exhale (low HR)"
		case *avgHR-*minHR < hintFlatHRDrop:
			h.LungVolume = "Full lung (minimal HR drop)"
		}
	}

	return h
}
