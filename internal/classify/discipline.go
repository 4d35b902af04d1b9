// Package classify scores dives against each freediving discipline and lung
// volume using additive weak-signal evidence, and degrades to an unknown
// label rather than guessing when the signals are too weak or too sparse.
package classify

import (
	"github.com/freedive-data/apnea.report/internal/baseline"
	"github.com/freedive-data/apnea.report/internal/config"
	"github.com/freedive-data/apnea.report/internal/dive"
	"github.com/freedive-data/apnea.report/internal/velocity"
)

// ReasonInsufficientData marks a result that never reached scoring because
// a required input channel was missing.
const ReasonInsufficientData = "insufficient_data"

// Discipline evidence weights. Each signal contributes its full weight or
// nothing; signals never subtract.
const (
	wCVStrong        = 40.0 // CV clearly in one discipline's band
	wCVMid           = 30.0 // CV in the middle band (CWT)
	wSpeedCWT        = 30.0 // descent faster than the CWT threshold
	wSpeedCNF        = 25.0 // descent slower than the CNF threshold
	wSpeedFIM        = 20.0 // descent between the two
	wRhythm          = 30.0 // periodic pulls detected
	wExplosive       = 10.0 // a burst above the explosive rate
	wDisciplineMatch = 15.0 // descent near the user's baseline
)

// RhythmEvidence describes a detected pull cadence.
type RhythmEvidence struct {
	PeakCount     int     `json:"peak_count"`
	MeanInterval  float64 `json:"mean_interval"`  // seconds
	IntervalStdev float64 `json:"interval_stdev"` // seconds
}

// DisciplineEvidence records the signals a discipline verdict was built
// from, for display and debugging.
type DisciplineEvidence struct {
	VelocityCV     float64           `json:"velocity_cv"`
	DescentRate    float64           `json:"descent_rate"`
	MaxDescentRate float64           `json:"max_descent_rate"`
	Rhythm         *RhythmEvidence   `json:"rhythm,omitempty"`
	BaselineMatch  []dive.Discipline `json:"baseline_match,omitempty"`
}

// DisciplineResult is a discipline verdict with its full score breakdown.
type DisciplineResult struct {
	Discipline dive.Discipline             `json:"discipline"`
	Confidence float64                     `json:"confidence"`
	Scores     map[dive.Discipline]float64 `json:"scores,omitempty"`
	Evidence   DisciplineEvidence          `json:"evidence"`
	Reason     string                      `json:"reason,omitempty"`
}

// Classifier scores dives using the configured tuning.
type Classifier struct {
	cfg *config.Tuning
}

// New returns a Classifier. A nil cfg uses the documented defaults.
func New(cfg *config.Tuning) *Classifier {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Classifier{cfg: cfg}
}

// Discipline classifies a dive's propulsion style from its velocity profile,
// personalized by the user's baselines when available. snap may be nil for
// uncalibrated users.
//
// A dive with no usable descent is unclassifiable: without movement there is
// nothing to read propulsion from.
func (c *Classifier) Discipline(prof velocity.Profile, snap *baseline.Snapshot) DisciplineResult {
	if prof.Empty() || prof.DescentRate == 0 {
		return DisciplineResult{Discipline: dive.DisciplineUnknown, Reason: ReasonInsufficientData}
	}

	scores := map[dive.Discipline]float64{
		dive.DisciplineFIM: 0,
		dive.DisciplineCWT: 0,
		dive.DisciplineCNF: 0,
	}
	ev := DisciplineEvidence{
		VelocityCV:     prof.CV,
		DescentRate:    prof.DescentRate,
		MaxDescentRate: prof.MaxDescentRate,
	}

	// Velocity variability. FIM's pull-glide cycle is spiky, CNF's frog
	// kick is the smoothest, CWT sits between.
	switch {
	case prof.CV > c.cfg.GetFIMCVThreshold():
		scores[dive.DisciplineFIM] += wCVStrong
	case prof.CV < c.cfg.GetCNFCVThreshold():
		scores[dive.DisciplineCNF] += wCVStrong
	default:
		scores[dive.DisciplineCWT] += wCVMid
	}

	// Descent speed. Fins are fast, no-fins is slow.
	switch {
	case prof.DescentRate > c.cfg.GetCWTSpeedThreshold():
		scores[dive.DisciplineCWT] += wSpeedCWT
	case prof.DescentRate < c.cfg.GetCNFSpeedThreshold():
		scores[dive.DisciplineCNF] += wSpeedCNF
	default:
		scores[dive.DisciplineFIM] += wSpeedFIM
	}

	// Pull rhythm. Regular pulses a few seconds apart are the FIM
	// signature.
	if mean, stdev, ok := velocity.PeakIntervals(prof.Peaks); ok {
		if mean >= c.cfg.GetRhythmMinInterval() && mean <= c.cfg.GetRhythmMaxInterval() &&
			stdev < c.cfg.GetRhythmMaxStdev() {
			scores[dive.DisciplineFIM] += wRhythm
			ev.Rhythm = &RhythmEvidence{
				PeakCount:     len(prof.Peaks),
				MeanInterval:  mean,
				IntervalStdev: stdev,
			}
		}
	}

	// An explosive burst needs fins.
	if prof.MaxDescentRate > c.cfg.GetExplosiveRate() {
		scores[dive.DisciplineCWT] += wExplosive
	}

	// Baseline proximity. A descent rate close to the user's established
	// rate for a discipline is strong personal evidence.
	if snap != nil {
		margin := c.cfg.GetBaselineRateMargin()
		for _, d := range dive.Disciplines {
			st, ok := snap.DescentByDiscipline[d]
			if !ok || st.Mean <= 0 {
				continue
			}
			if within(prof.DescentRate, st.Mean, margin) {
				scores[d] += wDisciplineMatch
				ev.BaselineMatch = append(ev.BaselineMatch, d)
			}
		}
	}

	best := dive.Disciplines[0]
	for _, d := range dive.Disciplines[1:] {
		if scores[d] > scores[best] {
			best = d
		}
	}

	res := DisciplineResult{
		Discipline: best,
		Confidence: min100(scores[best]),
		Scores:     scores,
		Evidence:   ev,
	}
	if scores[best] < c.cfg.GetMinScore() {
		res.Discipline = dive.DisciplineUnknown
		res.Reason = "low_confidence"
	}
	return res
}

// within reports whether v is inside margin (a fraction) of ref.
func within(v, ref, margin float64) bool {
	diff := v - ref
	if diff < 0 {
		diff = -diff
	}
	return diff < ref*margin
}

func min100(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}
