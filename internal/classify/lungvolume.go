package classify

import (
	"github.com/freedive-data/apnea.report/internal/baseline"
	"github.com/freedive-data/apnea.report/internal/dive"
	"github.com/freedive-data/apnea.report/internal/phase"
	"github.com/freedive-data/apnea.report/internal/velocity"
)

// Lung volume evidence weights.
const (
	wHRDropStrong  = 50.0 // large HR drop vs session average
	wHRElevated    = 40.0 // HR above session average
	wHRFullDefault = 20.0 // mild drop, weakly consistent with a full lung
	wStableHR      = 20.0 // narrow HR range within the dive
	wVariableHR    = 15.0 // wide HR range within the dive
	wStruggle      = 25.0 // buoyancy fight on early descent
	wNeutralFRC    = 15.0 // near-zero sink acceleration
	wNeutralExhale = 10.0
	wFastSink      = 20.0 // rapid initial sink rate
	wBottomFRC     = 15.0 // depressed HR at the bottom
	wBottomExhale  = 10.0
	wReflexExhale  = 15.0 // very strong dive reflex at the bottom
	wLungMatch     = 20.0 // dive HR near the user's baseline
)

// LungInput gathers everything the lung volume classifier reads. AvgHR,
// MaxHR, and MinHR are the dive's own readings; SessionAvgHR is the mean HR
// over the whole session and anchors the relative signals.
type LungInput struct {
	AvgHR        *float64
	MaxHR        *float64
	MinHR        *float64
	SessionAvgHR *float64
	Buoyancy     velocity.Buoyancy
	Phases       phase.Result
}

// LungEvidence records the signals behind a lung volume verdict.
type LungEvidence struct {
	HRDiff   *float64          `json:"hr_diff,omitempty"`  // dive avg minus session avg, bpm
	HRRange  *float64          `json:"hr_range,omitempty"` // dive max minus min, bpm
	Buoyancy velocity.Buoyancy `json:"buoyancy"`

	BottomHRRatio    *float64          `json:"bottom_hr_ratio,omitempty"`     // bottom avg / session avg
	BottomMinHRRatio *float64          `json:"bottom_min_hr_ratio,omitempty"` // bottom min / session avg
	BaselineMatch    []dive.LungVolume `json:"baseline_match,omitempty"`
}

// LungResult is a lung volume verdict with its full score breakdown.
type LungResult struct {
	LungVolume dive.LungVolume             `json:"lung_volume"`
	Confidence float64                     `json:"confidence"`
	Scores     map[dive.LungVolume]float64 `json:"scores,omitempty"`
	Evidence   LungEvidence                `json:"evidence"`
	Reason     string                      `json:"reason,omitempty"`
}

// LungVolume classifies how full the diver's lungs were at the surface.
// Heart rate relative to the session average is the primary signal; sink
// dynamics refine it. Without HR on both sides of that comparison the dive
// is unclassifiable.
func (c *Classifier) LungVolume(in LungInput, snap *baseline.Snapshot) LungResult {
	if in.AvgHR == nil || in.SessionAvgHR == nil || *in.SessionAvgHR == 0 {
		return LungResult{LungVolume: dive.LungUnknown, Reason: ReasonInsufficientData}
	}

	scores := map[dive.LungVolume]float64{
		dive.LungFull:   0,
		dive.LungFRC:    0,
		dive.LungExhale: 0,
	}
	ev := LungEvidence{Buoyancy: in.Buoyancy}

	// Reduced lung volumes trigger a stronger dive reflex, so HR drops
	// well below the session average. Full inhales keep HR up.
	hrDiff := *in.AvgHR - *in.SessionAvgHR
	ev.HRDiff = &hrDiff
	switch {
	case hrDiff < c.cfg.GetExhaleHRDiff():
		scores[dive.LungExhale] += wHRDropStrong
	case hrDiff < c.cfg.GetFRCHRDiff():
		scores[dive.LungFRC] += wHRDropStrong
	case hrDiff > c.cfg.GetFullHRDiff():
		scores[dive.LungFull] += wHRElevated
	default:
		scores[dive.LungFull] += wHRFullDefault
	}

	// A flat HR trace suggests a settled reduced-volume dive; a wide
	// swing suggests the exertion of a full-lung dive.
	if in.MaxHR != nil && in.MinHR != nil {
		hrRange := *in.MaxHR - *in.MinHR
		ev.HRRange = &hrRange
		switch {
		case hrRange < c.cfg.GetStableHRRange():
			scores[dive.LungFRC] += wStableHR
			scores[dive.LungExhale] += wStableHR
		case hrRange > c.cfg.GetVariableHRRange():
			scores[dive.LungFull] += wVariableHR
		}
	}

	// Fighting positive buoyancy off the surface means full lungs.
	if in.Buoyancy.Struggle {
		scores[dive.LungFull] += wStruggle
	}

	// Near-constant sink speed in the first meters means the diver left
	// the surface close to neutral.
	if in.Buoyancy.Acceleration != nil && *in.Buoyancy.Acceleration < c.cfg.GetNeutralAccel() {
		scores[dive.LungFRC] += wNeutralFRC
		scores[dive.LungExhale] += wNeutralExhale
	}

	// Sinking fast right off the surface takes an empty chest.
	if in.Buoyancy.AvgVelocity0to2m != nil && *in.Buoyancy.AvgVelocity0to2m > c.cfg.GetFastInitialVelocity() {
		scores[dive.LungExhale] += wFastSink
	}

	if bottom := in.Phases.Get(phase.Bottom); bottom != nil {
		if bottom.AvgHR != nil {
			ratio := *bottom.AvgHR / *in.SessionAvgHR
			ev.BottomHRRatio = &ratio
			if ratio < c.cfg.GetBottomHRRatio() {
				scores[dive.LungFRC] += wBottomFRC
				scores[dive.LungExhale] += wBottomExhale
			}
		}
		if bottom.MinHR != nil {
			ratio := *bottom.MinHR / *in.SessionAvgHR
			ev.BottomMinHRRatio = &ratio
			if ratio < c.cfg.GetReflexHRRatio() {
				scores[dive.LungExhale] += wReflexExhale
			}
		}
	}

	// Baseline proximity.
	if snap != nil {
		margin := c.cfg.GetBaselineHRMargin()
		for _, lung := range dive.LungVolumes {
			st, ok := snap.HRByLung[lung]
			if !ok || st.Mean <= 0 {
				continue
			}
			if within(*in.AvgHR, st.Mean, margin) {
				scores[lung] += wLungMatch
				ev.BaselineMatch = append(ev.BaselineMatch, lung)
			}
		}
	}

	best := dive.LungVolumes[0]
	for _, lung := range dive.LungVolumes[1:] {
		if scores[lung] > scores[best] {
			best = lung
		}
	}

	res := LungResult{
		LungVolume: best,
		Confidence: min100(scores[best]),
		Scores:     scores,
		Evidence:   ev,
	}
	if scores[best] < c.cfg.GetMinScore() {
		res.LungVolume = dive.LungUnknown
		res.Reason = "low_confidence"
	}
	return res
}
