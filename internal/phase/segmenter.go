// Package phase partitions a dive into descent, bottom, and ascent phases
// by depth-threshold crossing, and aggregates depth/velocity/HR statistics
// per phase.
package phase

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/freedive-data/apnea.report/internal/config"
	"github.com/freedive-data/apnea.report/internal/dive"
	"github.com/freedive-data/apnea.report/internal/velocity"
)

// Name identifies a movement phase within a dive.
type Name string

// Phase names, in the only order they can occur.
const (
	Descent Name = "descent"
	Bottom  Name = "bottom"
	Ascent  Name = "ascent"
)

// Phase is one movement phase with its aggregates. Velocity fields are nil
// when no sample in the window moved above the phase velocity floor; HR
// fields are nil when the window had no valid HR reading.
type Phase struct {
	Name       Name    `json:"name"`
	Duration   float64 `json:"duration"` // seconds
	StartDepth float64 `json:"start_depth"`
	EndDepth   float64 `json:"end_depth"`
	MaxDepth   float64 `json:"max_depth"`
	AvgDepth   float64 `json:"avg_depth"`

	AvgVelocity *float64 `json:"avg_velocity,omitempty"` // mean |v|, m/s
	MaxVelocity *float64 `json:"max_velocity,omitempty"` // max |v|, m/s

	AvgHR    *float64 `json:"avg_hr,omitempty"`
	MinHR    *float64 `json:"min_hr,omitempty"`
	MaxHR    *float64 `json:"max_hr,omitempty"`
	HRChange *float64 `json:"hr_change,omitempty"` // signed, last valid minus first valid
}

// Result is the phase breakdown of one dive. Phases holds 0-3 entries in
// descent/bottom/ascent order; a dive with no detectable bottom simply omits
// it. MinHR is the dive-wide minimum over all valid HR readings, not a
// per-phase value.
type Result struct {
	Phases []Phase  `json:"phases"`
	MinHR  *float64 `json:"min_hr,omitempty"`
}

// Get returns the named phase, or nil if the dive does not have one.
func (r Result) Get(name Name) *Phase {
	for i := range r.Phases {
		if r.Phases[i].Name == name {
			return &r.Phases[i]
		}
	}
	return nil
}

// Segmenter detects dive phases using the configured tuning.
type Segmenter struct {
	cfg *config.Tuning
}

// NewSegmenter returns a Segmenter. A nil cfg uses the documented defaults.
func NewSegmenter(cfg *config.Tuning) *Segmenter {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Segmenter{cfg: cfg}
}

// Detect splits a dive segment into phases.
//
// The bottom threshold is bottomDepthRatio x max depth. Descent runs from
// the first sample to the first crossing of the threshold (inclusive);
// bottom is the contiguous run at or above the threshold, ending at the
// first sample after the max-depth index that drops back below it; ascent
// runs from there to the last sample. Any phase with fewer than 2 samples is
// omitted rather than reported as a degenerate point.
//
// Known limitation: only the first drop below the threshold after max depth
// ends the bottom phase. An undulating profile that re-crosses the threshold
// puts those excursions in the ascent phase.
func (s *Segmenter) Detect(seg dive.Segment, prof velocity.Profile) Result {
	if len(seg.Samples) < 3 {
		return Result{}
	}

	series := prof.Series
	if len(series) != len(seg.Samples) {
		series = make([]float64, len(seg.Samples))
	}

	maxIdx := 0
	for i, smp := range seg.Samples {
		if smp.Depth > seg.Samples[maxIdx].Depth {
			maxIdx = i
		}
	}
	threshold := seg.Samples[maxIdx].Depth * s.cfg.GetBottomDepthRatio()

	descentEnd := maxIdx
	for i, smp := range seg.Samples {
		if smp.Depth >= threshold {
			descentEnd = i
			break
		}
	}

	bottomEnd := len(seg.Samples) - 1
	for i := maxIdx + 1; i < len(seg.Samples); i++ {
		if seg.Samples[i].Depth < threshold {
			bottomEnd = i
			break
		}
	}

	var res Result
	if descentEnd > 0 {
		if ph, ok := s.analyze(Descent, seg.Samples[:descentEnd+1], series[:descentEnd+1]); ok {
			res.Phases = append(res.Phases, ph)
		}
	}
	if bottomEnd > descentEnd {
		if ph, ok := s.analyze(Bottom, seg.Samples[descentEnd:bottomEnd+1], series[descentEnd:bottomEnd+1]); ok {
			res.Phases = append(res.Phases, ph)
		}
	}
	if bottomEnd < len(seg.Samples)-1 {
		if ph, ok := s.analyze(Ascent, seg.Samples[bottomEnd:], series[bottomEnd:]); ok {
			res.Phases = append(res.Phases, ph)
		}
	}

	// Dive-wide minimum HR comes from the full valid-HR set, not any single
	// phase; the lowest reading usually lands at the bottom.
	var minHR *float64
	for _, smp := range seg.Samples {
		if smp.HeartRate == nil {
			continue
		}
		hr := float64(*smp.HeartRate)
		if minHR == nil || hr < *minHR {
			v := hr
			minHR = &v
		}
	}
	res.MinHR = minHR

	return res
}

// analyze aggregates one phase window. ok is false when the window is too
// short to report.
func (s *Segmenter) analyze(name Name, samples []dive.Sample, series []float64) (Phase, bool) {
	if len(samples) < 2 {
		return Phase{}, false
	}

	ph := Phase{
		Name:       name,
		Duration:   samples[len(samples)-1].TimeOffset - samples[0].TimeOffset,
		StartDepth: samples[0].Depth,
		EndDepth:   samples[len(samples)-1].Depth,
	}

	depths := make([]float64, len(samples))
	for i, smp := range samples {
		depths[i] = smp.Depth
		if smp.Depth > ph.MaxDepth {
			ph.MaxDepth = smp.Depth
		}
	}
	ph.AvgDepth = stat.Mean(depths, nil)

	floor := s.cfg.GetPhaseVelocityFloor()
	var magnitudes []float64
	for _, v := range series {
		if math.Abs(v) > floor {
			magnitudes = append(magnitudes, math.Abs(v))
		}
	}
	if len(magnitudes) > 0 {
		avg := stat.Mean(magnitudes, nil)
		max := magnitudes[0]
		for _, m := range magnitudes {
			if m > max {
				max = m
			}
		}
		ph.AvgVelocity = &avg
		ph.MaxVelocity = &max
	}

	// HR aggregation ignores missing-HR samples entirely; a phase with no
	// valid reading just omits the HR fields.
	var hrs []float64
	for _, smp := range samples {
		if smp.HeartRate != nil {
			hrs = append(hrs, float64(*smp.HeartRate))
		}
	}
	if len(hrs) > 0 {
		avg := stat.Mean(hrs, nil)
		min, max := hrs[0], hrs[0]
		for _, hr := range hrs {
			if hr < min {
				min = hr
			}
			if hr > max {
				max = hr
			}
		}
		ph.AvgHR = &avg
		ph.MinHR = &min
		ph.MaxHR = &max
		if len(hrs) >= 2 {
			change := hrs[len(hrs)-1] - hrs[0]
			ph.HRChange = &change
		}
	}

	return ph, true
}
