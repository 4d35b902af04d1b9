package velocity

import (
	"gonum.org/v1/gonum/stat"

	"github.com/freedive-data/apnea.report/internal/dive"
)

// Buoyancy compares early-dive descent speed across two depth bands. A diver
// entering positively buoyant fights the first metres and only speeds up
// once past neutral depth; a diver entering on exhale sinks fast
// immediately. Fields are nil when the corresponding band had no descending
// samples.
type Buoyancy struct {
	AvgVelocity0to2m *float64 `json:"avg_velocity_0_2m,omitempty"` // m/s, magnitude
	AvgVelocity2to5m *float64 `json:"avg_velocity_2_5m,omitempty"` // m/s, magnitude
	Acceleration     *float64 `json:"acceleration,omitempty"`      // v(2-5m) - v(0-2m)
	Struggle         bool     `json:"has_buoyancy_struggle,omitempty"`
}

// Buoyancy computes the band comparison for a dive segment. Segments shorter
// than 10 samples are too noisy to band; the zero value is returned.
func (p *Profiler) Buoyancy(seg dive.Segment, prof Profile) Buoyancy {
	var b Buoyancy
	if len(seg.Samples) < 10 || prof.Empty() {
		return b
	}

	var shallow, deep []float64 // descending speeds per band
	for i, s := range seg.Samples {
		v := prof.Series[i]
		if v <= 0 {
			continue
		}
		switch {
		case s.Depth >= 0 && s.Depth <= 2.0:
			shallow = append(shallow, v)
		case s.Depth > 2.0 && s.Depth <= 5.0:
			deep = append(deep, v)
		}
	}

	if len(shallow) > 0 {
		avg := stat.Mean(shallow, nil)
		b.AvgVelocity0to2m = &avg
	}
	if len(deep) > 0 {
		avg := stat.Mean(deep, nil)
		b.AvgVelocity2to5m = &avg
	}
	if b.AvgVelocity0to2m != nil && b.AvgVelocity2to5m != nil {
		accel := *b.AvgVelocity2to5m - *b.AvgVelocity0to2m
		b.Acceleration = &accel
		b.Struggle = accel > p.cfg.GetBuoyancyAccel()
	}

	return b
}
