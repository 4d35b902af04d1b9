// Package velocity derives a de-noised vertical velocity signal from a
// dive's depth series, plus the descent/ascent statistics the classifiers
// feed on.
//
// Sign convention: the profile series stores positive = descending (depth
// increasing), negative = ascending. The reported DescentRate/AscentRate
// values are always absolute magnitudes; the signed series is only used to
// separate descending from ascending samples, and that separation uses the
// same sign throughout.
package velocity

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/freedive-data/apnea.report/internal/config"
	"github.com/freedive-data/apnea.report/internal/dive"
	"github.com/freedive-data/apnea.report/internal/monitoring"
)

// Profile is the velocity analysis of one dive segment. Series has the same
// length as the segment's samples, with a leading zero (no derivative exists
// for the first sample). An empty Series marks a segment too short to
// differentiate.
type Profile struct {
	Series []float64 `json:"series"` // m/s, positive = descending

	DescentRate    float64 `json:"descent_rate"`     // mean descending speed, m/s
	MaxDescentRate float64 `json:"max_descent_rate"` // m/s
	AscentRate     float64 `json:"ascent_rate"`      // mean ascending speed, m/s
	MaxAscentRate  float64 `json:"max_ascent_rate"`  // m/s

	CV    float64 `json:"velocity_cv"`    // stdev/mean(|v|) over samples above the noise floor
	Peaks []int   `json:"velocity_peaks"` // sample indices of propulsion pulses
}

// Empty reports whether the segment had too few samples to differentiate.
func (p Profile) Empty() bool { return len(p.Series) == 0 }

// Profiler computes velocity profiles using the configured tuning.
type Profiler struct {
	cfg *config.Tuning
}

// NewProfiler returns a Profiler. A nil cfg uses the documented defaults.
func NewProfiler(cfg *config.Tuning) *Profiler {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Profiler{cfg: cfg}
}

// Analyze computes the velocity profile of a dive segment.
//
// A segment with fewer than 2 samples cannot yield a derivative; Analyze
// logs a warning and returns an empty profile rather than an error, so a
// single-sample dive still flows through the pipeline.
func (p *Profiler) Analyze(seg dive.Segment) Profile {
	if len(seg.Samples) < 2 {
		monitoring.Logf("dive %d: insufficient samples for velocity analysis (%d)",
			seg.DiveNumber, len(seg.Samples))
		return Profile{}
	}

	raw := make([]float64, len(seg.Samples))
	for i := 1; i < len(seg.Samples); i++ {
		dt := seg.Samples[i].TimeOffset - seg.Samples[i-1].TimeOffset
		if dt <= 0 {
			// Duplicate or out-of-order timestamp; no derivative here.
			continue
		}
		raw[i] = (seg.Samples[i].Depth - seg.Samples[i-1].Depth) / dt
	}

	series := movingAverage(raw, p.cfg.GetSmoothingWindow())

	prof := Profile{Series: series}
	p.rates(&prof, seg)
	p.variation(&prof)
	return prof
}

// rates splits the series at the max-depth sample and averages each side
// restricted to its expected sign. An empty restricted set leaves the rate
// at 0; that is a valid profile, not an error.
func (p *Profiler) rates(prof *Profile, seg dive.Segment) {
	maxIdx := 0
	for i, s := range seg.Samples {
		if s.Depth > seg.Samples[maxIdx].Depth {
			maxIdx = i
		}
	}

	if maxIdx > 0 {
		var descending []float64
		for _, v := range prof.Series[1 : maxIdx+1] {
			if v > 0 {
				descending = append(descending, v)
			}
		}
		if len(descending) > 0 {
			prof.DescentRate = stat.Mean(descending, nil)
			for _, v := range descending {
				if v > prof.MaxDescentRate {
					prof.MaxDescentRate = v
				}
			}
		}
	}

	if maxIdx < len(prof.Series)-1 {
		var ascending []float64
		for _, v := range prof.Series[maxIdx:] {
			if v < 0 {
				ascending = append(ascending, -v)
			}
		}
		if len(ascending) > 0 {
			prof.AscentRate = stat.Mean(ascending, nil)
			for _, v := range ascending {
				if v > prof.MaxAscentRate {
					prof.MaxAscentRate = v
				}
			}
		}
	}
}

// variation computes the coefficient of variation over samples above the
// noise floor, and locates propulsion peaks.
func (p *Profiler) variation(prof *Profile) {
	floor := p.cfg.GetVelocityNoiseFloor()

	var signed, magnitudes []float64
	for _, v := range prof.Series {
		if math.Abs(v) > floor {
			signed = append(signed, v)
			magnitudes = append(magnitudes, math.Abs(v))
		}
	}
	if len(signed) >= 2 {
		prof.CV = stat.StdDev(signed, nil) / stat.Mean(magnitudes, nil)
	}

	prof.Peaks = detectPeaks(prof.Series, p.cfg.GetPeakThreshold())
}

// detectPeaks returns indices i where |v[i]| exceeds threshold and is
// strictly greater than both neighbours' magnitudes. For line disciplines
// these are the pull moments.
func detectPeaks(series []float64, threshold float64) []int {
	var peaks []int
	for i := 1; i < len(series)-1; i++ {
		m := math.Abs(series[i])
		if m > threshold &&
			m > math.Abs(series[i-1]) &&
			m > math.Abs(series[i+1]) {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// movingAverage applies a symmetric moving average with replicated edge
// values, so the output has the same length as the input.
func movingAverage(data []float64, window int) []float64 {
	if window < 2 {
		out := make([]float64, len(data))
		copy(out, data)
		return out
	}

	pad := window / 2
	padded := make([]float64, 0, len(data)+2*pad)
	for i := 0; i < pad; i++ {
		padded = append(padded, data[0])
	}
	padded = append(padded, data...)
	for i := 0; i < pad; i++ {
		padded = append(padded, data[len(data)-1])
	}

	out := make([]float64, len(data))
	for i := range out {
		sum := 0.0
		for _, v := range padded[i : i+window] {
			sum += v
		}
		out[i] = sum / float64(window)
	}
	return out
}
