// Package baseline turns a user's manually labeled dives into per-category
// statistics that personalize the classifiers, and tracks how far along that
// calibration is.
//
// Baselines are always recomputed from the entire labeled set, never blended
// incrementally, so recalculating on an unchanged set is idempotent.
package baseline

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/freedive-data/apnea.report/internal/dive"
)

// ErrNoLabeledDives is returned when a user has no labeled dives to
// calibrate from. It never alters a persisted snapshot.
var ErrNoLabeledDives = errors.New("no labeled dives found")

// expectedBaselines is the full coverage target: three HR baselines (one per
// lung volume) plus three descent-rate baselines (one per discipline).
const expectedBaselines = 6

// Stats summarizes one baseline category.
type Stats struct {
	Mean  float64 `json:"mean"`
	Stdev float64 `json:"stdev"`
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Snapshot is one user's complete baseline state. Maps only carry categories
// that had usable labeled data. RestingHR comes from ambient health metrics,
// not dives, and is nil when none were synced.
type Snapshot struct {
	HRByLung            map[dive.LungVolume]Stats `json:"hr_by_lung"`
	DescentByDiscipline map[dive.Discipline]Stats `json:"descent_by_discipline"`
	RestingHR           *Stats                    `json:"resting_hr,omitempty"`
	CalibrationDives    int                       `json:"calibration_dives"`
	Complete            bool                      `json:"calibration_complete"`
	LastUpdate          time.Time                 `json:"last_update"`
}

// LabeledDive is the slice of a stored dive the calibrator needs: the final
// labels (manual overriding detected) and the two metrics baselines are
// built from.
type LabeledDive struct {
	Discipline     dive.Discipline
	LungVolume     dive.LungVolume
	AvgHR          *float64
	AvgDescentRate *float64
}

// Compute builds a snapshot from a user's labeled dives. restingHR is the
// ambient resting-heart-rate average, folded in as an extra baseline with
// count 1 (it is already an aggregate). Returns ErrNoLabeledDives when the
// labeled set is empty.
func Compute(dives []LabeledDive, restingHR *float64, now time.Time) (Snapshot, error) {
	if len(dives) == 0 {
		return Snapshot{}, ErrNoLabeledDives
	}

	snap := Snapshot{
		HRByLung:            make(map[dive.LungVolume]Stats),
		DescentByDiscipline: make(map[dive.Discipline]Stats),
		CalibrationDives:    len(dives),
		LastUpdate:          now,
	}

	for _, lung := range dive.LungVolumes {
		var values []float64
		for _, d := range dives {
			if d.LungVolume == lung && d.AvgHR != nil {
				values = append(values, *d.AvgHR)
			}
		}
		if len(values) > 0 {
			snap.HRByLung[lung] = summarize(values)
		}
	}

	for _, disc := range dive.Disciplines {
		var values []float64
		for _, d := range dives {
			if d.Discipline == disc && d.AvgDescentRate != nil {
				values = append(values, *d.AvgDescentRate)
			}
		}
		if len(values) > 0 {
			snap.DescentByDiscipline[disc] = summarize(values)
		}
	}

	if restingHR != nil {
		snap.RestingHR = &Stats{Mean: *restingHR, Count: 1}
	}

	return snap, nil
}

func summarize(values []float64) Stats {
	s := Stats{
		Mean:  stat.Mean(values, nil),
		Count: len(values),
		Min:   values[0],
		Max:   values[0],
	}
	if len(values) > 1 {
		s.Stdev = stat.StdDev(values, nil)
	}
	for _, v := range values {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	return s
}

// baselineCount is how many baseline categories the snapshot populated,
// resting HR included.
func (s Snapshot) baselineCount() int {
	n := len(s.HRByLung) + len(s.DescentByDiscipline)
	if s.RestingHR != nil {
		n++
	}
	return n
}

// Confidence scores the snapshot 0-100 from three components: labeled-dive
// volume (up to 50, saturating at target), statistical consistency (up to
// 30, one minus the coefficient of variation averaged over populated
// baselines), and category coverage (up to 20). Rounded to one decimal.
func (s Snapshot) Confidence(target int) float64 {
	confidence := math.Min(50, float64(s.CalibrationDives)/float64(target)*50)

	// Iterate categories in enumeration order so the score is deterministic.
	var consistency []float64
	for _, lung := range dive.LungVolumes {
		if st, ok := s.HRByLung[lung]; ok && st.Mean > 0 {
			consistency = append(consistency, math.Max(0, 1-st.Stdev/st.Mean))
		}
	}
	for _, disc := range dive.Disciplines {
		if st, ok := s.DescentByDiscipline[disc]; ok && st.Mean > 0 {
			consistency = append(consistency, math.Max(0, 1-st.Stdev/st.Mean))
		}
	}
	if len(consistency) > 0 {
		confidence += stat.Mean(consistency, nil) * 30
	}

	// Resting HR counts toward coverage on top of the six dive-derived
	// categories, so the sum can nose past 100.
	confidence += float64(s.baselineCount()) / expectedBaselines * 20

	return math.Min(100, math.Round(confidence*10)/10)
}

// Quality tiers the snapshot's data quality by labeled-dive count, with the
// top tier also requiring broad category coverage.
func (s Snapshot) Quality(target int) string {
	switch {
	case s.CalibrationDives < 5:
		return "poor"
	case s.CalibrationDives < 10:
		return "fair"
	case s.CalibrationDives < target:
		return "good"
	case s.baselineCount() >= 5:
		return "excellent"
	default:
		return "good"
	}
}
