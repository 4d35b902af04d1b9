// Package analysis runs the full per-dive pipeline: segmentation, velocity
// profiling, phase detection, and classification, producing the enriched
// dive records the rest of the system stores and serves.
package analysis

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/freedive-data/apnea.report/internal/baseline"
	"github.com/freedive-data/apnea.report/internal/classify"
	"github.com/freedive-data/apnea.report/internal/config"
	"github.com/freedive-data/apnea.report/internal/dive"
	"github.com/freedive-data/apnea.report/internal/monitoring"
	"github.com/freedive-data/apnea.report/internal/phase"
	"github.com/freedive-data/apnea.report/internal/velocity"
)

// Dive is one fully analyzed dive. The lap summary fields are copied
// through so a Dive row is self-contained.
type Dive struct {
	DiveNumber      int       `json:"dive_number"`
	StartTime       time.Time `json:"start_time"`
	Duration        float64   `json:"duration"`
	MaxDepth        float64   `json:"max_depth"`
	AvgDepth        float64   `json:"avg_depth"`
	BottomTime      float64   `json:"bottom_time"`
	SurfaceInterval float64   `json:"surface_interval"`
	AvgHR           *float64  `json:"avg_hr,omitempty"`
	MaxHR           *float64  `json:"max_hr,omitempty"`
	MinHR           *float64  `json:"min_hr,omitempty"`

	Samples []dive.Sample `json:"samples,omitempty"`

	Profile  velocity.Profile  `json:"velocity"`
	Buoyancy velocity.Buoyancy `json:"buoyancy"`
	Phases   phase.Result      `json:"phases"`
	Hints    phase.Hints       `json:"hints"`

	Discipline classify.DisciplineResult `json:"discipline"`
	LungVolume classify.LungResult       `json:"lung_volume"`
}

// Session is the analyzed form of one activity.
type Session struct {
	Dives        []Dive   `json:"dives"`
	SessionAvgHR *float64 `json:"session_avg_hr,omitempty"`
}

// Analyzer wires the pipeline stages together over one tuning config.
type Analyzer struct {
	cfg       *config.Tuning
	profiler  *velocity.Profiler
	segmenter *phase.Segmenter
	classer   *classify.Classifier
}

// NewAnalyzer returns an Analyzer. A nil cfg uses the documented defaults.
func NewAnalyzer(cfg *config.Tuning) *Analyzer {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Analyzer{
		cfg:       cfg,
		profiler:  velocity.NewProfiler(cfg),
		segmenter: phase.NewSegmenter(cfg),
		classer:   classify.New(cfg),
	}
}

// AnalyzeActivity splits an activity stream into dives and runs every
// pipeline stage on each. snap personalizes the classifiers and may be nil
// for uncalibrated users. The error surface is segmentation only; dives
// whose samples are too sparse for a given stage still come back, with that
// stage's zero result.
func (a *Analyzer) AnalyzeActivity(series dive.Series, laps []dive.LapBoundary, snap *baseline.Snapshot) (Session, error) {
	segments, err := dive.Split(series, laps)
	if err != nil {
		return Session{}, err
	}

	sess := Session{SessionAvgHR: sessionAvgHR(laps)}
	for _, seg := range segments {
		sess.Dives = append(sess.Dives, a.analyzeDive(seg, sess.SessionAvgHR, snap))
	}
	monitoring.Logf("analyzed activity: %d dives, %d samples", len(sess.Dives), len(series.Samples))
	return sess, nil
}

// AnalyzeSegment re-runs the pipeline on one already-cut dive segment.
// This is how stored dives are re-classified after a baseline update.
func (a *Analyzer) AnalyzeSegment(seg dive.Segment, sessionAvgHR *float64, snap *baseline.Snapshot) Dive {
	return a.analyzeDive(seg, sessionAvgHR, snap)
}

func (a *Analyzer) analyzeDive(seg dive.Segment, sessionAvgHR *float64, snap *baseline.Snapshot) Dive {
	d := Dive{
		DiveNumber:      seg.DiveNumber,
		StartTime:       seg.Lap.StartTime,
		Duration:        seg.Lap.Duration,
		MaxDepth:        seg.Lap.MaxDepth,
		AvgDepth:        seg.Lap.AvgDepth,
		BottomTime:      seg.Lap.BottomTime,
		SurfaceInterval: seg.Lap.SurfaceInterval,
		AvgHR:           seg.Lap.AvgHR,
		MaxHR:           seg.Lap.MaxHR,
		Samples:         seg.Samples,
	}

	d.Profile = a.profiler.Analyze(seg)
	d.Buoyancy = a.profiler.Buoyancy(seg, d.Profile)
	d.Phases = a.segmenter.Detect(seg, d.Profile)
	d.MinHR = d.Phases.MinHR
	d.Hints = a.segmenter.TypeHints(d.Phases, d.Profile, d.AvgHR, d.MinHR)

	d.Discipline = a.classer.Discipline(d.Profile, snap)
	d.LungVolume = a.classer.LungVolume(classify.LungInput{
		AvgHR:        d.AvgHR,
		MaxHR:        d.MaxHR,
		MinHR:        d.MinHR,
		SessionAvgHR: sessionAvgHR,
		Buoyancy:     d.Buoyancy,
		Phases:       d.Phases,
	}, snap)

	return d
}

// sessionAvgHR averages the per-lap HR summaries. Laps without HR are
// skipped; a session with none returns nil.
func sessionAvgHR(laps []dive.LapBoundary) *float64 {
	var values []float64
	for _, lap := range laps {
		if lap.AvgHR != nil {
			values = append(values, *lap.AvgHR)
		}
	}
	if len(values) == 0 {
		return nil
	}
	avg := stat.Mean(values, nil)
	return &avg
}
