package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freedive-data/apnea.report/internal/baseline"
	"github.com/freedive-data/apnea.report/internal/dive"
	"github.com/freedive-data/apnea.report/internal/phase"
	"github.com/freedive-data/apnea.report/internal/velocity"
)

func fp(v float64) *float64 { return &v }

func TestDisciplineSmoothSlowDiveIsCNF(t *testing.T) {
	c := New(nil)
	prof := velocity.Profile{
		Series:         []float64{0.35, 0.35, 0.35, 0.35},
		DescentRate:    0.35,
		MaxDescentRate: 0.4,
		CV:             0.10,
	}

	res := c.Discipline(prof, nil)
	require.Equal(t, dive.DisciplineCNF, res.Discipline, "scores: %v", res.Scores)
	assert.GreaterOrEqual(t, res.Confidence, 40.0)
}

func TestDisciplineSpikyProfileWithRhythmIsFIM(t *testing.T) {
	c := New(nil)
	prof := velocity.Profile{
		Series:         []float64{0.2, 0.8, 0.3, 0.9, 0.2, 0.8, 0.3, 0.9, 0.2},
		DescentRate:    0.5,
		MaxDescentRate: 0.9,
		CV:             0.45,
		Peaks:          []int{1, 4, 7, 10},
	}

	res := c.Discipline(prof, nil)
	require.Equal(t, dive.DisciplineFIM, res.Discipline, "scores: %v", res.Scores)
	assert.NotNil(t, res.Evidence.Rhythm, "evenly spaced peaks should produce rhythm evidence")
	// CV band 40 + rhythm 30 + mid-speed 20.
	assert.Equal(t, 90.0, res.Scores[dive.DisciplineFIM])
}

func TestDisciplineFastDiveIsCWT(t *testing.T) {
	c := New(nil)
	prof := velocity.Profile{
		Series:         []float64{0.7, 0.75, 0.8, 1.2, 0.7},
		DescentRate:    0.85,
		MaxDescentRate: 1.2,
		CV:             0.22,
	}

	res := c.Discipline(prof, nil)
	require.Equal(t, dive.DisciplineCWT, res.Discipline, "scores: %v", res.Scores)
	// Mid CV 30 + speed 30 + explosive 10.
	assert.Equal(t, 70.0, res.Scores[dive.DisciplineCWT])
}

func TestDisciplineTieBreaksInEnumerationOrder(t *testing.T) {
	// CV in FIM band, speed in CNF band, no rhythm: FIM 40 vs CNF 25.
	// Force an exact tie with a baseline match for CNF only.
	snap := &baseline.Snapshot{
		DescentByDiscipline: map[dive.Discipline]baseline.Stats{
			dive.DisciplineCNF: {Mean: 0.35, Count: 5},
		},
	}
	prof := velocity.Profile{
		Series:         []float64{0.3, 0.4},
		DescentRate:    0.35,
		MaxDescentRate: 0.4,
		CV:             0.30,
	}

	res := New(nil).Discipline(prof, snap)
	require.Equal(t, res.Scores[dive.DisciplineFIM], res.Scores[dive.DisciplineCNF],
		"test wants a tie")
	assert.Equal(t, dive.DisciplineFIM, res.Discipline, "ties resolve in enumeration order")
}

func TestDisciplineNoDescentIsUnclassifiable(t *testing.T) {
	res := New(nil).Discipline(velocity.Profile{}, nil)
	assert.Equal(t, dive.DisciplineUnknown, res.Discipline)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, ReasonInsufficientData, res.Reason)
}

func TestDisciplineConfidenceCapsAt100(t *testing.T) {
	snap := &baseline.Snapshot{
		DescentByDiscipline: map[dive.Discipline]baseline.Stats{
			dive.DisciplineCWT: {Mean: 0.9, Count: 10},
		},
	}
	prof := velocity.Profile{
		Series:         []float64{0.9, 0.9, 0.9},
		DescentRate:    0.9,
		MaxDescentRate: 1.5,
		CV:             0.22,
	}

	res := New(nil).Discipline(prof, snap)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 100.0)
}

func TestLungVolumeHRDropSelectsFRC(t *testing.T) {
	c := New(nil)
	in := LungInput{
		AvgHR:        fp(60),
		MaxHR:        fp(64),
		MinHR:        fp(56),
		SessionAvgHR: fp(75),
	}

	res := c.LungVolume(in, nil)
	require.Equal(t, dive.LungFRC, res.LungVolume, "scores: %v", res.Scores)
	assert.GreaterOrEqual(t, res.Confidence, 40.0)
}

func TestLungVolumeElevatedHRSelectsFull(t *testing.T) {
	c := New(nil)
	in := LungInput{
		AvgHR:        fp(90),
		MaxHR:        fp(110),
		MinHR:        fp(72),
		SessionAvgHR: fp(75),
	}

	res := c.LungVolume(in, nil)
	require.Equal(t, dive.LungFull, res.LungVolume, "scores: %v", res.Scores)
}

func TestLungVolumeDeepReflexSelectsExhale(t *testing.T) {
	c := New(nil)
	accel := 0.01
	v02 := 0.45
	in := LungInput{
		AvgHR:        fp(52),
		MaxHR:        fp(58),
		MinHR:        fp(44),
		SessionAvgHR: fp(75),
		Buoyancy: velocity.Buoyancy{
			AvgVelocity0to2m: &v02,
			Acceleration:     &accel,
		},
		Phases: phase.Result{
			Phases: []phase.Phase{
				{Name: phase.Bottom, AvgHR: fp(50), MinHR: fp(44)},
			},
		},
	}

	res := c.LungVolume(in, nil)
	require.Equal(t, dive.LungExhale, res.LungVolume, "scores: %v", res.Scores)
}

func TestLungVolumeWithoutHRIsUnclassifiable(t *testing.T) {
	res := New(nil).LungVolume(LungInput{SessionAvgHR: fp(75)}, nil)
	assert.Equal(t, dive.LungUnknown, res.LungVolume)
	assert.Equal(t, ReasonInsufficientData, res.Reason)

	res = New(nil).LungVolume(LungInput{AvgHR: fp(60)}, nil)
	assert.Equal(t, dive.LungUnknown, res.LungVolume)
	assert.Equal(t, ReasonInsufficientData, res.Reason)
}

func TestBaselineMatchExcludesMarginBoundary(t *testing.T) {
	// HR margin is 0.1: with a mean of 60 the match window is (54, 66)
	// exclusive, so an average HR sitting exactly on the edge stays out.
	snap := &baseline.Snapshot{
		HRByLung: map[dive.LungVolume]baseline.Stats{
			dive.LungFRC: {Mean: 60, Count: 8},
		},
	}
	in := LungInput{
		AvgHR:        fp(66),
		MaxHR:        fp(70),
		MinHR:        fp(60),
		SessionAvgHR: fp(75),
	}

	res := New(nil).LungVolume(in, snap)
	assert.Empty(t, res.Evidence.BaselineMatch, "boundary value must not count as a match")

	in.AvgHR = fp(65)
	res = New(nil).LungVolume(in, snap)
	require.Len(t, res.Evidence.BaselineMatch, 1)
	assert.Equal(t, dive.LungFRC, res.Evidence.BaselineMatch[0])
}

func TestLungVolumeBaselineMatchRecorded(t *testing.T) {
	snap := &baseline.Snapshot{
		HRByLung: map[dive.LungVolume]baseline.Stats{
			dive.LungFRC: {Mean: 61, Count: 8},
		},
	}
	in := LungInput{
		AvgHR:        fp(60),
		MaxHR:        fp(65),
		MinHR:        fp(55),
		SessionAvgHR: fp(75),
	}

	res := New(nil).LungVolume(in, snap)
	require.Len(t, res.Evidence.BaselineMatch, 1)
	assert.Equal(t, dive.LungFRC, res.Evidence.BaselineMatch[0])
}
