package baseline

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/freedive-data/apnea.report/internal/config"
	"github.com/freedive-data/apnea.report/internal/dive"
	"github.com/freedive-data/apnea.report/internal/timeutil"
)

func fp(v float64) *float64 { return &v }

func labeledSet() []LabeledDive {
	return []LabeledDive{
		{Discipline: dive.DisciplineCWT, LungVolume: dive.LungFull, AvgHR: fp(82), AvgDescentRate: fp(0.75)},
		{Discipline: dive.DisciplineCWT, LungVolume: dive.LungFull, AvgHR: fp(78), AvgDescentRate: fp(0.71)},
		{Discipline: dive.DisciplineFIM, LungVolume: dive.LungFRC, AvgHR: fp(62), AvgDescentRate: fp(0.48)},
		{Discipline: dive.DisciplineFIM, LungVolume: dive.LungFRC, AvgHR: fp(60), AvgDescentRate: fp(0.52)},
		{Discipline: dive.DisciplineCNF, LungVolume: dive.LungExhale, AvgHR: fp(55), AvgDescentRate: fp(0.33)},
	}
}

func TestComputeGroupsByLabel(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	snap, err := Compute(labeledSet(), fp(52), now)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if snap.CalibrationDives != 5 {
		t.Errorf("CalibrationDives = %d, want 5", snap.CalibrationDives)
	}
	full := snap.HRByLung[dive.LungFull]
	if full.Mean != 80 || full.Count != 2 || full.Min != 78 || full.Max != 82 {
		t.Errorf("full-lung HR stats = %+v", full)
	}
	cwt := snap.DescentByDiscipline[dive.DisciplineCWT]
	if cwt.Count != 2 || math.Abs(cwt.Mean-0.73) > 1e-9 {
		t.Errorf("CWT descent stats = %+v", cwt)
	}
	if snap.RestingHR == nil || snap.RestingHR.Mean != 52 || snap.RestingHR.Count != 1 {
		t.Errorf("RestingHR = %+v", snap.RestingHR)
	}
	if !snap.LastUpdate.Equal(now) {
		t.Errorf("LastUpdate = %v, want %v", snap.LastUpdate, now)
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a, err := Compute(labeledSet(), fp(52), now)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	b, err := Compute(labeledSet(), fp(52), now)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("recomputation over identical input diverged (-first +second):\n%s", diff)
	}
}

func TestComputeEmptySet(t *testing.T) {
	_, err := Compute(nil, fp(52), time.Now())
	if !errors.Is(err, ErrNoLabeledDives) {
		t.Errorf("err = %v, want ErrNoLabeledDives", err)
	}
}

func TestComputeSingleDiveHasZeroStdev(t *testing.T) {
	dives := []LabeledDive{
		{Discipline: dive.DisciplineFIM, LungVolume: dive.LungFull, AvgHR: fp(70), AvgDescentRate: fp(0.5)},
	}
	snap, err := Compute(dives, nil, time.Now())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if st := snap.HRByLung[dive.LungFull]; st.Stdev != 0 {
		t.Errorf("single-sample stdev = %v, want 0", st.Stdev)
	}
	if snap.RestingHR != nil {
		t.Errorf("RestingHR = %+v, want nil without health data", snap.RestingHR)
	}
}

func TestConfidenceBounds(t *testing.T) {
	now := time.Now()
	snap, err := Compute(labeledSet(), fp(52), now)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	got := snap.Confidence(20)
	if got < 0 || got > 100 {
		t.Fatalf("confidence = %v, want within [0, 100]", got)
	}

	// A big, perfectly consistent, fully covered set must saturate.
	var many []LabeledDive
	for i := 0; i < 30; i++ {
		many = append(many,
			LabeledDive{Discipline: dive.DisciplineFIM, LungVolume: dive.LungFull, AvgHR: fp(70), AvgDescentRate: fp(0.5)},
			LabeledDive{Discipline: dive.DisciplineCWT, LungVolume: dive.LungFRC, AvgHR: fp(60), AvgDescentRate: fp(0.8)},
			LabeledDive{Discipline: dive.DisciplineCNF, LungVolume: dive.LungExhale, AvgHR: fp(50), AvgDescentRate: fp(0.3)},
		)
	}
	full, err := Compute(many, fp(52), now)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got := full.Confidence(20); got != 100 {
		t.Errorf("saturated confidence = %v, want 100", got)
	}
}

func TestQualityTiers(t *testing.T) {
	cases := []struct {
		dives     int
		baselines int
		want      string
	}{
		{2, 1, "poor"},
		{7, 3, "fair"},
		{15, 4, "good"},
		{25, 3, "good"},
		{25, 6, "excellent"},
	}
	for _, tc := range cases {
		snap := Snapshot{
			CalibrationDives:    tc.dives,
			HRByLung:            map[dive.LungVolume]Stats{},
			DescentByDiscipline: map[dive.Discipline]Stats{},
		}
		for i := 0; i < tc.baselines && i < len(dive.LungVolumes); i++ {
			snap.HRByLung[dive.LungVolumes[i]] = Stats{Mean: 60, Count: 2}
		}
		for i := 0; i < tc.baselines-len(dive.LungVolumes) && i < len(dive.Disciplines); i++ {
			snap.DescentByDiscipline[dive.Disciplines[i]] = Stats{Mean: 0.5, Count: 2}
		}
		if got := snap.Quality(20); got != tc.want {
			t.Errorf("Quality(dives=%d, baselines=%d) = %q, want %q", tc.dives, tc.baselines, got, tc.want)
		}
	}
}

type fakeStore struct {
	dives     []LabeledDive
	resting   *float64
	breakdown map[string]int

	saved      *Snapshot
	savedEntry *HistoryEntry
}

func (f *fakeStore) LabeledDives(ctx context.Context, userID int64) ([]LabeledDive, error) {
	return f.dives, nil
}

func (f *fakeStore) RestingHRAverage(ctx context.Context, userID int64) (*float64, error) {
	return f.resting, nil
}

func (f *fakeStore) SaveSnapshot(ctx context.Context, userID int64, snap Snapshot, entry HistoryEntry) error {
	f.saved = &snap
	f.savedEntry = &entry
	return nil
}

func (f *fakeStore) LabelBreakdown(ctx context.Context, userID int64) (map[string]int, error) {
	return f.breakdown, nil
}

func TestUpdatePersistsSnapshot(t *testing.T) {
	store := &fakeStore{dives: labeledSet(), resting: fp(52)}
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	cal := NewCalibrator(store, config.Default(), clock)

	snap, err := cal.Update(context.Background(), 1)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if store.saved == nil {
		t.Fatal("snapshot was not persisted")
	}
	if diff := cmp.Diff(snap, *store.saved); diff != "" {
		t.Errorf("persisted snapshot differs from returned (-ret +saved):\n%s", diff)
	}
	if store.savedEntry.DivesAnalyzed != 5 {
		t.Errorf("DivesAnalyzed = %d, want 5", store.savedEntry.DivesAnalyzed)
	}
	if store.savedEntry.RunID == "" {
		t.Error("audit entry has no run ID")
	}
	if snap.Complete {
		t.Error("snapshot marked complete with only 5 labeled dives")
	}
}

func TestUpdateMarksCompletion(t *testing.T) {
	var dives []LabeledDive
	for i := 0; i < 20; i++ {
		dives = append(dives, LabeledDive{
			Discipline:     dive.DisciplineCWT,
			LungVolume:     dive.LungFull,
			AvgHR:          fp(70),
			AvgDescentRate: fp(0.7),
		})
	}
	store := &fakeStore{dives: dives}
	cal := NewCalibrator(store, nil, timeutil.NewMockClock(time.Now()))

	snap, err := cal.Update(context.Background(), 1)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !snap.Complete {
		t.Error("snapshot not marked complete at the calibration target")
	}
	if store.saved == nil || !store.saved.Complete {
		t.Error("persisted snapshot missing the completion flag")
	}
}

func TestUpdateWithoutLabelsWritesNothing(t *testing.T) {
	store := &fakeStore{}
	cal := NewCalibrator(store, nil, timeutil.NewMockClock(time.Now()))

	_, err := cal.Update(context.Background(), 1)
	if !errors.Is(err, ErrNoLabeledDives) {
		t.Fatalf("err = %v, want ErrNoLabeledDives", err)
	}
	if store.saved != nil {
		t.Error("snapshot was persisted despite empty labeled set")
	}
}

func TestProgressMessages(t *testing.T) {
	cases := []struct {
		labeled  int
		complete bool
		wantSub  string
	}{
		{0, false, "Label your next"},
		{6, false, "Building your baseline"},
		{14, false, "Almost there"},
		{20, true, "Calibration complete"},
	}
	for _, tc := range cases {
		var dives []LabeledDive
		for i := 0; i < tc.labeled; i++ {
			dives = append(dives, LabeledDive{Discipline: dive.DisciplineCWT, AvgDescentRate: fp(0.7)})
		}
		store := &fakeStore{dives: dives, breakdown: map[string]int{"CWT_unknown": tc.labeled}}
		cal := NewCalibrator(store, nil, timeutil.NewMockClock(time.Now()))

		p, err := cal.Progress(context.Background(), 1)
		if err != nil {
			t.Fatalf("Progress(%d labeled): %v", tc.labeled, err)
		}
		if p.Complete != tc.complete {
			t.Errorf("Complete(%d labeled) = %v, want %v", tc.labeled, p.Complete, tc.complete)
		}
		if !strings.Contains(p.Message, tc.wantSub) {
			t.Errorf("Message(%d labeled) = %q, want substring %q", tc.labeled, p.Message, tc.wantSub)
		}
	}
}
