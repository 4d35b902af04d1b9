package baseline

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/freedive-data/apnea.report/internal/config"
	"github.com/freedive-data/apnea.report/internal/monitoring"
	"github.com/freedive-data/apnea.report/internal/timeutil"
)

// Store is the persistence surface the calibrator needs. Implemented by
// the db package.
type Store interface {
	// LabeledDives returns every dive with a final discipline or lung
	// volume label for the user.
	LabeledDives(ctx context.Context, userID int64) ([]LabeledDive, error)

	// RestingHRAverage returns the average resting heart rate from synced
	// health metrics, or nil when none exist.
	RestingHRAverage(ctx context.Context, userID int64) (*float64, error)

	// SaveSnapshot atomically replaces the user's baseline columns and
	// appends an audit entry. Either both land or neither does.
	SaveSnapshot(ctx context.Context, userID int64, snap Snapshot, entry HistoryEntry) error

	// LabelBreakdown counts labeled dives per discipline and lung volume
	// combination, keyed as "CWT_full", "FIM_unknown" and so on.
	LabelBreakdown(ctx context.Context, userID int64) (map[string]int, error)
}

// HistoryEntry is one row of the calibration audit trail.
type HistoryEntry struct {
	RunID         string
	DivesAnalyzed int
	Confidence    float64
	Quality       string
}

// Progress describes where a user is in the calibration journey.
type Progress struct {
	TotalLabeled int            `json:"total_labeled"`
	Target       int            `json:"target"`
	Complete     bool           `json:"complete"`
	Percent      float64        `json:"percent"`
	Breakdown    map[string]int `json:"breakdown"`
	Message      string         `json:"message"`
}

// Calibrator computes and persists baseline snapshots.
type Calibrator struct {
	store Store
	cfg   *config.Tuning
	clock timeutil.Clock
}

// NewCalibrator returns a calibrator over the given store. A nil cfg uses
// the defaults and a nil clock uses the real one.
func NewCalibrator(store Store, cfg *config.Tuning, clock timeutil.Clock) *Calibrator {
	if cfg == nil {
		cfg = config.Default()
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Calibrator{store: store, cfg: cfg, clock: clock}
}

// Calculate computes a fresh snapshot from the user's current labeled set
// without persisting anything.
func (c *Calibrator) Calculate(ctx context.Context, userID int64) (Snapshot, error) {
	dives, err := c.store.LabeledDives(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading labeled dives: %w", err)
	}
	resting, err := c.store.RestingHRAverage(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading resting HR: %w", err)
	}
	return Compute(dives, resting, c.clock.Now().UTC())
}

// Update recomputes the user's baselines from scratch and persists the
// result with an audit entry. On ErrNoLabeledDives nothing is written and
// any previously stored snapshot is left untouched.
func (c *Calibrator) Update(ctx context.Context, userID int64) (Snapshot, error) {
	snap, err := c.Calculate(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	target := c.cfg.GetCalibrationTarget()
	snap.Complete = snap.CalibrationDives >= target
	entry := HistoryEntry{
		RunID:         uuid.New().String(),
		DivesAnalyzed: snap.CalibrationDives,
		Confidence:    snap.Confidence(target),
		Quality:       snap.Quality(target),
	}
	if err := c.store.SaveSnapshot(ctx, userID, snap, entry); err != nil {
		return Snapshot{}, fmt.Errorf("saving baselines: %w", err)
	}

	monitoring.Logf("baselines updated: user=%d dives=%d confidence=%.1f quality=%s",
		userID, snap.CalibrationDives, entry.Confidence, entry.Quality)
	return snap, nil
}

// Progress reports calibration progress for the user, with a message suited
// to how far along they are.
func (c *Calibrator) Progress(ctx context.Context, userID int64) (Progress, error) {
	breakdown, err := c.store.LabelBreakdown(ctx, userID)
	if err != nil {
		return Progress{}, fmt.Errorf("loading label breakdown: %w", err)
	}
	dives, err := c.store.LabeledDives(ctx, userID)
	if err != nil {
		return Progress{}, fmt.Errorf("loading labeled dives: %w", err)
	}

	target := c.cfg.GetCalibrationTarget()
	p := Progress{
		TotalLabeled: len(dives),
		Target:       target,
		Complete:     len(dives) >= target,
		Percent:      math.Min(100, float64(len(dives))/float64(target)*100),
		Breakdown:    breakdown,
	}
	p.Message = progressMessage(p)
	return p, nil
}

func progressMessage(p Progress) string {
	switch {
	case p.Complete:
		return fmt.Sprintf("Calibration complete with %d labeled dives. Auto-detection is fully personalized.", p.TotalLabeled)
	case p.TotalLabeled == 0:
		return fmt.Sprintf("Label your next %d dives to build your personal baseline.", p.Target)
	case p.TotalLabeled < 10:
		return fmt.Sprintf("Building your baseline: %d/%d dives labeled. Keep going.", p.TotalLabeled, p.Target)
	default:
		return fmt.Sprintf("Almost there: %d more labeled dives to complete calibration.", p.Target-p.TotalLabeled)
	}
}
