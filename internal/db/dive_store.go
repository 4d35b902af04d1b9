package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/freedive-data/apnea.report/internal/analysis"
	"github.com/freedive-data/apnea.report/internal/baseline"
	"github.com/freedive-data/apnea.report/internal/dive"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Activity is one synced Garmin activity.
type Activity struct {
	ID           int64     `json:"id"`
	GarminID     int64     `json:"garmin_id"`
	UserID       int64     `json:"user_id"`
	Name         string    `json:"name"`
	ActivityType string    `json:"activity_type"`
	StartTime    time.Time `json:"start_time"`
	Duration     float64   `json:"duration"`
	DiveCount    int       `json:"dive_count"`
	SyncedAt     time.Time `json:"synced_at"`
}

// DiveRow is one stored dive. The scalar summary columns are denormalized
// from the analysis for querying; AnalysisJSON holds the complete analysis
// record.
type DiveRow struct {
	ID         int64     `json:"id"`
	ActivityID int64     `json:"activity_id"`
	DiveNumber int       `json:"dive_number"`
	StartTime  time.Time `json:"start_time"`
	Duration   float64   `json:"duration"`
	MaxDepth   float64   `json:"max_depth"`
	AvgDepth   float64   `json:"avg_depth"`
	BottomTime float64   `json:"bottom_time"`
	SurfaceIvl float64   `json:"surface_interval"`

	AvgHR *float64 `json:"avg_hr,omitempty"`
	MaxHR *float64 `json:"max_hr,omitempty"`
	MinHR *float64 `json:"min_hr,omitempty"`

	DescentRate    *float64 `json:"descent_rate,omitempty"`
	MaxDescentRate *float64 `json:"max_descent_rate,omitempty"`
	AscentRate     *float64 `json:"ascent_rate,omitempty"`
	MaxAscentRate  *float64 `json:"max_ascent_rate,omitempty"`
	VelocityCV     *float64 `json:"velocity_cv,omitempty"`

	DetectedDiscipline   dive.Discipline `json:"detected_discipline"`
	DisciplineConfidence float64         `json:"discipline_confidence"`
	DetectedLungVolume   dive.LungVolume `json:"detected_lung_volume"`
	LungConfidence       float64         `json:"lung_confidence"`

	ManualDiscipline *dive.Discipline `json:"manual_discipline,omitempty"`
	ManualLungVolume *dive.LungVolume `json:"manual_lung_volume,omitempty"`

	AnalysisJSON []byte `json:"-"`
}

// FinalDiscipline is the manual label when present, otherwise the detected
// one.
func (r DiveRow) FinalDiscipline() dive.Discipline {
	if r.ManualDiscipline != nil {
		return *r.ManualDiscipline
	}
	return r.DetectedDiscipline
}

// FinalLungVolume is the manual label when present, otherwise the detected
// one.
func (r DiveRow) FinalLungVolume() dive.LungVolume {
	if r.ManualLungVolume != nil {
		return *r.ManualLungVolume
	}
	return r.DetectedLungVolume
}

// NewDiveRow flattens an analyzed dive into its storage row.
func NewDiveRow(activityID int64, d analysis.Dive) (DiveRow, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return DiveRow{}, fmt.Errorf("encoding analysis for dive %d: %w", d.DiveNumber, err)
	}

	row := DiveRow{
		ActivityID:           activityID,
		DiveNumber:           d.DiveNumber,
		StartTime:            d.StartTime,
		Duration:             d.Duration,
		MaxDepth:             d.MaxDepth,
		AvgDepth:             d.AvgDepth,
		BottomTime:           d.BottomTime,
		SurfaceIvl:           d.SurfaceInterval,
		AvgHR:                d.AvgHR,
		MaxHR:                d.MaxHR,
		MinHR:                d.MinHR,
		DetectedDiscipline:   d.Discipline.Discipline,
		DisciplineConfidence: d.Discipline.Confidence,
		DetectedLungVolume:   d.LungVolume.LungVolume,
		LungConfidence:       d.LungVolume.Confidence,
		AnalysisJSON:         payload,
	}
	if !d.Profile.Empty() {
		row.DescentRate = &d.Profile.DescentRate
		row.MaxDescentRate = &d.Profile.MaxDescentRate
		row.AscentRate = &d.Profile.AscentRate
		row.MaxAscentRate = &d.Profile.MaxAscentRate
		row.VelocityCV = &d.Profile.CV
	}
	return row, nil
}

// UpsertActivity inserts the activity or refreshes an already-synced one,
// keyed by its Garmin ID. The local ID is filled in either way.
func (db *DB) UpsertActivity(ctx context.Context, a *Activity) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO activities (garmin_id, user_id, name, activity_type, start_time, duration, dive_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(garmin_id) DO UPDATE SET
			name = excluded.name,
			activity_type = excluded.activity_type,
			start_time = excluded.start_time,
			duration = excluded.duration,
			dive_count = excluded.dive_count,
			synced_at = CURRENT_TIMESTAMP`,
		a.GarminID, a.UserID, a.Name, a.ActivityType, a.StartTime.UTC(), a.Duration, a.DiveCount,
	)
	if err != nil {
		return fmt.Errorf("upserting activity %d: %w", a.GarminID, err)
	}

	err = db.QueryRowContext(ctx,
		`SELECT id FROM activities WHERE garmin_id = ?`, a.GarminID).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("reading back activity %d: %w", a.GarminID, err)
	}
	return nil
}

// ActivityByGarminID looks up a synced activity. Returns ErrNotFound when
// the activity was never synced.
func (db *DB) ActivityByGarminID(ctx context.Context, garminID int64) (*Activity, error) {
	var a Activity
	err := db.QueryRowContext(ctx, `
		SELECT id, garmin_id, user_id, name, activity_type, start_time, duration, dive_count, synced_at
		FROM activities WHERE garmin_id = ?`, garminID).Scan(
		&a.ID, &a.GarminID, &a.UserID, &a.Name, &a.ActivityType, &a.StartTime, &a.Duration, &a.DiveCount, &a.SyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading activity %d: %w", garminID, err)
	}
	return &a, nil
}

// ActivityByID looks up a synced activity by its local row ID.
func (db *DB) ActivityByID(ctx context.Context, id int64) (*Activity, error) {
	var a Activity
	err := db.QueryRowContext(ctx, `
		SELECT id, garmin_id, user_id, name, activity_type, start_time, duration, dive_count, synced_at
		FROM activities WHERE id = ?`, id).Scan(
		&a.ID, &a.GarminID, &a.UserID, &a.Name, &a.ActivityType, &a.StartTime, &a.Duration, &a.DiveCount, &a.SyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading activity row %d: %w", id, err)
	}
	return &a, nil
}

// Activities lists synced activities for a user, newest first.
func (db *DB) Activities(ctx context.Context, userID int64, limit int) ([]Activity, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, garmin_id, user_id, name, activity_type, start_time, duration, dive_count, synced_at
		FROM activities WHERE user_id = ? ORDER BY start_time DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.GarminID, &a.UserID, &a.Name, &a.ActivityType,
			&a.StartTime, &a.Duration, &a.DiveCount, &a.SyncedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ReplaceDives swaps out an activity's analyzed dives in one transaction.
// Manual labels on existing rows survive the re-analysis, matched by dive
// number.
func (db *DB) ReplaceDives(ctx context.Context, activityID int64, divesToStore []DiveRow) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning replace: %w", err)
	}
	defer tx.Rollback()

	labels := map[int][2]sql.NullString{}
	rows, err := tx.QueryContext(ctx, `
		SELECT dive_number, manual_discipline, manual_lung_volume
		FROM dives WHERE activity_id = ?`, activityID)
	if err != nil {
		return fmt.Errorf("reading existing labels: %w", err)
	}
	for rows.Next() {
		var n int
		var disc, lung sql.NullString
		if err := rows.Scan(&n, &disc, &lung); err != nil {
			rows.Close()
			return err
		}
		labels[n] = [2]sql.NullString{disc, lung}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM dives WHERE activity_id = ?`, activityID); err != nil {
		return fmt.Errorf("clearing dives for activity %d: %w", activityID, err)
	}

	for _, d := range divesToStore {
		kept := labels[d.DiveNumber]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dives (
				activity_id, dive_number, start_time, duration, max_depth, avg_depth,
				bottom_time, surface_interval, avg_hr, max_hr, min_hr,
				descent_rate, max_descent_rate, ascent_rate, max_ascent_rate, velocity_cv,
				detected_discipline, discipline_confidence, detected_lung_volume, lung_confidence,
				manual_discipline, manual_lung_volume, analysis_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			activityID, d.DiveNumber, d.StartTime.UTC(), d.Duration, d.MaxDepth, d.AvgDepth,
			d.BottomTime, d.SurfaceIvl, d.AvgHR, d.MaxHR, d.MinHR,
			d.DescentRate, d.MaxDescentRate, d.AscentRate, d.MaxAscentRate, d.VelocityCV,
			string(d.DetectedDiscipline), d.DisciplineConfidence, string(d.DetectedLungVolume), d.LungConfidence,
			kept[0], kept[1], string(d.AnalysisJSON),
		)
		if err != nil {
			return fmt.Errorf("inserting dive %d: %w", d.DiveNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing replace: %w", err)
	}
	return nil
}

const diveColumns = `
	d.id, d.activity_id, d.dive_number, d.start_time, d.duration, d.max_depth, d.avg_depth,
	d.bottom_time, d.surface_interval, d.avg_hr, d.max_hr, d.min_hr,
	d.descent_rate, d.max_descent_rate, d.ascent_rate, d.max_ascent_rate, d.velocity_cv,
	d.detected_discipline, d.discipline_confidence, d.detected_lung_volume, d.lung_confidence,
	d.manual_discipline, d.manual_lung_volume, d.analysis_json`

func scanDive(scan func(...any) error) (DiveRow, error) {
	var d DiveRow
	var manualDisc, manualLung sql.NullString
	var payload string
	err := scan(
		&d.ID, &d.ActivityID, &d.DiveNumber, &d.StartTime, &d.Duration, &d.MaxDepth, &d.AvgDepth,
		&d.BottomTime, &d.SurfaceIvl, &d.AvgHR, &d.MaxHR, &d.MinHR,
		&d.DescentRate, &d.MaxDescentRate, &d.AscentRate, &d.MaxAscentRate, &d.VelocityCV,
		&d.DetectedDiscipline, &d.DisciplineConfidence, &d.DetectedLungVolume, &d.LungConfidence,
		&manualDisc, &manualLung, &payload,
	)
	if err != nil {
		return DiveRow{}, err
	}
	if manualDisc.Valid {
		v := dive.Discipline(manualDisc.String)
		d.ManualDiscipline = &v
	}
	if manualLung.Valid {
		v := dive.LungVolume(manualLung.String)
		d.ManualLungVolume = &v
	}
	d.AnalysisJSON = []byte(payload)
	return d, nil
}

// DivesByActivity lists an activity's dives in dive order.
func (db *DB) DivesByActivity(ctx context.Context, activityID int64) ([]DiveRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+diveColumns+` FROM dives d WHERE d.activity_id = ? ORDER BY d.dive_number`, activityID)
	if err != nil {
		return nil, fmt.Errorf("listing dives for activity %d: %w", activityID, err)
	}
	defer rows.Close()
	return collectDives(rows)
}

// RecentDives lists a user's dives across activities, newest first.
func (db *DB) RecentDives(ctx context.Context, userID int64, limit int) ([]DiveRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+diveColumns+`
		FROM dives d JOIN activities a ON a.id = d.activity_id
		WHERE a.user_id = ?
		ORDER BY d.start_time DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent dives: %w", err)
	}
	defer rows.Close()
	return collectDives(rows)
}

func collectDives(rows *sql.Rows) ([]DiveRow, error) {
	var out []DiveRow
	for rows.Next() {
		d, err := scanDive(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDive loads one dive by ID.
func (db *DB) GetDive(ctx context.Context, id int64) (*DiveRow, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+diveColumns+` FROM dives d WHERE d.id = ?`, id)
	d, err := scanDive(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading dive %d: %w", id, err)
	}
	return &d, nil
}

// SetManualLabels records the user's labels on a dive. A nil value leaves
// that label unchanged; pass a pointer to the empty string to clear one.
func (db *DB) SetManualLabels(ctx context.Context, diveID int64, discipline *dive.Discipline, lung *dive.LungVolume) error {
	if discipline != nil {
		if err := db.setLabel(ctx, diveID, "manual_discipline", string(*discipline)); err != nil {
			return err
		}
	}
	if lung != nil {
		if err := db.setLabel(ctx, diveID, "manual_lung_volume", string(*lung)); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) setLabel(ctx context.Context, diveID int64, column, value string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE dives SET `+column+` = NULLIF(?, ''), updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		value, diveID)
	if err != nil {
		return fmt.Errorf("labeling dive %d: %w", diveID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// LabeledDives returns the calibration input set: every dive the user has
// manually labeled, with the metrics baselines are computed from.
func (db *DB) LabeledDives(ctx context.Context, userID int64) ([]baseline.LabeledDive, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT d.manual_discipline, d.manual_lung_volume, d.avg_hr, d.descent_rate
		FROM dives d JOIN activities a ON a.id = d.activity_id
		WHERE a.user_id = ?
		  AND (d.manual_discipline IS NOT NULL OR d.manual_lung_volume IS NOT NULL)
		ORDER BY d.start_time`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing labeled dives: %w", err)
	}
	defer rows.Close()

	var out []baseline.LabeledDive
	for rows.Next() {
		var disc, lung sql.NullString
		var d baseline.LabeledDive
		if err := rows.Scan(&disc, &lung, &d.AvgHR, &d.AvgDescentRate); err != nil {
			return nil, err
		}
		d.Discipline = dive.ParseDiscipline(disc.String)
		d.LungVolume = dive.ParseLungVolume(lung.String)
		out = append(out, d)
	}
	return out, rows.Err()
}

// LabelBreakdown counts manually labeled dives per discipline and lung
// volume combination for progress display, keyed like "CWT_full". A dive
// labeled on only one axis reads as unknown on the other.
func (db *DB) LabelBreakdown(ctx context.Context, userID int64) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT COALESCE(d.manual_discipline, ''), COALESCE(d.manual_lung_volume, ''), COUNT(*)
		FROM dives d JOIN activities a ON a.id = d.activity_id
		WHERE a.user_id = ?
		  AND (d.manual_discipline IS NOT NULL OR d.manual_lung_volume IS NOT NULL)
		GROUP BY d.manual_discipline, d.manual_lung_volume`, userID)
	if err != nil {
		return nil, fmt.Errorf("counting label combinations: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var disc, lung string
		var n int
		if err := rows.Scan(&disc, &lung, &n); err != nil {
			return nil, err
		}
		key := string(dive.ParseDiscipline(disc)) + "_" + string(dive.ParseLungVolume(lung))
		out[key] = n
	}
	return out, rows.Err()
}
