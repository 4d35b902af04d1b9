package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/freedive-data/apnea.report/internal/baseline"
	"github.com/freedive-data/apnea.report/internal/dive"
)

// SaveSnapshot replaces the user's baseline state and appends the audit
// entry in one transaction.
func (db *DB) SaveSnapshot(ctx context.Context, userID int64, snap baseline.Snapshot, entry baseline.HistoryEntry) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning snapshot save: %w", err)
	}
	defer tx.Rollback()

	var resting *float64
	if snap.RestingHR != nil {
		resting = &snap.RestingHR.Mean
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_profiles (
			user_id, hr_baseline_full, hr_baseline_frc, hr_baseline_exhale,
			descent_baseline_fim, descent_baseline_cwt, descent_baseline_cnf,
			resting_hr, calibration_dives, calibration_complete,
			baseline_confidence, baseline_quality, baselines_json, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			hr_baseline_full = excluded.hr_baseline_full,
			hr_baseline_frc = excluded.hr_baseline_frc,
			hr_baseline_exhale = excluded.hr_baseline_exhale,
			descent_baseline_fim = excluded.descent_baseline_fim,
			descent_baseline_cwt = excluded.descent_baseline_cwt,
			descent_baseline_cnf = excluded.descent_baseline_cnf,
			resting_hr = excluded.resting_hr,
			calibration_dives = excluded.calibration_dives,
			calibration_complete = excluded.calibration_complete,
			baseline_confidence = excluded.baseline_confidence,
			baseline_quality = excluded.baseline_quality,
			baselines_json = excluded.baselines_json,
			updated_at = CURRENT_TIMESTAMP`,
		userID,
		hrMean(snap, dive.LungFull),
		hrMean(snap, dive.LungFRC),
		hrMean(snap, dive.LungExhale),
		descentMean(snap, dive.DisciplineFIM),
		descentMean(snap, dive.DisciplineCWT),
		descentMean(snap, dive.DisciplineCNF),
		resting, snap.CalibrationDives, snap.Complete, entry.Confidence, entry.Quality,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("saving user profile: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO baseline_updates (run_id, user_id, dives_analyzed, confidence, quality)
		VALUES (?, ?, ?, ?, ?)`,
		entry.RunID, userID, entry.DivesAnalyzed, entry.Confidence, entry.Quality)
	if err != nil {
		return fmt.Errorf("recording baseline update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot save: %w", err)
	}
	return nil
}

func hrMean(snap baseline.Snapshot, lung dive.LungVolume) *float64 {
	if st, ok := snap.HRByLung[lung]; ok {
		return &st.Mean
	}
	return nil
}

func descentMean(snap baseline.Snapshot, disc dive.Discipline) *float64 {
	if st, ok := snap.DescentByDiscipline[disc]; ok {
		return &st.Mean
	}
	return nil
}

// LoadSnapshot returns the user's persisted baseline snapshot, or nil when
// the user has never been calibrated.
func (db *DB) LoadSnapshot(ctx context.Context, userID int64) (*baseline.Snapshot, error) {
	var payload sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT baselines_json FROM user_profiles WHERE user_id = ?`, userID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading baselines for user %d: %w", userID, err)
	}
	if !payload.Valid || payload.String == "" {
		return nil, nil
	}

	var snap baseline.Snapshot
	if err := json.Unmarshal([]byte(payload.String), &snap); err != nil {
		return nil, fmt.Errorf("decoding baselines for user %d: %w", userID, err)
	}
	return &snap, nil
}

// UpsertHealthMetrics records one day of ambient health data, replacing any
// previous sync of the same day.
func (db *DB) UpsertHealthMetrics(ctx context.Context, userID int64, date string, restingHR, avgSleepHR *float64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO health_metrics (user_id, date, resting_hr, avg_sleep_hr)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			resting_hr = excluded.resting_hr,
			avg_sleep_hr = excluded.avg_sleep_hr`,
		userID, date, restingHR, avgSleepHR)
	if err != nil {
		return fmt.Errorf("upserting health metrics for %s: %w", date, err)
	}
	return nil
}

// RestingHRAverage averages the user's synced resting heart rates. Returns
// nil when no health data has been synced.
func (db *DB) RestingHRAverage(ctx context.Context, userID int64) (*float64, error) {
	var avg sql.NullFloat64
	err := db.QueryRowContext(ctx,
		`SELECT AVG(resting_hr) FROM health_metrics WHERE user_id = ? AND resting_hr IS NOT NULL`,
		userID).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("averaging resting HR: %w", err)
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

// BaselineHistory lists the user's calibration runs, newest first.
func (db *DB) BaselineHistory(ctx context.Context, userID int64, limit int) ([]baseline.HistoryEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, dives_analyzed, confidence, quality
		FROM baseline_updates WHERE user_id = ?
		ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing baseline history: %w", err)
	}
	defer rows.Close()

	var out []baseline.HistoryEntry
	for rows.Next() {
		var e baseline.HistoryEntry
		if err := rows.Scan(&e.RunID, &e.DivesAnalyzed, &e.Confidence, &e.Quality); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
