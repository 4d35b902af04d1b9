// Package syncer pulls data from Garmin Connect, runs the analysis
// pipeline, and lands the results in the store. One failed activity never
// aborts the rest of a sync run.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/freedive-data/apnea.report/internal/analysis"
	"github.com/freedive-data/apnea.report/internal/config"
	"github.com/freedive-data/apnea.report/internal/db"
	"github.com/freedive-data/apnea.report/internal/dive"
	"github.com/freedive-data/apnea.report/internal/garmin"
	"github.com/freedive-data/apnea.report/internal/monitoring"
	"github.com/freedive-data/apnea.report/internal/timeutil"
)

// Client is the Garmin API surface the syncer consumes. Satisfied by
// *garmin.Client; tests substitute a fake.
type Client interface {
	Login(ctx context.Context) error
	ActivitiesByDate(ctx context.Context, startDate, endDate string) ([]garmin.ActivitySummary, error)
	ActivitySplits(ctx context.Context, activityID int64) (garmin.Splits, error)
	ActivityDetails(ctx context.Context, activityID int64) (garmin.Details, error)
	DailyStatsFor(ctx context.Context, date string) (garmin.DailyStats, error)
}

// Syncer drives sync runs for one user.
type Syncer struct {
	client   Client
	store    *db.DB
	analyzer *analysis.Analyzer
	clock    timeutil.Clock
	userID   int64
}

// New builds a Syncer. A nil clock uses the real one.
func New(client Client, store *db.DB, cfg *config.Tuning, clock timeutil.Clock, userID int64) *Syncer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Syncer{
		client:   client,
		store:    store,
		analyzer: analysis.NewAnalyzer(cfg),
		clock:    clock,
		userID:   userID,
	}
}

// SyncDays syncs the last n days, today included.
func (s *Syncer) SyncDays(ctx context.Context, days int) error {
	if err := s.client.Login(ctx); err != nil {
		return err
	}
	today := s.clock.Now().UTC()
	for i := 0; i < days; i++ {
		if err := s.SyncDate(ctx, today.AddDate(0, 0, -i)); err != nil {
			return err
		}
	}
	return nil
}

// SyncDate syncs health metrics and diving activities for one day.
func (s *Syncer) SyncDate(ctx context.Context, day time.Time) error {
	date := day.Format("2006-01-02")
	monitoring.Logf("sync: %s", date)

	// Health metrics are best effort; a day without wellness data is
	// normal.
	if stats, err := s.client.DailyStatsFor(ctx, date); err != nil {
		monitoring.Logf("sync: health metrics for %s unavailable: %v", date, err)
	} else if err := s.store.UpsertHealthMetrics(ctx, s.userID, date, stats.RestingHeartRate, stats.MinAvgHeartRate); err != nil {
		return err
	}

	activities, err := s.client.ActivitiesByDate(ctx, date, date)
	if err != nil {
		return err
	}
	for _, a := range activities {
		if !a.IsDiving() {
			continue
		}
		if err := s.SyncActivity(ctx, a); err != nil {
			monitoring.Logf("sync: skipping activity %d: %v", a.ActivityID, err)
		}
	}
	return nil
}

// SyncActivity fetches, analyzes, and stores one diving activity. An
// activity whose stream has no depth channel is reported and skipped.
func (s *Syncer) SyncActivity(ctx context.Context, a garmin.ActivitySummary) error {
	splits, err := s.client.ActivitySplits(ctx, a.ActivityID)
	if err != nil {
		return err
	}
	details, err := s.client.ActivityDetails(ctx, a.ActivityID)
	if err != nil {
		return err
	}

	series, err := details.Series()
	if errors.Is(err, dive.ErrMissingDepthChannel) {
		return fmt.Errorf("activity %d (%s): %w", a.ActivityID, a.ActivityName, err)
	}
	if err != nil {
		return err
	}

	snap, err := s.store.LoadSnapshot(ctx, s.userID)
	if err != nil {
		return err
	}

	laps := splits.LapBoundaries()
	sess, err := s.analyzer.AnalyzeActivity(series, laps, snap)
	if err != nil {
		return fmt.Errorf("analyzing activity %d: %w", a.ActivityID, err)
	}

	activity := &db.Activity{
		GarminID:     a.ActivityID,
		UserID:       s.userID,
		Name:         a.ActivityName,
		ActivityType: a.ActivityType.TypeKey,
		StartTime:    firstLapStart(laps),
		Duration:     a.Duration,
		DiveCount:    len(sess.Dives),
	}
	if err := s.store.UpsertActivity(ctx, activity); err != nil {
		return err
	}

	rows := make([]db.DiveRow, 0, len(sess.Dives))
	for _, d := range sess.Dives {
		row, err := db.NewDiveRow(activity.ID, d)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if err := s.store.ReplaceDives(ctx, activity.ID, rows); err != nil {
		return err
	}

	monitoring.Logf("sync: stored activity %d with %d dives", a.ActivityID, len(sess.Dives))
	return nil
}

func firstLapStart(laps []dive.LapBoundary) time.Time {
	if len(laps) > 0 {
		return laps[0].StartTime
	}
	return time.Time{}
}
