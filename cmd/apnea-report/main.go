// Command apnea-report syncs freediving activities from Garmin Connect,
// runs the dive analysis pipeline, and serves the results.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/freedive-data/apnea.report/internal/analysis"
	"github.com/freedive-data/apnea.report/internal/api"
	"github.com/freedive-data/apnea.report/internal/baseline"
	"github.com/freedive-data/apnea.report/internal/config"
	"github.com/freedive-data/apnea.report/internal/db"
	"github.com/freedive-data/apnea.report/internal/dive"
	"github.com/freedive-data/apnea.report/internal/garmin"
	"github.com/freedive-data/apnea.report/internal/report"
	"github.com/freedive-data/apnea.report/internal/syncer"
	"github.com/freedive-data/apnea.report/internal/units"
	"github.com/freedive-data/apnea.report/internal/version"
)

const usageText = `Usage: apnea-report <command> [flags]

Commands:
  sync       Pull recent activities and health metrics from Garmin Connect
  analyze    Re-run classification on stored dives with the current baseline
  calibrate  Recompute personal baselines from labeled dives
  report     Write a session dashboard HTML file (and optional profile PNGs)
  serve      Run the HTTP API with a nightly sync schedule
  migrate    Manage the database schema (up, down, status)
  version    Print build information

Run 'apnea-report <command> -h' for command flags.
`

func main() {
	// A missing .env file is fine; credentials can come from the real
	// environment.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "sync":
		err = cmdSync(os.Args[2:])
	case "analyze":
		err = cmdAnalyze(os.Args[2:])
	case "calibrate":
		err = cmdCalibrate(os.Args[2:])
	case "report":
		err = cmdReport(os.Args[2:])
	case "serve":
		err = cmdServe(os.Args[2:])
	case "migrate":
		err = cmdMigrate(os.Args[2:])
	case "version":
		fmt.Printf("apnea-report %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
	case "-h", "--help", "help":
		fmt.Print(usageText)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usageText)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// commonFlags registers the flags every command shares.
func commonFlags(fs *flag.FlagSet) (dbPath, cfgPath *string, userID *int64) {
	dbPath = fs.String("db", envOr("DATABASE_PATH", "apnea.db"), "path to sqlite database")
	cfgPath = fs.String("config", "", "path to tuning config JSON (defaults when empty)")
	userID = fs.Int64("user", 1, "user id")
	return
}

func openDB(path string) (*db.DB, error) {
	store, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := store.MigrateUp(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return store, nil
}

func loadTuning(path string) (*config.Tuning, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func garminClient() (*garmin.Client, error) {
	email := os.Getenv("GARMIN_EMAIL")
	password := os.Getenv("GARMIN_PASSWORD")
	if email == "" || password == "" {
		return nil, fmt.Errorf("GARMIN_EMAIL / GARMIN_PASSWORD must be set")
	}
	return garmin.NewClient(email, password), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func cmdSync(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	dbPath, cfgPath, userID := commonFlags(fs)
	days := fs.Int("days", 7, "number of days to sync, today included")
	fs.Parse(args)

	cfg, err := loadTuning(*cfgPath)
	if err != nil {
		return err
	}
	client, err := garminClient()
	if err != nil {
		return err
	}
	store, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signalContext()
	defer stop()

	s := syncer.New(client, store, cfg, nil, *userID)
	return s.SyncDays(ctx, *days)
}

func cmdAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	dbPath, cfgPath, userID := commonFlags(fs)
	fs.Parse(args)

	cfg, err := loadTuning(*cfgPath)
	if err != nil {
		return err
	}
	store, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signalContext()
	defer stop()

	snap, err := store.LoadSnapshot(ctx, *userID)
	if err != nil {
		return err
	}

	activities, err := store.Activities(ctx, *userID, 1000)
	if err != nil {
		return err
	}

	analyzer := analysis.NewAnalyzer(cfg)
	for _, a := range activities {
		if err := reanalyzeActivity(ctx, store, analyzer, a, snap); err != nil {
			return fmt.Errorf("re-analyzing activity %d: %w", a.GarminID, err)
		}
		log.Printf("re-analyzed %s (%d dives)", a.StartTime.Format("2006-01-02"), a.DiveCount)
	}
	return nil
}

// reanalyzeActivity rebuilds each stored dive's segment from its archived
// analysis record and runs the pipeline again. Manual labels survive the
// rewrite.
func reanalyzeActivity(ctx context.Context, store *db.DB, analyzer *analysis.Analyzer, a db.Activity, snap *baseline.Snapshot) error {
	rows, err := store.DivesByActivity(ctx, a.ID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	segments := make([]dive.Segment, 0, len(rows))
	var hrs []float64
	for _, row := range rows {
		var old analysis.Dive
		if err := json.Unmarshal(row.AnalysisJSON, &old); err != nil {
			return fmt.Errorf("decoding dive %d: %w", row.DiveNumber, err)
		}
		segments = append(segments, dive.Segment{
			DiveNumber: row.DiveNumber,
			Lap: dive.LapBoundary{
				StartTime:       row.StartTime,
				Duration:        row.Duration,
				MaxDepth:        row.MaxDepth,
				AvgDepth:        row.AvgDepth,
				BottomTime:      row.BottomTime,
				SurfaceInterval: row.SurfaceIvl,
				AvgHR:           row.AvgHR,
				MaxHR:           row.MaxHR,
			},
			Samples: old.Samples,
		})
		if row.AvgHR != nil {
			hrs = append(hrs, *row.AvgHR)
		}
	}

	var sessionHR *float64
	if len(hrs) > 0 {
		sum := 0.0
		for _, v := range hrs {
			sum += v
		}
		avg := sum / float64(len(hrs))
		sessionHR = &avg
	}

	fresh := make([]db.DiveRow, 0, len(segments))
	for _, seg := range segments {
		d := analyzer.AnalyzeSegment(seg, sessionHR, snap)
		row, err := db.NewDiveRow(a.ID, d)
		if err != nil {
			return err
		}
		fresh = append(fresh, row)
	}
	return store.ReplaceDives(ctx, a.ID, fresh)
}

func cmdCalibrate(args []string) error {
	fs := flag.NewFlagSet("calibrate", flag.ExitOnError)
	dbPath, cfgPath, userID := commonFlags(fs)
	fs.Parse(args)

	cfg, err := loadTuning(*cfgPath)
	if err != nil {
		return err
	}
	store, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signalContext()
	defer stop()

	cal := baseline.NewCalibrator(store, cfg, nil)
	snap, err := cal.Update(ctx, *userID)
	if err != nil {
		return err
	}

	target := cfg.GetCalibrationTarget()
	fmt.Printf("baselines updated from %d labeled dives\n", snap.CalibrationDives)
	fmt.Printf("confidence: %.1f%% quality: %s\n", snap.Confidence(target), snap.Quality(target))

	progress, err := cal.Progress(ctx, *userID)
	if err != nil {
		return err
	}
	fmt.Println(progress.Message)
	return nil
}

func cmdReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	dbPath, _, _ := commonFlags(fs)
	activityID := fs.Int64("activity", 0, "local activity id to report on")
	outPath := fs.String("out", "session.html", "output HTML path")
	pngDir := fs.String("png-dir", "", "also write per-dive profile PNGs into this directory")
	fs.Parse(args)

	if *activityID == 0 {
		return fmt.Errorf("flag -activity is required")
	}

	store, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signalContext()
	defer stop()

	activity, err := store.ActivityByID(ctx, *activityID)
	if err != nil {
		return err
	}
	rows, err := store.DivesByActivity(ctx, activity.ID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("activity %d has no analyzed dives", activity.ID)
	}

	dives := make([]analysis.Dive, 0, len(rows))
	for _, row := range rows {
		var d analysis.Dive
		if err := json.Unmarshal(row.AnalysisJSON, &d); err != nil {
			return fmt.Errorf("decoding dive %d: %w", row.DiveNumber, err)
		}
		dives = append(dives, d)
	}

	title := activity.Name
	if title == "" {
		title = fmt.Sprintf("Session %s", activity.StartTime.Format("2006-01-02"))
	}
	if err := report.WriteSessionHTML(*outPath, title, dives); err != nil {
		return err
	}
	log.Printf("wrote %s (%d dives)", *outPath, len(dives))

	if *pngDir != "" {
		if err := os.MkdirAll(*pngDir, 0o755); err != nil {
			return err
		}
		for _, d := range dives {
			path := filepath.Join(*pngDir, fmt.Sprintf("dive_%02d.png", d.DiveNumber))
			if err := report.SaveProfilePNG(d, path); err != nil {
				return fmt.Errorf("rendering dive %d: %w", d.DiveNumber, err)
			}
			log.Printf("wrote %s", path)
		}
	}
	return nil
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dbPath, cfgPath, userID := commonFlags(fs)
	listen := fs.String("listen", ":8080", "HTTP listen address")
	syncSpec := fs.String("sync-cron", "0 3 * * *", "cron spec for the nightly sync (empty disables)")
	syncDays := fs.Int("sync-days", 2, "days per scheduled sync")
	unitSystem := fs.String("units", units.Metric, "display units ("+units.GetValidSystemsString()+")")
	fs.Parse(args)

	if !units.IsValid(*unitSystem) {
		return fmt.Errorf("invalid units %q (want one of: %s)", *unitSystem, units.GetValidSystemsString())
	}
	cfg, err := loadTuning(*cfgPath)
	if err != nil {
		return err
	}
	store, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signalContext()
	defer stop()

	srv := api.NewServer(store, baseline.NewCalibrator(store, cfg, nil), *userID, *unitSystem)
	httpServer := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(srv.ServeMux()),
	}

	var scheduler *cron.Cron
	if *syncSpec != "" {
		client, err := garminClient()
		if err != nil {
			// The dashboard still works without credentials; only the
			// scheduled sync is off.
			log.Printf("scheduled sync disabled: %v", err)
		} else {
			s := syncer.New(client, store, cfg, nil, *userID)
			scheduler = cron.New()
			if _, err := scheduler.AddFunc(*syncSpec, func() {
				syncCtx, cancel := context.WithTimeout(ctx, 15*time.Minute)
				defer cancel()
				if err := s.SyncDays(syncCtx, *syncDays); err != nil {
					log.Printf("scheduled sync failed: %v", err)
				}
			}); err != nil {
				return fmt.Errorf("invalid -sync-cron spec %q: %w", *syncSpec, err)
			}
			scheduler.Start()
			log.Printf("scheduled sync: %q, %d days per run", *syncSpec, *syncDays)
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("listening on %s", *listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Print("shutting down")

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	wg.Wait()
	return nil
}

func cmdMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", envOr("DATABASE_PATH", "apnea.db"), "path to sqlite database")
	fs.Parse(args)

	direction := fs.Arg(0)
	if direction == "" {
		return fmt.Errorf("usage: apnea-report migrate [flags] {up|down|status}")
	}

	store, err := db.Open(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	switch direction {
	case "up":
		if err := store.MigrateUp(); err != nil {
			return err
		}
		log.Print("migrations applied")
	case "down":
		if err := store.MigrateDown(); err != nil {
			return err
		}
		log.Print("migrations rolled back")
	case "status":
		v, dirty, err := store.MigrateVersion()
		if err != nil {
			return err
		}
		fmt.Printf("schema version %d (dirty=%v)\n", v, dirty)
	default:
		return fmt.Errorf("unknown migrate direction %q (want up, down, or status)", direction)
	}
	return nil
}
