package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/perimeter-labs/trackmatch/internal/config"
	"github.com/perimeter-labs/trackmatch/internal/mot"
	"github.com/perimeter-labs/trackmatch/internal/report"
	"github.com/perimeter-labs/trackmatch/internal/trackstore"
	"github.com/perimeter-labs/trackmatch/internal/version"
)

const framePeriod = 50 * time.Millisecond // 20 fps

func main() {
	var (
		dbPath       = flag.String("db", "tracking.db", "path to sqlite db")
		outDir       = flag.String("out", "reports", "directory for the HTML report and trail plot")
		configPath   = flag.String("config", "", "tuning config JSON (built-in defaults when empty)")
		frames       = flag.Int("frames", 0, "frames to simulate (0 = config value)")
		objects      = flag.Int("objects", 0, "objects to simulate (0 = config value)")
		seed         = flag.Int64("seed", 42, "random seed for the scenario")
		scenarioName = flag.String("scenario", "synthetic", "scenario label recorded on the run")
		showVersion  = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("tracksim %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	simFrames := cfg.GetSimFrames()
	if *frames > 0 {
		simFrames = *frames
	}
	simObjects := cfg.GetSimObjects()
	if *objects > 0 {
		simObjects = *objects
	}

	db, err := trackstore.Open(*dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := db.MigrateUp(); err != nil {
		log.Fatalf("migrate db: %v", err)
	}

	runID := "run_" + uuid.NewString()
	started := time.Now()
	if err := db.InsertRun(&trackstore.Run{
		RunID:            runID,
		Scenario:         *scenarioName,
		Seed:             *seed,
		StartedUnixNanos: started.UnixNano(),
		Notes:            fmt.Sprintf("%d objects, %d frames", simObjects, simFrames),
	}); err != nil {
		log.Fatalf("insert run: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	scene := newScenario(*scenarioName, simObjects, cfg, rng)
	tracker := mot.NewTracker(mot.TrackerConfigFromTuning(cfg))

	log.Printf("run %s: scenario=%s objects=%d frames=%d seed=%d db=%s",
		runID, scene.Name, simObjects, simFrames, *seed, *dbPath)

	var totalDetections, totalMatches int
	for frame := 0; frame < simFrames; frame++ {
		ts := started.Add(time.Duration(frame) * framePeriod)
		detections := scene.Step()

		tracker.Predict()
		stats, err := tracker.Update(detections, ts)
		if err != nil {
			log.Fatalf("frame %d: %v", frame, err)
		}
		totalDetections += len(detections)
		totalMatches += stats.Matches

		if err := db.InsertFrameStats(runID, frame, ts.UnixNano(), len(detections), stats); err != nil {
			log.Fatalf("frame %d: insert stats: %v", frame, err)
		}
		if err := persistConfirmed(db, runID, tracker, frame, ts.UnixNano()); err != nil {
			log.Fatalf("frame %d: %v", frame, err)
		}
	}

	finished := started.Add(time.Duration(simFrames) * framePeriod)
	if err := db.FinishRun(runID, finished.UnixNano(), simFrames); err != nil {
		log.Fatalf("finish run: %v", err)
	}

	total, tentative, confirmed := tracker.GetTrackCount()
	log.Printf("run %s done: detections=%d matches=%d tracks created=%d confirmed=%d (live: %d total, %d tentative, %d confirmed)",
		runID, totalDetections, totalMatches, tracker.TracksCreated, tracker.TracksConfirmed, total, tentative, confirmed)

	reportPath := filepath.Join(*outDir, runID+".html")
	if err := report.WriteRunReport(db, runID, reportPath); err != nil {
		log.Fatalf("write report: %v", err)
	}
	log.Printf("report: %s", reportPath)

	trailPath := filepath.Join(*outDir, runID+"_trails.png")
	if err := report.WriteTrailPlot(db, runID, trailPath, scene.ArenaWidth, scene.ArenaHeight); err != nil {
		log.Fatalf("write trail plot: %v", err)
	}
	log.Printf("trails: %s", trailPath)
}

// persistConfirmed upserts every confirmed track and records its
// current state estimate for the frame. Tentative tracks stay out of
// the store so clutter-born two-frame tracks never pollute reports.
func persistConfirmed(db *trackstore.DB, runID string, tracker *mot.Tracker, frame int, tsUnixNanos int64) error {
	for _, track := range tracker.GetConfirmedTracks() {
		if err := db.UpsertTrack(runID, track); err != nil {
			return fmt.Errorf("upsert track %s: %w", track.TrackID, err)
		}
		if track.TimeSinceUpdate() > 0 {
			// Coasting: no fresh measurement this frame, skip the
			// predicted position so trails only show observed motion.
			continue
		}
		if err := db.InsertObservation(trackstore.ObservationFromTrack(track, frame, tsUnixNanos)); err != nil {
			return fmt.Errorf("observe track %s: %w", track.TrackID, err)
		}
	}
	return nil
}
