package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/perimeter-labs/trackmatch/internal/report"
	"github.com/perimeter-labs/trackmatch/internal/security"
	"github.com/perimeter-labs/trackmatch/internal/trackstore"
	"github.com/perimeter-labs/trackmatch/internal/version"
)

func main() {
	var (
		dbPath      = flag.String("db", "tracking.db", "path to sqlite db")
		runID       = flag.String("run", "", "run to render (lists recent runs when empty)")
		outDir      = flag.String("out", "reports", "directory for the HTML report and trail plot")
		arenaWidth  = flag.Float64("arena-width", 0, "x-axis bound for the trail plot (0 = auto)")
		arenaHeight = flag.Float64("arena-height", 0, "y-axis bound for the trail plot (0 = auto)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("trackreport %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	db, err := trackstore.Open(*dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := db.MigrateUp(); err != nil {
		log.Fatalf("migrate db: %v", err)
	}

	if *runID == "" {
		listRuns(db)
		return
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}

	// Run IDs come out of the database, so never trust them as path
	// components.
	name := security.SanitizeFilename(*runID)

	reportPath := filepath.Join(*outDir, name+".html")
	if err := security.ValidatePathWithinDirectory(reportPath, *outDir); err != nil {
		log.Fatalf("report path: %v", err)
	}
	if err := report.WriteRunReport(db, *runID, reportPath); err != nil {
		log.Fatalf("write report: %v", err)
	}
	log.Printf("report: %s", reportPath)

	trailPath := filepath.Join(*outDir, name+"_trails.png")
	if err := security.ValidatePathWithinDirectory(trailPath, *outDir); err != nil {
		log.Fatalf("trail path: %v", err)
	}
	if err := report.WriteTrailPlot(db, *runID, trailPath, *arenaWidth, *arenaHeight); err != nil {
		log.Fatalf("write trail plot: %v", err)
	}
	log.Printf("trails: %s", trailPath)
}

func listRuns(db *trackstore.DB) {
	runs, err := db.ListRuns(20)
	if err != nil {
		log.Fatalf("list runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return
	}

	for _, run := range runs {
		status := "open"
		if run.FinishedUnixNanos > 0 {
			status = fmt.Sprintf("%d frames", run.FrameCount)
		}
		fmt.Printf("%s  %-12s  seed=%-6d  %s  %s\n",
			run.RunID, run.Scenario, run.Seed,
			time.Unix(0, run.StartedUnixNanos).Format(time.RFC3339), status)
	}
}
