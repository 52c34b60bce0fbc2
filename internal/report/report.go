package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/perimeter-labs/trackmatch/internal/trackstore"
)

// WriteRunReport renders one run's association stats and track lifetimes
// as a self-contained HTML page at outPath.
func WriteRunReport(db *trackstore.DB, runID, outPath string) error {
	run, err := db.GetRun(runID)
	if err != nil {
		return err
	}
	frames, err := db.ListFrameStats(runID)
	if err != nil {
		return err
	}
	tracks, err := db.ListTracks(runID)
	if err != nil {
		return err
	}

	subtitle := fmt.Sprintf("run=%s scenario=%s seed=%d frames=%d started=%s",
		run.RunID, run.Scenario, run.Seed, run.FrameCount,
		time.Unix(0, run.StartedUnixNanos).Format(time.RFC3339))

	page := components.NewPage()
	page.AddCharts(
		associationChart(subtitle, frames),
		populationChart(subtitle, frames),
		lifetimeChart(subtitle, tracks),
	)

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// associationChart plots per-frame match and miss counts.
func associationChart(subtitle string, frames []*trackstore.FrameRow) *charts.Line {
	x := make([]string, len(frames))
	matches := make([]opts.LineData, len(frames))
	unmatchedTracks := make([]opts.LineData, len(frames))
	unmatchedDetections := make([]opts.LineData, len(frames))
	for i, f := range frames {
		x[i] = strconv.Itoa(f.Frame)
		matches[i] = opts.LineData{Value: f.Matches}
		unmatchedTracks[i] = opts.LineData{Value: f.UnmatchedTracks}
		unmatchedDetections[i] = opts.LineData{Value: f.UnmatchedDetections}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Tracking Run Report", Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Association per frame", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(x).
		AddSeries("matches", matches).
		AddSeries("unmatched tracks", unmatchedTracks).
		AddSeries("unmatched detections", unmatchedDetections)
	return line
}

// populationChart plots active and confirmed track counts per frame.
func populationChart(subtitle string, frames []*trackstore.FrameRow) *charts.Line {
	x := make([]string, len(frames))
	active := make([]opts.LineData, len(frames))
	confirmed := make([]opts.LineData, len(frames))
	created := make([]opts.LineData, len(frames))
	deleted := make([]opts.LineData, len(frames))
	for i, f := range frames {
		x[i] = strconv.Itoa(f.Frame)
		active[i] = opts.LineData{Value: f.ActiveTracks}
		confirmed[i] = opts.LineData{Value: f.ConfirmedTracks}
		created[i] = opts.LineData{Value: f.TracksCreated}
		deleted[i] = opts.LineData{Value: f.TracksDeleted}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Track population", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(x).
		AddSeries("active", active).
		AddSeries("confirmed", confirmed).
		AddSeries("created", created).
		AddSeries("deleted", deleted)
	return line
}

// lifetimeChart plots each track's age in frames.
func lifetimeChart(subtitle string, tracks []*trackstore.TrackRow) *charts.Bar {
	x := make([]string, len(tracks))
	ages := make([]opts.BarData, len(tracks))
	hits := make([]opts.BarData, len(tracks))
	for i, tr := range tracks {
		x[i] = shortTrackID(tr.TrackID)
		ages[i] = opts.BarData{Value: tr.Age}
		hits[i] = opts.BarData{Value: tr.Hits}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Track lifetimes", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("age (frames)", ages).
		AddSeries("hits", hits)
	return bar
}

// shortTrackID trims the uuid tail so axis labels stay readable.
func shortTrackID(trackID string) string {
	if len(trackID) <= 12 {
		return trackID
	}
	return trackID[:12]
}
