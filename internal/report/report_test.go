package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perimeter-labs/trackmatch/internal/monitoring"
	"github.com/perimeter-labs/trackmatch/internal/mot"
	"github.com/perimeter-labs/trackmatch/internal/trackstore"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *trackstore.DB {
	t.Helper()

	db, err := trackstore.Open(filepath.Join(t.TempDir(), "report_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.MigrateUp())
	return db
}

// seedRun populates a run with two tracks moving through a handful of
// frames, enough for every chart to have data.
func seedRun(t *testing.T, db *trackstore.DB, runID string) {
	t.Helper()

	require.NoError(t, db.InsertRun(&trackstore.Run{
		RunID:            runID,
		Scenario:         "crossing",
		Seed:             42,
		StartedUnixNanos: 1_700_000_000_000_000_000,
	}))

	tracks := []*mot.Track{
		{TrackID: "trk_aaaaaaaa-0000", State: mot.TrackConfirmed, Hits: 5, Age: 6, FirstUnixNanos: 1, LastUnixNanos: 6},
		{TrackID: "trk_bbbbbbbb-0000", State: mot.TrackConfirmed, Hits: 4, Age: 6, FirstUnixNanos: 2, LastUnixNanos: 6},
	}
	for _, track := range tracks {
		require.NoError(t, db.UpsertTrack(runID, track))
	}

	for frame := 0; frame < 6; frame++ {
		ts := int64(1_700_000_000_000_000_000 + frame)
		stats := mot.FrameStats{
			Matches:         2,
			ActiveTracks:    2,
			ConfirmedTracks: 2,
		}
		require.NoError(t, db.InsertFrameStats(runID, frame, ts, 2, stats))

		for i, track := range tracks {
			require.NoError(t, db.InsertObservation(&trackstore.Observation{
				TrackID:     track.TrackID,
				Frame:       frame,
				TSUnixNanos: ts,
				X:           float64(100 + frame*10 + i*300),
				Y:           float64(200 + i*100),
				Width:       50,
				Height:      100,
				VelocityX:   10,
				VelocityY:   0,
			}))
		}
	}
}

func TestWriteRunReport(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	seedRun(t, db, "run_report")

	outPath := filepath.Join(t.TempDir(), "out", "report.html")
	require.NoError(t, WriteRunReport(db, "run_report", outPath))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	html := string(data)
	assert.Contains(t, html, "Association per frame")
	assert.Contains(t, html, "Track population")
	assert.Contains(t, html, "Track lifetimes")
	assert.Contains(t, html, "run_report")
}

func TestWriteRunReport_EmptyRun(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	require.NoError(t, db.InsertRun(&trackstore.Run{
		RunID:            "run_empty",
		Scenario:         "idle",
		StartedUnixNanos: 1,
	}))

	outPath := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, WriteRunReport(db, "run_empty", outPath))

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestWriteRunReport_MissingRun(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)

	err := WriteRunReport(db, "run_nope", filepath.Join(t.TempDir(), "report.html"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestWriteTrailPlot(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	seedRun(t, db, "run_trails")

	outPath := filepath.Join(t.TempDir(), "plots", "trails.png")
	require.NoError(t, WriteTrailPlot(db, "run_trails", outPath, 1920, 1080))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.True(t, len(data) > 8, "plot file too small: %d bytes", len(data))
	assert.True(t, bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}), "expected PNG header")
}

func TestWriteTrailPlot_MissingRun(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)

	err := WriteTrailPlot(db, "run_nope", filepath.Join(t.TempDir(), "trails.png"), 1920, 1080)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestWriteTrailPlot_EmptyRun(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	require.NoError(t, db.InsertRun(&trackstore.Run{
		RunID:            "run_blank",
		Scenario:         "idle",
		StartedUnixNanos: 1,
	}))

	outPath := filepath.Join(t.TempDir(), "trails.png")
	require.NoError(t, WriteTrailPlot(db, "run_blank", outPath, 1920, 1080))

	_, err := os.Stat(outPath)
	require.NoError(t, err)
}

func TestGroupByTrack(t *testing.T) {
	t.Parallel()

	observations := []*trackstore.Observation{
		{TrackID: "trk_a", Frame: 0},
		{TrackID: "trk_a", Frame: 1},
		{TrackID: "trk_b", Frame: 0},
		{TrackID: "trk_c", Frame: 2},
		{TrackID: "trk_c", Frame: 3},
		{TrackID: "trk_c", Frame: 4},
	}

	trails := groupByTrack(observations)
	require.Len(t, trails, 3)
	assert.Equal(t, "trk_a", trails[0].trackID)
	assert.Len(t, trails[0].observations, 2)
	assert.Equal(t, "trk_b", trails[1].trackID)
	assert.Len(t, trails[1].observations, 1)
	assert.Equal(t, "trk_c", trails[2].trackID)
	assert.Len(t, trails[2].observations, 3)
}

func TestGenerateColors(t *testing.T) {
	t.Parallel()

	assert.Nil(t, generateColors(0))

	colors := generateColors(8)
	require.Len(t, colors, 8)
	seen := make(map[string]bool)
	for _, c := range colors {
		r, g, b, _ := c.RGBA()
		key := fmt.Sprintf("%d-%d-%d", r, g, b)
		assert.False(t, seen[key], "palette repeated a color")
		seen[key] = true
	}
}

func TestShortTrackID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "trk_12345678", shortTrackID("trk_12345678-abcd-efgh"))
	assert.Equal(t, "trk_short", shortTrackID("trk_short"))
}
