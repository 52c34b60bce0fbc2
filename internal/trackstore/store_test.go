package trackstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perimeter-labs/trackmatch/internal/monitoring"
	"github.com/perimeter-labs/trackmatch/internal/mot"
)

func TestMain(m *testing.M) {
	// Every test opens a fresh DB and migrates it; mute the chatter.
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.MigrateUp())
	return db
}

func testRun(runID string, startedNanos int64) *Run {
	return &Run{
		RunID:            runID,
		Scenario:         "crossing",
		Seed:             42,
		StartedUnixNanos: startedNanos,
	}
}

func TestOpenAndMigrate(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateUp(), "a second up is a no-op")

	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
}

func TestRunRoundTrip(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)

	run := testRun("run_1", 1000)
	run.Notes = "two objects crossing"
	require.NoError(t, db.InsertRun(run))

	got, err := db.GetRun("run_1")
	require.NoError(t, err)
	assert.Equal(t, "run_1", got.RunID)
	assert.Equal(t, "crossing", got.Scenario)
	assert.Equal(t, int64(42), got.Seed)
	assert.Equal(t, int64(1000), got.StartedUnixNanos)
	assert.Equal(t, int64(0), got.FinishedUnixNanos, "open run has no finish time")
	assert.Equal(t, "two objects crossing", got.Notes)

	require.NoError(t, db.FinishRun("run_1", 5000, 200))
	got, err = db.GetRun("run_1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got.FinishedUnixNanos)
	assert.Equal(t, 200, got.FrameCount)

	_, err = db.GetRun("run_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	err = db.FinishRun("run_missing", 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	require.NoError(t, db.InsertRun(testRun("run_a", 30)))
	require.NoError(t, db.InsertRun(testRun("run_b", 10)))
	require.NoError(t, db.InsertRun(testRun("run_c", 20)))

	runs, err := db.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run_a", runs[0].RunID, "newest first")
	assert.Equal(t, "run_c", runs[1].RunID)
	assert.Equal(t, "run_b", runs[2].RunID)

	runs, err = db.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestUpsertTrack(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	require.NoError(t, db.InsertRun(testRun("run_1", 1000)))

	track := &mot.Track{
		TrackID:        "trk_1",
		State:          mot.TrackTentative,
		Hits:           1,
		Age:            1,
		FirstUnixNanos: 1000,
		LastUnixNanos:  1000,
	}
	require.NoError(t, db.UpsertTrack("run_1", track))

	track.State = mot.TrackConfirmed
	track.Hits = 3
	track.Age = 3
	track.LastUnixNanos = 3000
	require.NoError(t, db.UpsertTrack("run_1", track))

	rows, err := db.ListTracks("run_1")
	require.NoError(t, err)
	require.Len(t, rows, 1, "repeat upserts keep a single row")
	assert.Equal(t, "trk_1", rows[0].TrackID)
	assert.Equal(t, string(mot.TrackConfirmed), rows[0].State)
	assert.Equal(t, 3, rows[0].Hits)
	assert.Equal(t, int64(1000), rows[0].FirstUnixNanos)
	assert.Equal(t, int64(3000), rows[0].LastUnixNanos)

	later := &mot.Track{TrackID: "trk_2", State: mot.TrackTentative, Hits: 1, Age: 1, FirstUnixNanos: 2000, LastUnixNanos: 2000}
	require.NoError(t, db.UpsertTrack("run_1", later))

	rows, err = db.ListTracks("run_1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "trk_1", rows[0].TrackID, "birth order")
	assert.Equal(t, "trk_2", rows[1].TrackID)
}

func TestObservations(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	require.NoError(t, db.InsertRun(testRun("run_1", 1000)))
	require.NoError(t, db.UpsertTrack("run_1", &mot.Track{TrackID: "trk_1", State: mot.TrackConfirmed, Hits: 3, Age: 3, FirstUnixNanos: 1000, LastUnixNanos: 3000}))

	for _, frame := range []int{3, 1, 2} {
		require.NoError(t, db.InsertObservation(&Observation{
			TrackID:     "trk_1",
			Frame:       frame,
			TSUnixNanos: int64(frame) * 1000,
			X:           float64(frame) * 10,
			Y:           50,
			Width:       50,
			Height:      100,
			VelocityX:   5,
		}))
	}

	obs, err := db.ListObservations("trk_1", 0)
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.Equal(t, 1, obs[0].Frame, "frame order")
	assert.Equal(t, 2, obs[1].Frame)
	assert.Equal(t, 3, obs[2].Frame)
	assert.Equal(t, 20.0, obs[1].X)
	assert.Equal(t, 5.0, obs[0].VelocityX)

	// Re-inserting the same frame replaces the earlier row.
	require.NoError(t, db.InsertObservation(&Observation{TrackID: "trk_1", Frame: 2, TSUnixNanos: 2000, X: 99, Y: 50, Width: 50, Height: 100}))
	obs, err = db.ListObservations("trk_1", 0)
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.Equal(t, 99.0, obs[1].X)

	// A second run's observations stay out of the first run's listing.
	require.NoError(t, db.InsertRun(testRun("run_2", 2000)))
	require.NoError(t, db.UpsertTrack("run_2", &mot.Track{TrackID: "trk_other", State: mot.TrackTentative, Hits: 1, Age: 1, FirstUnixNanos: 2000, LastUnixNanos: 2000}))
	require.NoError(t, db.InsertObservation(&Observation{TrackID: "trk_other", Frame: 1, TSUnixNanos: 2000, X: 1, Y: 1, Width: 10, Height: 10}))

	all, err := db.ListRunObservations("run_1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, o := range all {
		assert.Equal(t, "trk_1", o.TrackID)
	}
}

func TestFrameStats(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	require.NoError(t, db.InsertRun(testRun("run_1", 1000)))

	stats := mot.FrameStats{
		Matches:             2,
		UnmatchedTracks:     1,
		UnmatchedDetections: 1,
		ActiveTracks:        3,
		ConfirmedTracks:     2,
		TracksCreated:       1,
		TracksDeleted:       0,
	}
	require.NoError(t, db.InsertFrameStats("run_1", 2, 2000, 3, stats))
	require.NoError(t, db.InsertFrameStats("run_1", 1, 1000, 2, mot.FrameStats{Matches: 2, ActiveTracks: 2}))

	frames, err := db.ListFrameStats("run_1")
	require.NoError(t, err)
	require.Len(t, frames, 2)

	assert.Equal(t, 1, frames[0].Frame, "frame order")
	assert.Equal(t, 2, frames[0].Matches)

	assert.Equal(t, 2, frames[1].Frame)
	assert.Equal(t, 3, frames[1].Detections)
	assert.Equal(t, 2, frames[1].Matches)
	assert.Equal(t, 1, frames[1].UnmatchedTracks)
	assert.Equal(t, 1, frames[1].UnmatchedDetections)
	assert.Equal(t, 3, frames[1].ActiveTracks)
	assert.Equal(t, 2, frames[1].ConfirmedTracks)
	assert.Equal(t, 1, frames[1].TracksCreated)
}

func TestObservationFromTrack(t *testing.T) {
	t.Parallel()

	tracker := mot.NewTracker(mot.TrackerConfig{
		MaxCosineDistance: 0.2,
		MaxIoUDistance:    0.7,
		NNBudget:          10,
		MaxAge:            5,
		HitsToConfirm:     1,
		CascadeDepth:      5,
	})
	tracker.Predict()
	_, err := tracker.Update([]mot.Detection{{
		Box:        mot.BoundingBox{X: 100, Y: 200, Width: 50, Height: 100},
		Confidence: 0.9,
	}}, time.Unix(1, 0))
	require.NoError(t, err)

	snaps := tracker.GetActiveTracks()
	require.Len(t, snaps, 1)

	obs := ObservationFromTrack(snaps[0], 1, time.Unix(1, 0).UnixNano())
	assert.Equal(t, snaps[0].TrackID, obs.TrackID)
	assert.Equal(t, 1, obs.Frame)
	assert.InDelta(t, 100.0, obs.X, 1e-6)
	assert.InDelta(t, 200.0, obs.Y, 1e-6)
	assert.InDelta(t, 50.0, obs.Width, 1e-6)
	assert.InDelta(t, 100.0, obs.Height, 1e-6)
	assert.InDelta(t, 0.0, obs.VelocityX, 1e-6, "a freshly initiated track has zero velocity")
}
