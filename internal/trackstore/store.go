package trackstore

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/perimeter-labs/trackmatch/internal/mot"
)

// DB wraps the SQLite handle with run and track persistence operations.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the SQLite database at path and applies
// the session pragmas. Schema setup is left to MigrateUp.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	return &DB{sqlDB}, nil
}

// Run is one recorded tracking session.
type Run struct {
	RunID             string
	Scenario          string
	Seed              int64
	StartedUnixNanos  int64
	FinishedUnixNanos int64 // zero while the run is still open
	FrameCount        int
	Notes             string
}

// TrackRow is the persisted summary of one track.
type TrackRow struct {
	TrackID        string
	RunID          string
	State          string
	Hits           int
	Age            int
	FirstUnixNanos int64
	LastUnixNanos  int64
}

// Observation is one track's box estimate at one frame.
type Observation struct {
	TrackID     string
	Frame       int
	TSUnixNanos int64

	// Box estimate (top-left, size) in pixels
	X, Y          float64
	Width, Height float64

	// Estimated center velocity in pixels per frame
	VelocityX, VelocityY float64
}

// ObservationFromTrack captures a track's current box and velocity
// estimate as an observation row.
func ObservationFromTrack(track *mot.Track, frame int, tsUnixNanos int64) *Observation {
	box := track.TLWH()
	vx, vy := track.Velocity()
	return &Observation{
		TrackID:     track.TrackID,
		Frame:       frame,
		TSUnixNanos: tsUnixNanos,
		X:           box.X,
		Y:           box.Y,
		Width:       box.Width,
		Height:      box.Height,
		VelocityX:   vx,
		VelocityY:   vy,
	}
}

// FrameRow is the persisted association outcome of one frame.
type FrameRow struct {
	RunID               string
	Frame               int
	TSUnixNanos         int64
	Detections          int
	Matches             int
	UnmatchedTracks     int
	UnmatchedDetections int
	ActiveTracks        int
	ConfirmedTracks     int
	TracksCreated       int
	TracksDeleted       int
}

// InsertRun records a new run.
func (db *DB) InsertRun(run *Run) error {
	query := `
		INSERT INTO runs (run_id, scenario, seed, started_unix_nanos, finished_unix_nanos, frame_count, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query,
		run.RunID,
		run.Scenario,
		run.Seed,
		run.StartedUnixNanos,
		nullInt64(run.FinishedUnixNanos),
		run.FrameCount,
		nullString(run.Notes),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stamps the run's end time and final frame count.
func (db *DB) FinishRun(runID string, finishedUnixNanos int64, frameCount int) error {
	result, err := db.Exec(
		`UPDATE runs SET finished_unix_nanos = ?, frame_count = ? WHERE run_id = ?`,
		finishedUnixNanos, frameCount, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// GetRun retrieves one run by ID.
func (db *DB) GetRun(runID string) (*Run, error) {
	query := `
		SELECT run_id, scenario, seed, started_unix_nanos, finished_unix_nanos, frame_count, notes
		FROM runs
		WHERE run_id = ?
	`
	run := &Run{}
	var finished sql.NullInt64
	var notes sql.NullString
	err := db.QueryRow(query, runID).Scan(
		&run.RunID,
		&run.Scenario,
		&run.Seed,
		&run.StartedUnixNanos,
		&finished,
		&run.FrameCount,
		&notes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	if finished.Valid {
		run.FinishedUnixNanos = finished.Int64
	}
	if notes.Valid {
		run.Notes = notes.String
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT run_id, scenario, seed, started_unix_nanos, finished_unix_nanos, frame_count, notes
		FROM runs
		ORDER BY started_unix_nanos DESC
		LIMIT ?
	`
	rows, err := db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var finished sql.NullInt64
		var notes sql.NullString
		if err := rows.Scan(
			&run.RunID,
			&run.Scenario,
			&run.Seed,
			&run.StartedUnixNanos,
			&finished,
			&run.FrameCount,
			&notes,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finished.Valid {
			run.FinishedUnixNanos = finished.Int64
		}
		if notes.Valid {
			run.Notes = notes.String
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// UpsertTrack writes the track's summary row, updating in place on repeat
// writes. ON CONFLICT DO UPDATE rather than INSERT OR REPLACE so existing
// observation rows never cascade-delete.
func (db *DB) UpsertTrack(runID string, track *mot.Track) error {
	query := `
		INSERT INTO tracks (
			track_id, run_id, track_state, hits, age,
			first_unix_nanos, last_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			track_state = excluded.track_state,
			hits = excluded.hits,
			age = excluded.age,
			last_unix_nanos = excluded.last_unix_nanos
	`
	_, err := db.Exec(query,
		track.TrackID,
		runID,
		string(track.State),
		track.Hits,
		track.Age,
		track.FirstUnixNanos,
		track.LastUnixNanos,
	)
	if err != nil {
		return fmt.Errorf("upsert track: %w", err)
	}
	return nil
}

// ListTracks returns the tracks of a run in birth order.
func (db *DB) ListTracks(runID string) ([]*TrackRow, error) {
	query := `
		SELECT track_id, run_id, track_state, hits, age, first_unix_nanos, last_unix_nanos
		FROM tracks
		WHERE run_id = ?
		ORDER BY first_unix_nanos ASC, track_id ASC
	`
	rows, err := db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*TrackRow
	for rows.Next() {
		row := &TrackRow{}
		if err := rows.Scan(
			&row.TrackID,
			&row.RunID,
			&row.State,
			&row.Hits,
			&row.Age,
			&row.FirstUnixNanos,
			&row.LastUnixNanos,
		); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		tracks = append(tracks, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracks: %w", err)
	}
	return tracks, nil
}

// InsertObservation records one track observation; re-inserting the same
// track and frame overwrites the earlier row.
func (db *DB) InsertObservation(obs *Observation) error {
	query := `
		INSERT OR REPLACE INTO track_obs (
			track_id, frame, ts_unix_nanos,
			x, y, width, height,
			velocity_x, velocity_y
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query,
		obs.TrackID,
		obs.Frame,
		obs.TSUnixNanos,
		obs.X, obs.Y, obs.Width, obs.Height,
		obs.VelocityX, obs.VelocityY,
	)
	if err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

// ListObservations returns one track's observations in frame order.
func (db *DB) ListObservations(trackID string, limit int) ([]*Observation, error) {
	if limit <= 0 {
		limit = 10000
	}

	query := `
		SELECT track_id, frame, ts_unix_nanos, x, y, width, height, velocity_x, velocity_y
		FROM track_obs
		WHERE track_id = ?
		ORDER BY frame ASC
		LIMIT ?
	`
	rows, err := db.Query(query, trackID, limit)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// ListRunObservations returns every observation of a run grouped by
// track, each track's rows in frame order.
func (db *DB) ListRunObservations(runID string) ([]*Observation, error) {
	query := `
		SELECT o.track_id, o.frame, o.ts_unix_nanos,
			o.x, o.y, o.width, o.height,
			o.velocity_x, o.velocity_y
		FROM track_obs o
		JOIN tracks t ON o.track_id = t.track_id
		WHERE t.run_id = ?
		ORDER BY o.track_id ASC, o.frame ASC
	`
	rows, err := db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("query run observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

func scanObservations(rows *sql.Rows) ([]*Observation, error) {
	var observations []*Observation
	for rows.Next() {
		obs := &Observation{}
		if err := rows.Scan(
			&obs.TrackID,
			&obs.Frame,
			&obs.TSUnixNanos,
			&obs.X, &obs.Y, &obs.Width, &obs.Height,
			&obs.VelocityX, &obs.VelocityY,
		); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return observations, nil
}

// InsertFrameStats records one frame's association outcome.
func (db *DB) InsertFrameStats(runID string, frame int, tsUnixNanos int64, detections int, stats mot.FrameStats) error {
	query := `
		INSERT OR REPLACE INTO frame_stats (
			run_id, frame, ts_unix_nanos, detections,
			matches, unmatched_tracks, unmatched_detections,
			active_tracks, confirmed_tracks, tracks_created, tracks_deleted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query,
		runID,
		frame,
		tsUnixNanos,
		detections,
		stats.Matches,
		stats.UnmatchedTracks,
		stats.UnmatchedDetections,
		stats.ActiveTracks,
		stats.ConfirmedTracks,
		stats.TracksCreated,
		stats.TracksDeleted,
	)
	if err != nil {
		return fmt.Errorf("insert frame stats: %w", err)
	}
	return nil
}

// ListFrameStats returns a run's per-frame stats in frame order.
func (db *DB) ListFrameStats(runID string) ([]*FrameRow, error) {
	query := `
		SELECT run_id, frame, ts_unix_nanos, detections,
			matches, unmatched_tracks, unmatched_detections,
			active_tracks, confirmed_tracks, tracks_created, tracks_deleted
		FROM frame_stats
		WHERE run_id = ?
		ORDER BY frame ASC
	`
	rows, err := db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("query frame stats: %w", err)
	}
	defer rows.Close()

	var frames []*FrameRow
	for rows.Next() {
		row := &FrameRow{}
		if err := rows.Scan(
			&row.RunID,
			&row.Frame,
			&row.TSUnixNanos,
			&row.Detections,
			&row.Matches,
			&row.UnmatchedTracks,
			&row.UnmatchedDetections,
			&row.ActiveTracks,
			&row.ConfirmedTracks,
			&row.TracksCreated,
			&row.TracksDeleted,
		); err != nil {
			return nil, fmt.Errorf("scan frame stats: %w", err)
		}
		frames = append(frames, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frame stats: %w", err)
	}
	return frames, nil
}

// Helper functions for nullable values

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(n int64) interface{} {
	if n == 0 {
		return nil
	}
	return n
}
