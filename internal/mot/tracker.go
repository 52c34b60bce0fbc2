package mot

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/perimeter-labs/trackmatch/internal/assoc"
	"github.com/perimeter-labs/trackmatch/internal/config"
	"github.com/perimeter-labs/trackmatch/internal/hungarian"
	"github.com/perimeter-labs/trackmatch/internal/kalman"
)

// Contract wiring for the association layer.
var (
	_ assoc.Staleness   = (*Track)(nil)
	_ assoc.StateReader = (*Track)(nil)
	_ assoc.Measurable  = Detection{}
)

// TrackerConfig holds configuration parameters for the tracker.
type TrackerConfig struct {
	MaxCosineDistance float64 // Appearance distance ceiling for the cascade stage
	MaxIoUDistance    float64 // 1−IoU ceiling for the overlap stage
	NNBudget          int     // Appearance samples kept per track gallery
	GateOnlyPosition  bool    // Gate on center position only (2 dof instead of 4)
	MaxAge            int     // Frames a confirmed track may coast before deletion
	HitsToConfirm     int     // Consecutive hits needed for confirmation
	CascadeDepth      int     // Staleness levels the matching cascade walks
}

// DefaultTrackerConfig returns tracker configuration loaded from the
// canonical tuning defaults file (config/tuning.defaults.json).
// Panics if the file cannot be found; intended for tests and binaries
// that have already validated config availability.
func DefaultTrackerConfig() TrackerConfig {
	cfg := config.MustLoadDefaultConfig()
	return TrackerConfigFromTuning(cfg)
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded TuningConfig.
// Use this in production code where the TuningConfig is already loaded.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		MaxCosineDistance: cfg.GetMaxCosineDistance(),
		MaxIoUDistance:    cfg.GetMaxIoUDistance(),
		NNBudget:          cfg.GetNNBudget(),
		GateOnlyPosition:  cfg.GetGateOnlyPosition(),
		MaxAge:            cfg.GetMaxAge(),
		HitsToConfirm:     cfg.GetHitsToConfirm(),
		CascadeDepth:      cfg.GetCascadeDepth(),
	}
}

// FrameStats captures one Update call's association outcome.
type FrameStats struct {
	Matches             int `json:"matches"`
	UnmatchedTracks     int `json:"unmatched_tracks"`
	UnmatchedDetections int `json:"unmatched_detections"`
	ActiveTracks        int `json:"active_tracks"`
	ConfirmedTracks     int `json:"confirmed_tracks"`
	TracksCreated       int `json:"tracks_created"` // this frame
	TracksDeleted       int `json:"tracks_deleted"` // this frame

	// Assignments maps detection index to the matched track ID, "" when
	// the detection spawned a new track instead.
	Assignments []string `json:"-"`
}

// Tracker manages multi-object tracking with explicit lifecycle states.
// Call Predict once per frame, then Update with that frame's detections.
type Tracker struct {
	Config TrackerConfig
	Tracks []*Track

	// Cumulative counters since construction or Reset.
	TracksCreated   int
	TracksConfirmed int

	kf     *kalman.Filter
	metric *NearestNeighborMetric
	solver assoc.Solver

	mu sync.RWMutex
}

// NewTracker creates a new tracker with the specified configuration.
func NewTracker(config TrackerConfig) *Tracker {
	return &Tracker{
		Config: config,
		kf:     kalman.NewFilter(),
		metric: NewNearestNeighborMetric(config.MaxCosineDistance, config.NNBudget),
		solver: hungarian.Solver{},
	}
}

// Reset clears all tracks, galleries and counters so the tracker can be
// reused for a fresh run.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Tracks = nil
	t.TracksCreated = 0
	t.TracksConfirmed = 0
	t.metric = NewNearestNeighborMetric(t.Config.MaxCosineDistance, t.Config.NNBudget)
}

// Predict advances every track's state estimate one frame and ages it.
func (t *Tracker) Predict() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, track := range t.Tracks {
		track.Predict(t.kf)
	}
}

// Update processes a new frame of detections: associate, correct matched
// tracks, age out missed ones, spawn tracks for leftover detections and
// refresh the appearance galleries.
func (t *Tracker) Update(detections []Detection, timestamp time.Time) (FrameStats, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	nowNanos := timestamp.UnixNano()

	matches, unmatchedTracks, unmatchedDetections, err := t.match(detections)
	if err != nil {
		return FrameStats{}, fmt.Errorf("associate detections: %w", err)
	}

	stats := FrameStats{
		Matches:             len(matches),
		UnmatchedTracks:     len(unmatchedTracks),
		UnmatchedDetections: len(unmatchedDetections),
		Assignments:         make([]string, len(detections)),
	}

	for _, m := range matches {
		track := t.Tracks[m.Track]
		wasConfirmed := track.IsConfirmed()
		if err := track.Update(t.kf, detections[m.Detection], nowNanos); err != nil {
			return FrameStats{}, fmt.Errorf("update track %s: %w", track.TrackID, err)
		}
		if !wasConfirmed && track.IsConfirmed() {
			t.TracksConfirmed++
		}
		stats.Assignments[m.Detection] = track.TrackID
	}

	for _, k := range unmatchedTracks {
		t.Tracks[k].MarkMissed()
	}

	kept := make([]*Track, 0, len(t.Tracks))
	for _, track := range t.Tracks {
		if track.IsDeleted() {
			stats.TracksDeleted++
			continue
		}
		kept = append(kept, track)
	}
	t.Tracks = kept

	for _, d := range unmatchedDetections {
		t.initTrack(detections[d], nowNanos)
		stats.TracksCreated++
	}

	t.refitMetric()

	stats.ActiveTracks = len(t.Tracks)
	for _, track := range t.Tracks {
		if track.IsConfirmed() {
			stats.ConfirmedTracks++
		}
	}
	return stats, nil
}

// match splits the track pool into confirmed and unconfirmed, runs the
// appearance cascade over the confirmed tracks, then gives unconfirmed
// tracks and freshly-missed confirmed ones an IoU round on the leftover
// detections.
func (t *Tracker) match(detections []Detection) ([]assoc.Match, []int, []int, error) {
	// Subsets handed to the association layer must stay non-nil: nil
	// means "all indices" there.
	confirmed := make([]int, 0, len(t.Tracks))
	unconfirmed := make([]int, 0, len(t.Tracks))
	for k, track := range t.Tracks {
		if track.IsConfirmed() {
			confirmed = append(confirmed, k)
		} else {
			unconfirmed = append(unconfirmed, k)
		}
	}

	cascade, err := assoc.MatchingCascade(t.solver, t.gatedMetric(), t.metric.MatchingThreshold, t.Config.CascadeDepth, t.Tracks, detections, confirmed, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("appearance cascade: %w", err)
	}
	leftover := cascade.UnmatchedDetections
	if leftover == nil {
		leftover = []int{}
	}

	// A confirmed track that missed only the previous frame still has a
	// trustworthy box; it joins the unconfirmed tracks for the IoU round.
	iouCandidates := make([]int, 0, len(unconfirmed)+len(cascade.UnmatchedTracks))
	iouCandidates = append(iouCandidates, unconfirmed...)
	var stale []int
	for _, k := range cascade.UnmatchedTracks {
		if t.Tracks[k].TimeSinceUpdate() == 1 {
			iouCandidates = append(iouCandidates, k)
		} else {
			stale = append(stale, k)
		}
	}

	overlap, err := assoc.MinCostMatching(t.solver, IoUCost, t.Config.MaxIoUDistance, t.Tracks, detections, iouCandidates, leftover)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("overlap matching: %w", err)
	}

	matches := append(cascade.Matches, overlap.Matches...)
	unmatchedTracks := append(stale, overlap.UnmatchedTracks...)
	return matches, unmatchedTracks, overlap.UnmatchedDetections, nil
}

// gatedMetric prices appearance distance, then gates pairs whose state
// estimate rules the detection out.
func (t *Tracker) gatedMetric() assoc.Metric[*Track, Detection] {
	base := t.metric.CostMetric()
	return func(tracks []*Track, detections []Detection, trackIndices, detectionIndices []int) (*mat.Dense, error) {
		costs, err := base(tracks, detections, trackIndices, detectionIndices)
		if err != nil {
			return nil, err
		}
		return assoc.GateCostMatrix(t.kf, costs, tracks, detections, trackIndices, detectionIndices, assoc.InfCost, t.Config.GateOnlyPosition)
	}
}

// refitMetric drains the appearance samples banked on confirmed tracks
// into the metric and prunes galleries of tracks that no longer exist.
func (t *Tracker) refitMetric() {
	var features [][]float64
	var targets []string
	active := make([]string, 0, len(t.Tracks))
	for _, track := range t.Tracks {
		if !track.IsConfirmed() {
			continue
		}
		active = append(active, track.TrackID)
		for _, f := range track.features {
			features = append(features, f)
			targets = append(targets, track.TrackID)
		}
		track.features = nil
	}
	t.metric.Fit(features, targets, active)
}

func (t *Tracker) initTrack(detection Detection, nowNanos int64) *Track {
	trackID := fmt.Sprintf("trk_%s", uuid.NewString())
	track := newTrack(t.kf, detection, trackID, t.Config.HitsToConfirm, t.Config.MaxAge, nowNanos)
	t.Tracks = append(t.Tracks, track)
	t.TracksCreated++
	return track
}

// GetActiveTracks returns snapshots of all live tracks, safe to read
// without holding the tracker lock.
func (t *Tracker) GetActiveTracks() []*Track {
	t.mu.RLock()
	defer t.mu.RUnlock()

	active := make([]*Track, 0, len(t.Tracks))
	for _, track := range t.Tracks {
		active = append(active, track.snapshot())
	}
	return active
}

// GetConfirmedTracks returns snapshots of confirmed tracks only.
func (t *Tracker) GetConfirmedTracks() []*Track {
	t.mu.RLock()
	defer t.mu.RUnlock()

	confirmed := make([]*Track, 0, len(t.Tracks))
	for _, track := range t.Tracks {
		if track.IsConfirmed() {
			confirmed = append(confirmed, track.snapshot())
		}
	}
	return confirmed
}

// GetTrackCount returns current totals by lifecycle state.
func (t *Tracker) GetTrackCount() (total, tentative, confirmed int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, track := range t.Tracks {
		switch track.State {
		case TrackTentative:
			tentative++
		case TrackConfirmed:
			confirmed++
		}
	}
	return len(t.Tracks), tentative, confirmed
}
