package mot

import (
	"gonum.org/v1/gonum/mat"

	"github.com/perimeter-labs/trackmatch/internal/kalman"
)

// TrackState represents the lifecycle state of a track.
type TrackState string

const (
	TrackTentative TrackState = "tentative" // New track, needs confirmation
	TrackConfirmed TrackState = "confirmed" // Stable track with sufficient history
	TrackDeleted   TrackState = "deleted"   // Track marked for removal
)

// Track represents a single tracked object. The motion state lives in
// the filter's mean and covariance, owned here and exposed read-only via
// MotionState.
type Track struct {
	// Identity
	TrackID string
	State   TrackState

	// Lifecycle counters
	Hits int // Successful associations since birth
	Age  int // Frames since birth

	// Timestamps
	FirstUnixNanos int64
	LastUnixNanos  int64

	timeSinceUpdate int

	// Kalman state: (x, y, a, h, vx, vy, va, vh)
	mean *mat.VecDense
	cov  *mat.Dense

	// Appearance samples waiting to be folded into the metric gallery.
	features [][]float64

	hitsToConfirm int
	maxAge        int
}

func newTrack(kf *kalman.Filter, detection Detection, trackID string, hitsToConfirm, maxAge int, nowNanos int64) *Track {
	mean, cov := kf.Initiate(detection.Measurement())
	track := &Track{
		TrackID:        trackID,
		State:          TrackTentative,
		Hits:           1,
		Age:            1,
		FirstUnixNanos: nowNanos,
		LastUnixNanos:  nowNanos,
		mean:           mean,
		cov:            cov,
		hitsToConfirm:  hitsToConfirm,
		maxAge:         maxAge,
	}
	if detection.Feature != nil {
		track.features = append(track.features, detection.Feature)
	}
	return track
}

// TimeSinceUpdate reports frames since the last successful association;
// 1 right after a predict that followed an update.
func (t *Track) TimeSinceUpdate() int { return t.timeSinceUpdate }

// MotionState exposes the current state estimate. Callers must treat
// both values as read-only.
func (t *Track) MotionState() (*mat.VecDense, *mat.Dense) { return t.mean, t.cov }

// TLWH returns the track's current box estimate.
func (t *Track) TLWH() BoundingBox {
	return BoxFromXYAH([]float64{t.mean.AtVec(0), t.mean.AtVec(1), t.mean.AtVec(2), t.mean.AtVec(3)})
}

// Velocity returns the estimated center velocity in pixels per frame.
func (t *Track) Velocity() (vx, vy float64) {
	return t.mean.AtVec(4), t.mean.AtVec(5)
}

// Predict propagates the state one frame and ages the track.
func (t *Track) Predict(kf *kalman.Filter) {
	kf.Predict(t.mean, t.cov)
	t.Age++
	t.timeSinceUpdate++
}

// Update folds a matched detection into the state, banks its appearance
// feature, and promotes the track once it has enough hits.
func (t *Track) Update(kf *kalman.Filter, detection Detection, nowNanos int64) error {
	if err := kf.Update(t.mean, t.cov, detection.Measurement()); err != nil {
		return err
	}
	if detection.Feature != nil {
		t.features = append(t.features, detection.Feature)
	}
	t.Hits++
	t.timeSinceUpdate = 0
	t.LastUnixNanos = nowNanos
	if t.State == TrackTentative && t.Hits >= t.hitsToConfirm {
		t.State = TrackConfirmed
	}
	return nil
}

// MarkMissed records that no detection matched this frame. Tentative
// tracks die on their first miss; confirmed tracks coast until they have
// been stale for more than maxAge frames.
func (t *Track) MarkMissed() {
	if t.State == TrackTentative {
		t.State = TrackDeleted
		return
	}
	if t.timeSinceUpdate > t.maxAge {
		t.State = TrackDeleted
	}
}

// IsTentative reports whether the track is still unconfirmed.
func (t *Track) IsTentative() bool { return t.State == TrackTentative }

// IsConfirmed reports whether the track has been confirmed.
func (t *Track) IsConfirmed() bool { return t.State == TrackConfirmed }

// IsDeleted reports whether the track is marked for removal.
func (t *Track) IsDeleted() bool { return t.State == TrackDeleted }

// snapshot deep-copies the track so accessors can hand it out without
// racing the tracker's own mutation.
func (t *Track) snapshot() *Track {
	copied := *t
	copied.mean = mat.VecDenseCopyOf(t.mean)
	copied.cov = mat.DenseCopyOf(t.cov)
	if len(t.features) > 0 {
		copied.features = make([][]float64, len(t.features))
		copy(copied.features, t.features)
	}
	return &copied
}
