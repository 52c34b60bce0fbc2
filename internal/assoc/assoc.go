package assoc

import "gonum.org/v1/gonum/mat"

// InfCost marks an association as impossible while staying an ordinary
// finite cost. Gated entries are set to it by default; after clamping it
// always loses the max-distance veto.
const InfCost = 1e5

// clampSlack keeps clamped entries strictly above max distance so the
// post-solve veto can tell them apart from real in-range costs.
const clampSlack = 1e-5

// chi2Inv95 holds the 0.95 quantile of the chi-squared distribution keyed
// by degrees of freedom. Gating needs exactly two entries: 2 when only
// the position dimensions are compared, 4 for the full measurement.
var chi2Inv95 = map[int]float64{
	2: 5.9915,
	4: 9.4877,
}

// Metric computes the dense association cost between the selected tracks
// and detections. Row i of the result corresponds to trackIndices[i],
// column j to detectionIndices[j]. Both full lists are passed so metrics
// can precompute over them; only the indexed subset may appear in the
// result.
type Metric[T, D any] func(tracks []T, detections []D, trackIndices, detectionIndices []int) (*mat.Dense, error)

// Solver assigns one column to each row of a dense row-major cost matrix,
// minimising total cost. Unassigned rows are reported as -1; zero is an
// ordinary column index. Answers are validated by this package before
// use.
type Solver interface {
	Solve(costs []float64, rows, cols int) []int
}

// FeasibilityOracle reports how far a track's state estimate sits from
// each measurement in a batch, in squared gating distance. Row j of
// measurements is one measurement vector.
type FeasibilityOracle interface {
	GatingDistance(mean *mat.VecDense, cov *mat.Dense, measurements *mat.Dense, onlyPosition bool) ([]float64, error)
}

// StateReader exposes a track's current state estimate. The returned mean
// and covariance stay owned by the track; gating reads them and never
// writes.
type StateReader interface {
	MotionState() (mean *mat.VecDense, cov *mat.Dense)
}

// Staleness reports the number of frames since a track last matched a
// detection. Freshly updated tracks report 1 after the following predict
// step; the cascade matches them first.
type Staleness interface {
	TimeSinceUpdate() int
}

// Measurable converts a detection into its measurement-space vector
// (center x, center y, aspect ratio, height).
type Measurable interface {
	Measurement() []float64
}

// Match pairs a track index with a detection index, both absolute into
// the full lists handed to the matching entrypoints.
type Match struct {
	Track     int
	Detection int
}

// Result partitions the input index subsets: every track index lands in
// exactly one of Matches or UnmatchedTracks, every detection index in
// exactly one of Matches or UnmatchedDetections. Unmatched lists keep the
// input subset order.
type Result struct {
	Matches             []Match
	UnmatchedTracks     []int
	UnmatchedDetections []int
}

// allIndices materialises the nil-subset default: every index, ascending.
func allIndices(n int) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return indices
}
