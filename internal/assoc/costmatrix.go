package assoc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// BuildCostMatrix asks the metric for the cost matrix over the given
// index subsets and prepares it for a solver: every entry is clamped to
// maxDistance plus a small slack so infeasible pairs stay representable
// without unbounded values, and the matrix is rejected if its shape does
// not match the subsets or any entry is not finite.
//
// When either subset is empty no matrix is built and (nil, nil) is
// returned; the matching entrypoints answer empty inputs before calling
// here.
func BuildCostMatrix[T, D any](metric Metric[T, D], maxDistance float64, tracks []T, detections []D, trackIndices, detectionIndices []int) (*mat.Dense, error) {
	if len(trackIndices) == 0 || len(detectionIndices) == 0 {
		return nil, nil
	}

	costs, err := metric(tracks, detections, trackIndices, detectionIndices)
	if err != nil {
		return nil, fmt.Errorf("distance metric: %w", err)
	}
	if costs == nil {
		return nil, fmt.Errorf("distance metric returned no matrix")
	}
	rows, cols := costs.Dims()
	if rows != len(trackIndices) || cols != len(detectionIndices) {
		return nil, fmt.Errorf("cost matrix is %dx%d, want %dx%d", rows, cols, len(trackIndices), len(detectionIndices))
	}

	limit := maxDistance + clampSlack
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := costs.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("cost matrix entry (%d,%d) is not finite", i, j)
			}
			if v > limit {
				costs.Set(i, j, limit)
			}
		}
	}
	return costs, nil
}

// GateCostMatrix overwrites entries of costs whose track-to-measurement
// gating distance exceeds the 95th-percentile chi-squared threshold,
// making those pairs unpayable for the solver. The subsets must be the
// ones the matrix was built from: row i belongs to trackIndices[i],
// column j to detectionIndices[j].
//
// gatedCost is the value written into gated entries; pass InfCost unless
// a different sentinel is needed. With onlyPosition only the two center
// coordinates are compared (2 degrees of freedom instead of 4).
//
// The matrix is mutated in place and returned for convenience.
func GateCostMatrix[T StateReader, D Measurable](oracle FeasibilityOracle, costs *mat.Dense, tracks []T, detections []D, trackIndices, detectionIndices []int, gatedCost float64, onlyPosition bool) (*mat.Dense, error) {
	dof := 4
	if onlyPosition {
		dof = 2
	}
	threshold := chi2Inv95[dof]

	rows, cols := costs.Dims()
	if rows != len(trackIndices) || cols != len(detectionIndices) {
		return nil, fmt.Errorf("cost matrix is %dx%d, want %dx%d", rows, cols, len(trackIndices), len(detectionIndices))
	}

	// One measurement batch, reused for every track row.
	measurements := mat.NewDense(cols, 4, nil)
	for j, di := range detectionIndices {
		z := detections[di].Measurement()
		if len(z) != 4 {
			return nil, fmt.Errorf("measurement for detection %d has %d dims, want 4", di, len(z))
		}
		measurements.SetRow(j, z)
	}

	for i, ti := range trackIndices {
		mean, cov := tracks[ti].MotionState()
		distances, err := oracle.GatingDistance(mean, cov, measurements, onlyPosition)
		if err != nil {
			return nil, fmt.Errorf("gating distance for track %d: %w", ti, err)
		}
		if len(distances) != cols {
			return nil, fmt.Errorf("oracle returned %d distances for %d measurements", len(distances), cols)
		}
		for j, d := range distances {
			if d > threshold {
				costs.Set(i, j, gatedCost)
			}
		}
	}
	return costs, nil
}
