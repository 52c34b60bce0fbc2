package assoc

import "fmt"

// MinCostMatching matches the indexed tracks against the indexed
// detections in one solver run. A nil subset means all indices of the
// corresponding list, ascending.
//
// Empty subsets on either side short-circuit to a trivially unmatched
// Result without building a matrix or invoking the solver. Solver answers
// are checked before use: a column out of range or assigned to two rows
// is an internal-consistency error. Pairs the solver picked whose clamped
// cost still exceeds maxDistance are vetoed, leaving both sides
// unmatched.
func MinCostMatching[T, D any](solver Solver, metric Metric[T, D], maxDistance float64, tracks []T, detections []D, trackIndices, detectionIndices []int) (Result, error) {
	if trackIndices == nil {
		trackIndices = allIndices(len(tracks))
	}
	if detectionIndices == nil {
		detectionIndices = allIndices(len(detections))
	}
	if len(trackIndices) == 0 || len(detectionIndices) == 0 {
		return Result{
			UnmatchedTracks:     append([]int(nil), trackIndices...),
			UnmatchedDetections: append([]int(nil), detectionIndices...),
		}, nil
	}

	costs, err := BuildCostMatrix(metric, maxDistance, tracks, detections, trackIndices, detectionIndices)
	if err != nil {
		return Result{}, fmt.Errorf("build cost matrix: %w", err)
	}

	rows := len(trackIndices)
	cols := len(detectionIndices)
	flat := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			flat[i*cols+j] = costs.At(i, j)
		}
	}

	assignment := solver.Solve(flat, rows, cols)
	if len(assignment) != rows {
		return Result{}, fmt.Errorf("solver returned %d assignments for %d rows", len(assignment), rows)
	}
	taken := make([]bool, cols)
	for row, col := range assignment {
		if col < -1 || col >= cols {
			return Result{}, fmt.Errorf("solver assigned row %d to out-of-range column %d", row, col)
		}
		if col >= 0 {
			if taken[col] {
				return Result{}, fmt.Errorf("solver assigned column %d to more than one row", col)
			}
			taken[col] = true
		}
	}

	var result Result
	for j := range taken {
		taken[j] = false
	}
	for row, col := range assignment {
		if col < 0 {
			result.UnmatchedTracks = append(result.UnmatchedTracks, trackIndices[row])
			continue
		}
		// The solver may settle on a pair that is still too expensive
		// when nothing cheaper exists; both sides stay unmatched then.
		if costs.At(row, col) > maxDistance {
			result.UnmatchedTracks = append(result.UnmatchedTracks, trackIndices[row])
			continue
		}
		taken[col] = true
		result.Matches = append(result.Matches, Match{Track: trackIndices[row], Detection: detectionIndices[col]})
	}
	for j, used := range taken {
		if !used {
			result.UnmatchedDetections = append(result.UnmatchedDetections, detectionIndices[j])
		}
	}
	return result, nil
}

// MatchingCascade matches detections to tracks one staleness level at a
// time: level 0 offers the full detection pool to tracks one frame stale
// (TimeSinceUpdate 1), level 1 offers the leftovers to tracks two frames
// stale, and so on up to cascadeDepth levels. A detection contested by
// tracks of different staleness therefore goes to the fresher track.
//
// Nil subsets mean all indices. Levels with no eligible tracks are
// skipped; the cascade stops early once the detection pool is exhausted.
// Depth beyond the maximum staleness present changes nothing.
func MatchingCascade[T Staleness, D any](solver Solver, metric Metric[T, D], maxDistance float64, cascadeDepth int, tracks []T, detections []D, trackIndices, detectionIndices []int) (Result, error) {
	if trackIndices == nil {
		trackIndices = allIndices(len(tracks))
	}
	if detectionIndices == nil {
		detectionIndices = allIndices(len(detections))
	}

	pool := append([]int(nil), detectionIndices...)
	matched := make(map[int]bool, len(trackIndices))
	var matches []Match

	for level := 0; level < cascadeDepth; level++ {
		if len(pool) == 0 {
			break
		}
		var levelTracks []int
		for _, k := range trackIndices {
			if matched[k] {
				continue
			}
			if tracks[k].TimeSinceUpdate() == level+1 {
				levelTracks = append(levelTracks, k)
			}
		}
		if len(levelTracks) == 0 {
			continue
		}

		levelResult, err := MinCostMatching(solver, metric, maxDistance, tracks, detections, levelTracks, pool)
		if err != nil {
			return Result{}, fmt.Errorf("cascade level %d: %w", level, err)
		}
		for _, m := range levelResult.Matches {
			matched[m.Track] = true
		}
		matches = append(matches, levelResult.Matches...)
		pool = levelResult.UnmatchedDetections
	}

	result := Result{Matches: matches, UnmatchedDetections: pool}
	for _, k := range trackIndices {
		if !matched[k] {
			result.UnmatchedTracks = append(result.UnmatchedTracks, k)
		}
	}
	return result, nil
}
