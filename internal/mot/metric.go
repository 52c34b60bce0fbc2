package mot

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/perimeter-labs/trackmatch/internal/assoc"
)

// NearestNeighborMetric keeps a budget-trimmed gallery of appearance
// features per track and prices detections by their smallest cosine
// distance to any sample in the gallery.
type NearestNeighborMetric struct {
	// MatchingThreshold is the largest gallery distance still considered
	// the same object; the tracker passes it to matching as max distance.
	MatchingThreshold float64

	budget  int
	samples map[string][][]float64
}

// NewNearestNeighborMetric builds an empty metric. budget caps the
// samples kept per track, newest first; zero or negative means
// unbounded.
func NewNearestNeighborMetric(matchingThreshold float64, budget int) *NearestNeighborMetric {
	return &NearestNeighborMetric{
		MatchingThreshold: matchingThreshold,
		budget:            budget,
		samples:           make(map[string][][]float64),
	}
}

// Fit folds new samples into the galleries (features[i] belongs to
// targets[i]) and drops every gallery whose track is no longer active.
func (m *NearestNeighborMetric) Fit(features [][]float64, targets []string, active []string) {
	for i, target := range targets {
		m.samples[target] = append(m.samples[target], features[i])
		if m.budget > 0 && len(m.samples[target]) > m.budget {
			m.samples[target] = m.samples[target][len(m.samples[target])-m.budget:]
		}
	}
	keep := make(map[string]bool, len(active))
	for _, id := range active {
		keep[id] = true
	}
	for id := range m.samples {
		if !keep[id] {
			delete(m.samples, id)
		}
	}
}

// SampleCount reports the gallery size for one track.
func (m *NearestNeighborMetric) SampleCount(target string) int {
	return len(m.samples[target])
}

// Distance prices each feature against each target's gallery: rows
// follow targets, columns follow features. Nil features, and targets
// with no banked samples yet, are priced at the maximum cosine distance
// of 1 so later matching stages can still claim them.
func (m *NearestNeighborMetric) Distance(features [][]float64, targets []string) (*mat.Dense, error) {
	costs := mat.NewDense(len(targets), len(features), nil)
	for i, target := range targets {
		gallery := m.samples[target]
		if len(gallery) == 0 {
			for j := range features {
				costs.Set(i, j, 1)
			}
			continue
		}
		distances, err := nnCosineDistance(gallery, features)
		if err != nil {
			return nil, fmt.Errorf("track %s: %w", target, err)
		}
		costs.SetRow(i, distances)
	}
	return costs, nil
}

// CostMetric adapts the gallery distance to the association metric
// contract.
func (m *NearestNeighborMetric) CostMetric() assoc.Metric[*Track, Detection] {
	return func(tracks []*Track, detections []Detection, trackIndices, detectionIndices []int) (*mat.Dense, error) {
		features := make([][]float64, len(detectionIndices))
		for j, di := range detectionIndices {
			features[j] = detections[di].Feature
		}
		targets := make([]string, len(trackIndices))
		for i, ti := range trackIndices {
			targets[i] = tracks[ti].TrackID
		}
		return m.Distance(features, targets)
	}
}

// nnCosineDistance returns, per query, the smallest cosine distance to
// any gallery vector. Gallery and queries share one feature dimension;
// nil or zero queries price at 1.
func nnCosineDistance(gallery, queries [][]float64) ([]float64, error) {
	dim := len(gallery[0])
	g := mat.NewDense(len(gallery), dim, nil)
	for i, v := range gallery {
		if len(v) != dim {
			return nil, fmt.Errorf("gallery feature has dim %d, want %d", len(v), dim)
		}
		g.SetRow(i, unitVector(v))
	}

	q := mat.NewDense(len(queries), dim, nil)
	for j, v := range queries {
		if v == nil {
			continue // zero row, distance 1
		}
		if len(v) != dim {
			return nil, fmt.Errorf("query feature has dim %d, want %d", len(v), dim)
		}
		q.SetRow(j, unitVector(v))
	}

	var sim mat.Dense
	sim.Mul(g, q.T())

	out := make([]float64, len(queries))
	for j := range queries {
		best := math.Inf(-1)
		for i := range gallery {
			if s := sim.At(i, j); s > best {
				best = s
			}
		}
		d := 1 - best
		if d < 0 {
			d = 0
		}
		out[j] = d
	}
	return out, nil
}

// unitVector returns a unit-norm copy; zero vectors stay zero.
func unitVector(v []float64) []float64 {
	norm := floats.Norm(v, 2)
	out := make([]float64, len(v))
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// IoUCost is the association metric for the IoU matching stage: cost is
// 1 − IoU between each track's current box estimate and each detection.
// Tracks stale for more than one frame get InfCost rows; after coasting,
// box overlap is no longer a reliable signal.
func IoUCost(tracks []*Track, detections []Detection, trackIndices, detectionIndices []int) (*mat.Dense, error) {
	costs := mat.NewDense(len(trackIndices), len(detectionIndices), nil)
	for i, ti := range trackIndices {
		track := tracks[ti]
		if track.TimeSinceUpdate() > 1 {
			for j := range detectionIndices {
				costs.Set(i, j, assoc.InfCost)
			}
			continue
		}
		box := track.TLWH()
		for j, di := range detectionIndices {
			costs.Set(i, j, 1-IoU(box, detections[di].Box))
		}
	}
	return costs, nil
}
