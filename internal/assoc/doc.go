// Package assoc owns frame-to-frame data association: deciding which of
// the current frame's detections belong to which already-tracked objects.
//
// Responsibilities:
//   - Build clamped cost matrices from caller-supplied distance metrics
//     over index subsets of the full track and detection lists.
//   - Run minimum-cost matching over one matrix and translate the solver
//     answer back to absolute indices, vetoing pairs above max distance.
//   - Run the matching cascade that prefers recently-updated tracks by
//     matching one staleness level at a time.
//   - Gate cost matrix entries that a feasibility oracle rules out.
//
// The package holds no track state and applies no lifecycle policy; it
// works purely on indices and costs. The assignment solver, the distance
// metric, and the feasibility oracle are consumed through single-method
// contracts so callers choose the implementations.
//
// Dependency rule: depends on gonum/mat only; no imports from tracking,
// storage, or reporting layers.
package assoc
