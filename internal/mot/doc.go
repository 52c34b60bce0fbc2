// Package mot owns multi-object track lifecycle on top of the assoc
// matching core.
//
// Responsibilities:
//   - Detection and bounding-box geometry (tlwh boxes, xyah measurements,
//     IoU).
//   - Track state machine: tentative until enough consecutive hits,
//     confirmed until too many missed frames, then deleted.
//   - Appearance modelling: per-track feature galleries with a nearest
//     neighbor cosine metric, budget-trimmed.
//   - The Tracker frame loop: predict, cascade-match confirmed tracks on
//     appearance, IoU-match the rest, update, spawn and reap tracks.
//
// Dependency rule: depends on assoc, kalman, hungarian and config; no
// imports from storage or reporting layers.
package mot
