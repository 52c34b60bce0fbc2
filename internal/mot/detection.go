package mot

// Detection is one detector output for a frame: a bounding box, the
// detector confidence, and optionally an appearance embedding. A nil
// Feature is allowed; such detections can only match through the IoU
// stage.
type Detection struct {
	Box        BoundingBox
	Confidence float64
	Feature    []float64
}

// Measurement returns the detection in measurement space (x, y, a, h)
// for state estimation and gating.
func (d Detection) Measurement() []float64 {
	return d.Box.ToXYAH()
}
