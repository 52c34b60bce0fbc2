package mot

// BoundingBox is an axis-aligned box in image coordinates: top-left
// corner plus size, in pixels.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ToXYAH converts the box to measurement space: center x, center y,
// aspect ratio (width/height) and height.
func (b BoundingBox) ToXYAH() []float64 {
	return []float64{
		b.X + b.Width/2,
		b.Y + b.Height/2,
		b.Width / b.Height,
		b.Height,
	}
}

// BoxFromXYAH converts a measurement-space vector back to a tlwh box.
func BoxFromXYAH(xyah []float64) BoundingBox {
	height := xyah[3]
	width := xyah[2] * height
	return BoundingBox{
		X:      xyah[0] - width/2,
		Y:      xyah[1] - height/2,
		Width:  width,
		Height: height,
	}
}

// Area returns the box area; degenerate boxes report zero.
func (b BoundingBox) Area() float64 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// IoU returns the intersection-over-union of two boxes in [0, 1].
func IoU(a, b BoundingBox) float64 {
	left := max(a.X, b.X)
	top := max(a.Y, b.Y)
	right := min(a.X+a.Width, b.X+b.Width)
	bottom := min(a.Y+a.Height, b.Y+b.Height)

	if right <= left || bottom <= top {
		return 0
	}
	intersection := (right - left) * (bottom - top)
	union := a.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}
