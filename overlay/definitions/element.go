package definitions

// Rect is the internal rectangle representation, origin top-left.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RectFromEdges builds a Rect from the device convention {left, top, right, bottom}.
func RectFromEdges(left, top, right, bottom float64) Rect {
	return Rect{X: left, Y: top, Width: right - left, Height: bottom - top}
}

// Valid reports whether every field is finite and the area is non-zero.
func (r Rect) Valid() bool {
	return IsFinite(r.X) && IsFinite(r.Y) && IsPositive(r.Width) && IsPositive(r.Height)
}

func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Contains uses half-open edges so adjacent rectangles never both match.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

// SourceElement is one UI element detected on the mirrored device or browser.
type SourceElement struct {
	ID     string `json:"id"`
	Bounds Rect   `json:"bounds"`
	Label  string `json:"label,omitempty"`
}

// ScaledElement is a SourceElement projected into panel space.
type ScaledElement struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Color  string  `json:"color"`
	Label  string  `json:"label,omitempty"`
	Source Rect    `json:"source"`
}

func (e ScaledElement) Rect() Rect {
	return Rect{X: e.X, Y: e.Y, Width: e.Width, Height: e.Height}
}
