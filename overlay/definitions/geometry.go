package definitions

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidGeometry = errors.New("panel geometry is incomplete")
	ErrOutsideContent  = errors.New("point is outside the content area")
)

// Point is a position in screen (viewport) or panel space.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// DevicePoint is a position in source-device pixels.
type DevicePoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Valid reports whether both dimensions are finite and positive.
func (s Size) Valid() bool {
	return IsPositive(s.Width) && IsPositive(s.Height)
}

func (s Size) Aspect() float64 {
	return s.Width / s.Height
}

// PanelGeometry describes where the live panel is drawn and which source
// resolution it shows.
type PanelGeometry struct {
	ScreenPosition   Point `json:"screenPosition" yaml:"screenPosition"`
	ScreenSize       Size  `json:"screenSize" yaml:"screenSize"`
	SourceResolution Size  `json:"sourceResolution" yaml:"sourceResolution"`

	// ScaleX and ScaleY, when both set, bypass aspect-fit.
	ScaleX float64 `json:"scaleX,omitempty" yaml:"scaleX,omitempty"`
	ScaleY float64 `json:"scaleY,omitempty" yaml:"scaleY,omitempty"`
	// ScaleFactor applies one factor to both axes.
	ScaleFactor float64 `json:"scaleFactor,omitempty" yaml:"scaleFactor,omitempty"`
}

// ProjectionMode selects how source pixels map onto the panel.
type ProjectionMode interface {
	projectionMode()
}

// AspectFit letterboxes the source inside the panel like CSS object-fit: contain.
type AspectFit struct {
	SourceResolution Size
}

// ExplicitScale uses independent factors per axis with no letterboxing.
type ExplicitScale struct {
	ScaleX, ScaleY float64
}

// UniformScale uses a single factor for both axes with no letterboxing.
type UniformScale struct {
	Factor float64
}

func (AspectFit) projectionMode()     {}
func (ExplicitScale) projectionMode() {}
func (UniformScale) projectionMode()  {}

// Mode derives the projection mode. Explicit per-axis factors win over a
// uniform factor, which wins over aspect-fit.
func (g PanelGeometry) Mode() ProjectionMode {
	switch {
	case g.ScaleX != 0 || g.ScaleY != 0:
		return ExplicitScale{ScaleX: g.ScaleX, ScaleY: g.ScaleY}
	case g.ScaleFactor != 0:
		return UniformScale{Factor: g.ScaleFactor}
	default:
		return AspectFit{SourceResolution: g.SourceResolution}
	}
}

// Validate returns an error wrapping ErrInvalidGeometry when the geometry
// cannot be projected.
func (g PanelGeometry) Validate() error {
	if !IsFinite(g.ScreenPosition.X) || !IsFinite(g.ScreenPosition.Y) {
		return fmt.Errorf("%w: screen position %v,%v", ErrInvalidGeometry, g.ScreenPosition.X, g.ScreenPosition.Y)
	}
	if !g.ScreenSize.Valid() {
		return fmt.Errorf("%w: screen size %vx%v", ErrInvalidGeometry, g.ScreenSize.Width, g.ScreenSize.Height)
	}

	switch m := g.Mode().(type) {
	case ExplicitScale:
		if !IsPositive(m.ScaleX) || !IsPositive(m.ScaleY) {
			return fmt.Errorf("%w: scale %vx%v", ErrInvalidGeometry, m.ScaleX, m.ScaleY)
		}
	case UniformScale:
		if !IsPositive(m.Factor) {
			return fmt.Errorf("%w: scale factor %v", ErrInvalidGeometry, m.Factor)
		}
	case AspectFit:
		if !m.SourceResolution.Valid() {
			return fmt.Errorf("%w: source resolution %vx%v", ErrInvalidGeometry, m.SourceResolution.Width, m.SourceResolution.Height)
		}
	}
	return nil
}

// Equal compares field by field, treating NaN as equal to NaN so that a
// broken geometry is not seen as changed on every update.
func (g PanelGeometry) Equal(o PanelGeometry) bool {
	a := []float64{g.ScreenPosition.X, g.ScreenPosition.Y, g.ScreenSize.Width, g.ScreenSize.Height,
		g.SourceResolution.Width, g.SourceResolution.Height, g.ScaleX, g.ScaleY, g.ScaleFactor}
	b := []float64{o.ScreenPosition.X, o.ScreenPosition.Y, o.ScreenSize.Width, o.ScreenSize.Height,
		o.SourceResolution.Width, o.SourceResolution.Height, o.ScaleX, o.ScaleY, o.ScaleFactor}
	for i := range a {
		if a[i] != b[i] && !(math.IsNaN(a[i]) && math.IsNaN(b[i])) {
			return false
		}
	}
	return true
}

// Complete is Validate without the reason.
func (g PanelGeometry) Complete() bool {
	return g.Validate() == nil
}

func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func IsPositive(v float64) bool {
	return IsFinite(v) && v > 0
}
