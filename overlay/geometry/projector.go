// Package geometry maps rectangles and points between source-device space and
// the on-screen panel that displays the device stream.
package geometry

import (
	"fmt"
	"math"

	"github.com/spance/devoverlay/overlay/definitions"
)

// ContentRect is the part of the panel that actually shows source pixels,
// relative to the panel origin.
type ContentRect struct {
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// ContainsLocal reports whether a content-local point lies in
// [0,Width) x [0,Height).
func (c ContentRect) ContainsLocal(p definitions.Point) bool {
	return p.X >= 0 && p.X < c.Width && p.Y >= 0 && p.Y < c.Height
}

// FitContain computes the letterboxed content rectangle the way CSS
// object-fit: contain does.
func FitContain(panel, source definitions.Size) ContentRect {
	sourceAspect := source.Aspect()
	panelAspect := panel.Aspect()

	if sourceAspect <= panelAspect {
		// height-constrained, bars left and right
		width := panel.Height * sourceAspect
		return ContentRect{
			OffsetX: (panel.Width - width) / 2,
			Width:   width,
			Height:  panel.Height,
		}
	}

	height := panel.Width / sourceAspect
	return ContentRect{
		OffsetY: (panel.Height - height) / 2,
		Width:   panel.Width,
		Height:  height,
	}
}

// scaledContent anchors the scaled source at the panel origin. Without a
// known source resolution the whole panel counts as content.
func scaledContent(panel, source definitions.Size, scaleX, scaleY float64) ContentRect {
	c := ContentRect{Width: panel.Width, Height: panel.Height}
	if source.Valid() {
		c.Width = min(panel.Width, source.Width*scaleX)
		c.Height = min(panel.Height, source.Height*scaleY)
	}
	return c
}

// RoundPixel rounds to the nearest pixel, saturating at the int32 range.
func RoundPixel(v float64) int {
	return int(max(min(math.Round(v), math.MaxInt32), math.MinInt32))
}

// Projector holds the resolved transform for one PanelGeometry.
type Projector struct {
	origin  definitions.Point
	panel   definitions.Size
	source  definitions.Size
	content ContentRect
	scaleX  float64
	scaleY  float64
}

// NewProjector validates g and resolves its projection mode.
func NewProjector(g definitions.PanelGeometry) (*Projector, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	p := &Projector{origin: g.ScreenPosition, panel: g.ScreenSize}
	if g.SourceResolution.Valid() {
		p.source = g.SourceResolution
	}

	switch m := g.Mode().(type) {
	case definitions.AspectFit:
		p.content = FitContain(g.ScreenSize, m.SourceResolution)
		p.scaleX = p.content.Width / m.SourceResolution.Width
		p.scaleY = p.content.Height / m.SourceResolution.Height
	case definitions.ExplicitScale:
		p.scaleX, p.scaleY = m.ScaleX, m.ScaleY
		p.content = scaledContent(g.ScreenSize, p.source, p.scaleX, p.scaleY)
	case definitions.UniformScale:
		p.scaleX, p.scaleY = m.Factor, m.Factor
		p.content = scaledContent(g.ScreenSize, p.source, p.scaleX, p.scaleY)
	default:
		return nil, fmt.Errorf("%w: unknown projection mode %T", definitions.ErrInvalidGeometry, m)
	}

	if !definitions.IsPositive(p.scaleX) || !definitions.IsPositive(p.scaleY) {
		return nil, fmt.Errorf("%w: degenerate scale %vx%v", definitions.ErrInvalidGeometry, p.scaleX, p.scaleY)
	}
	return p, nil
}

func (p *Projector) Origin() definitions.Point { return p.origin }

func (p *Projector) Panel() definitions.Size { return p.panel }

func (p *Projector) Content() ContentRect { return p.content }

func (p *Projector) Scale() (float64, float64) { return p.scaleX, p.scaleY }

// Forward projects a source rectangle into panel-local space.
func (p *Projector) Forward(r definitions.Rect) definitions.Rect {
	return definitions.Rect{
		X:      r.X*p.scaleX + p.content.OffsetX,
		Y:      r.Y*p.scaleY + p.content.OffsetY,
		Width:  r.Width * p.scaleX,
		Height: r.Height * p.scaleY,
	}
}

// PanelLocal converts a viewport point into panel-local space.
func (p *Projector) PanelLocal(viewport definitions.Point) definitions.Point {
	return definitions.Point{X: viewport.X - p.origin.X, Y: viewport.Y - p.origin.Y}
}

// ContentLocal converts a viewport point into content-local space.
func (p *Projector) ContentLocal(viewport definitions.Point) definitions.Point {
	local := p.PanelLocal(viewport)
	return definitions.Point{X: local.X - p.content.OffsetX, Y: local.Y - p.content.OffsetY}
}

// ToSource maps a viewport point back to device pixels. Points outside the
// content rectangle return ErrOutsideContent.
func (p *Projector) ToSource(viewport definitions.Point) (definitions.DevicePoint, error) {
	local := p.ContentLocal(viewport)
	if !definitions.IsFinite(local.X) || !definitions.IsFinite(local.Y) || !p.content.ContainsLocal(local) {
		return definitions.DevicePoint{}, fmt.Errorf("%w: content-local (%.1f, %.1f) not in %.1fx%.1f",
			definitions.ErrOutsideContent, local.X, local.Y, p.content.Width, p.content.Height)
	}
	return p.SourcePixel(definitions.Point{X: local.X / p.scaleX, Y: local.Y / p.scaleY}), nil
}

// SourcePixel rounds a source-space point to a device pixel, kept inside the
// source resolution when it is known.
func (p *Projector) SourcePixel(pt definitions.Point) definitions.DevicePoint {
	src := definitions.DevicePoint{X: RoundPixel(pt.X), Y: RoundPixel(pt.Y)}
	if p.source.Valid() {
		src.X = max(0, min(src.X, int(math.Ceil(p.source.Width))-1))
		src.Y = max(0, min(src.Y, int(math.Ceil(p.source.Height))-1))
	}
	return src
}

// PanelToSource is ToSource for a point already in panel-local space.
func (p *Projector) PanelToSource(local definitions.Point) (definitions.DevicePoint, error) {
	return p.ToSource(definitions.Point{X: local.X + p.origin.X, Y: local.Y + p.origin.Y})
}
