// Package annotate draws an overlay Frame onto a device screenshot, the way
// the live panel would show it, so alignment can be checked offline.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/spance/devoverlay/constants"
	"github.com/spance/devoverlay/overlay"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	pulseColor   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	textColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	outlineColor = color.RGBA{R: 0, G: 0, B: 0, A: 200}
)

// RenderFrame paints the panel: letterbox bars, the screenshot scaled into the
// content rectangle, element boxes with labels, pulses and readouts. screen
// may be nil, in which case only the overlay is drawn.
func RenderFrame(screen image.Image, frame *overlay.Frame, style constants.Style) (*image.RGBA, error) {
	if frame == nil {
		return nil, fmt.Errorf("nothing to render: overlay is hidden or geometry incomplete")
	}

	w := int(math.Ceil(frame.Size.Width))
	h := int(math.Ceil(frame.Size.Height))
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))

	letterbox, err := ParseHexColor(style.Letterbox)
	if err != nil {
		return nil, err
	}
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(letterbox), image.Point{}, draw.Src)

	if screen != nil {
		content := image.Rect(
			round(frame.Content.OffsetX),
			round(frame.Content.OffsetY),
			round(frame.Content.OffsetX+frame.Content.Width),
			round(frame.Content.OffsetY+frame.Content.Height),
		)
		xdraw.BiLinear.Scale(canvas, content, screen, screen.Bounds(), xdraw.Src, nil)
	}

	border := max(style.BorderWidth, 1)
	for _, el := range frame.Elements {
		c, err := ParseHexColor(el.Color)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", el.ID, err)
		}
		x1, y1 := round(el.X), round(el.Y)
		x2, y2 := round(el.X+el.Width), round(el.Y+el.Height)
		for i := 0; i < border; i++ {
			drawRectangle(canvas, x1+i, y1+i, x2-i, y2-i, c)
		}
		if el.Label != "" {
			drawTextWithOutline(canvas, el.Label, x1+border+2, y1+border+11)
		}
	}

	for _, p := range frame.Pulses {
		drawCircle(canvas, p.Center.X, p.Center.Y, p.Radius, pulseColor)
	}
	for _, r := range frame.Readouts {
		drawTextWithOutline(canvas, r.Text, round(r.Position.X)+8, round(r.Position.Y)-8)
	}

	return canvas, nil
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA".
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func round(v float64) int {
	return int(math.Round(v))
}

// drawRectangle draws a 1px outline, clamped to the image.
func drawRectangle(img *image.RGBA, x1, y1, x2, y2 int, c color.Color) {
	bounds := img.Bounds()
	x1, y1 = max(x1, bounds.Min.X), max(y1, bounds.Min.Y)
	x2, y2 = min(x2, bounds.Max.X), min(y2, bounds.Max.Y)
	if x2 <= x1 || y2 <= y1 {
		return
	}

	for x := x1; x < x2; x++ {
		img.Set(x, y1, c)
		img.Set(x, y2-1, c)
	}
	for y := y1; y < y2; y++ {
		img.Set(x1, y, c)
		img.Set(x2-1, y, c)
	}
}

func drawCircle(img *image.RGBA, cx, cy, radius float64, c color.Color) {
	if radius <= 0 {
		return
	}
	steps := int(2*math.Pi*radius) + 8
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		p := image.Pt(round(cx+radius*math.Cos(a)), round(cy+radius*math.Sin(a)))
		if p.In(img.Bounds()) {
			img.Set(p.X, p.Y, c)
		}
	}
}

// drawTextWithOutline draws basicfont text with its baseline at (x, y).
func drawTextWithOutline(img *image.RGBA, text string, x, y int) {
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			drawString(img, text, x+dx, y+dy, outlineColor)
		}
	}
	drawString(img, text, x, y, textColor)
}

func drawString(img *image.RGBA, text string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
