package annotate

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/spance/devoverlay/constants"
	"github.com/spance/devoverlay/overlay"
	"github.com/spance/devoverlay/overlay/definitions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func phoneFrame(t *testing.T) *overlay.Frame {
	t.Helper()
	o := overlay.New(definitions.HostCapability{HostName: "pixel-7"}, nil, nil)
	t.Cleanup(o.Close)
	o.Update(overlay.Props{
		Elements: []definitions.SourceElement{{ID: "header", Bounds: definitions.RectFromEdges(0, 0, 108, 117)}},
		Geometry: definitions.PanelGeometry{
			ScreenSize:       definitions.Size{Width: 300, Height: 600},
			SourceResolution: definitions.Size{Width: 1080, Height: 2340},
		},
		Visible: true,
	})
	frame := o.Render()
	require.NotNil(t, frame)
	return frame
}

func TestRenderFrame_LetterboxContentAndBoxes(t *testing.T) {
	style := constants.MustStyle()
	red := color.RGBA{R: 200, A: 255}

	img, err := RenderFrame(solid(108, 234, red), phoneFrame(t), style)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 300, 600), img.Bounds())

	letterbox, err := ParseHexColor(style.Letterbox)
	require.NoError(t, err)
	assert.Equal(t, letterbox, img.RGBAAt(3, 300), "left bar")
	assert.Equal(t, letterbox, img.RGBAAt(296, 300), "right bar")
	assert.Equal(t, red, img.RGBAAt(150, 300), "screenshot fills the content area")

	boxColor, err := ParseHexColor(style.ColorAt(0))
	require.NoError(t, err)
	assert.Equal(t, boxColor, img.RGBAAt(12, 15), "left edge of the element box")
}

func TestRenderFrame_NilFrame(t *testing.T) {
	_, err := RenderFrame(nil, nil, constants.MustStyle())
	assert.Error(t, err)
}

func TestRenderFrame_WithoutScreenshot(t *testing.T) {
	img, err := RenderFrame(nil, phoneFrame(t), constants.MustStyle())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, img))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 300, decoded.Bounds().Dx())
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#FF6B6B")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0xFF, G: 0x6B, B: 0x6B, A: 0xFF}, c)

	c, err = ParseHexColor("#00000080")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{A: 0x80}, c)

	for _, bad := range []string{"", "#FFF", "#GGGGGG", "red"} {
		_, err := ParseHexColor(bad)
		assert.Error(t, err, bad)
	}
}
