package constants

import (
	_ "embed"
	"errors"
	"sync"

	"github.com/bytedance/sonic"
)

//go:embed overlay_style.json
var styleJSON []byte

// Style is the overlay look shared by every overlay instance. It is loaded
// once per process.
type Style struct {
	Palette     []string `json:"palette"`
	LabelLength int      `json:"label_length"`
	BorderWidth int      `json:"border_width"`
	PulseRadius float64  `json:"pulse_radius"`
	Letterbox   string   `json:"letterbox"`
}

var (
	style    Style
	errStyle error
	once     = new(sync.Once)
)

// LoadStyle decodes the embedded style sheet.
func LoadStyle() (Style, error) {
	once.Do(func() {
		if err := sonic.Unmarshal(styleJSON, &style); err != nil {
			errStyle = errors.Join(err, errors.New("failed to unmarshal embedded overlay_style.json"))
			return
		}
		if len(style.Palette) == 0 {
			errStyle = errors.New("overlay_style.json has an empty palette")
		}
	})
	return style, errStyle
}

// MustStyle is LoadStyle for callers that start after main has validated it.
func MustStyle() Style {
	s, err := LoadStyle()
	if err != nil {
		panic(err)
	}
	return s
}

// ColorAt cycles through the palette by position.
func (s Style) ColorAt(index int) string {
	if len(s.Palette) == 0 {
		return ""
	}
	if index < 0 {
		index = -index
	}
	return s.Palette[index%len(s.Palette)]
}
