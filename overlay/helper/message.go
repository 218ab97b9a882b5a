package helper

import (
	"strconv"

	"github.com/spance/devoverlay/constants"
	"github.com/valyala/fasttemplate"
)

var coordinateTemplate = fasttemplate.New(constants.CoordinateTemplate, "{{", "}}")

func GetMessage(key string, lang string) string {
	if lang == "en" {
		return constants.MESSAGES_EN_MAP[key]
	}
	return constants.MESSAGES_ZH_MAP[key]
}

// FormatCoordinates renders the readout text shown next to a click.
func FormatCoordinates(x, y int) string {
	return coordinateTemplate.ExecuteString(map[string]any{
		"x": strconv.Itoa(x),
		"y": strconv.Itoa(y),
	})
}
