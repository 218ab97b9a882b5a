package ios

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"strings"

	"github.com/spance/devoverlay/overlay/definitions"
	"github.com/spance/devoverlay/overlay/helper"
)

// ParseSource flattens the XCUIElement tree returned by WDA /source.
// Invisible elements are skipped.
func ParseSource(source string) ([]definitions.SourceElement, error) {
	decoder := xml.NewDecoder(strings.NewReader(source))

	var raw []map[string]any
	found := false
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid WDA source: %w", err)
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		found = true
		if start.Name.Local == "AppiumAUT" {
			continue
		}

		item := map[string]any{"type": start.Name.Local}
		visible := true
		for _, attr := range start.Attr {
			switch attr.Name.Local {
			case "type", "name", "label", "value", "x", "y", "width", "height":
				item[attr.Name.Local] = attr.Value
			case "visible":
				visible = attr.Value != "false"
			}
		}
		if !visible {
			continue
		}
		item["id"] = fmt.Sprintf("xcui-%d", len(raw))
		raw = append(raw, item)
	}

	if !found {
		return nil, fmt.Errorf("invalid WDA source: no elements")
	}
	return helper.NormalizeElements(raw), nil
}

func decodeScreenshot(data []byte) (*definitions.Screenshot, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	return &definitions.Screenshot{Data: data, Width: cfg.Width, Height: cfg.Height}, nil
}
