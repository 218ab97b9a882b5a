package helper

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spance/devoverlay/overlay/definitions"
	"github.com/spance/devoverlay/utils"
)

var (
	idKeys     = []string{"id", "element_id", "elementId", "index"}
	boundsKeys = []string{"bounds", "rect", "frame"}

	accessibilityKeys = []string{"contentDesc", "content_desc", "content-desc", "accessibilityLabel", "aria-label", "label"}
	textKeys          = []string{"text", "value", "textContent"}
	nameKeys          = []string{"className", "class", "tagName", "tag", "type", "name"}
)

// ParseElements decodes a UI dump. The payload is either a JSON array of
// element objects or an object carrying them under "elements".
func ParseElements(data []byte) ([]definitions.SourceElement, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var raw []map[string]any
	if data[0] == '[' {
		if err := sonic.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse element list: %w", err)
		}
	} else {
		var wrapped struct {
			Elements []map[string]any `json:"elements"`
		}
		if err := sonic.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to parse element dump: %w", err)
		}
		raw = wrapped.Elements
	}

	return NormalizeElements(raw), nil
}

// NormalizeElements converts loosely-typed element objects into
// SourceElements, dropping the ones without a usable rectangle.
func NormalizeElements(raw []map[string]any) []definitions.SourceElement {
	return lo.FilterMap(raw, func(item map[string]any, i int) (definitions.SourceElement, bool) {
		el, err := NormalizeElement(item, i)
		if err != nil {
			log.Warn().Int("index", i).Str("id", el.ID).Err(err).Msg("dropping element")
			return el, false
		}
		return el, true
	})
}

// NormalizeElement builds one SourceElement. The returned element carries its
// id even when err is non-nil so callers can log it.
func NormalizeElement(item map[string]any, index int) (definitions.SourceElement, error) {
	el := definitions.SourceElement{ID: elementID(item, index)}

	bounds, err := elementBounds(item)
	if err != nil {
		return el, err
	}
	if !bounds.Valid() {
		return el, fmt.Errorf("degenerate bounds %+v", bounds)
	}

	el.Bounds = bounds
	el.Label = ElementLabel(item)
	return el, nil
}

func elementID(item map[string]any, index int) string {
	for _, key := range idKeys {
		if v, ok := item[key]; ok && v != nil {
			if s := utils.AnyToString(v); s != "" {
				return s
			}
		}
	}
	return fmt.Sprintf("el-%d", index)
}

func elementBounds(item map[string]any) (definitions.Rect, error) {
	for _, key := range boundsKeys {
		v, ok := item[key]
		if !ok || v == nil {
			continue
		}
		switch b := v.(type) {
		case string:
			return ParseAndroidBounds(b)
		case map[string]any:
			return BoundsFromMap(b)
		case []any:
			return boundsFromList(b)
		default:
			return definitions.Rect{}, fmt.Errorf("unsupported %s type %T", key, v)
		}
	}
	// flat element objects carry the coordinates inline
	return BoundsFromMap(item)
}

// BoundsFromMap accepts either {left, top, right, bottom} or
// {x, y, width, height}.
func BoundsFromMap(m map[string]any) (definitions.Rect, error) {
	if _, ok := m["left"]; ok {
		v, err := numbers(m, "left", "top", "right", "bottom")
		if err != nil {
			return definitions.Rect{}, err
		}
		return definitions.RectFromEdges(v[0], v[1], v[2], v[3]), nil
	}

	v, err := numbers(m, "x", "y", "width", "height")
	if err != nil {
		return definitions.Rect{}, err
	}
	return definitions.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

func numbers(m map[string]any, keys ...string) ([]float64, error) {
	out := make([]float64, len(keys))
	for i, key := range keys {
		raw, ok := m[key]
		if !ok {
			return nil, fmt.Errorf("missing bounds field %q", key)
		}
		f, ok := utils.AnyToFloat64(raw)
		if !ok {
			return nil, fmt.Errorf("bounds field %q is not a finite number: %v", key, raw)
		}
		out[i] = f
	}
	return out, nil
}

// boundsFromList reads [left, top, right, bottom].
func boundsFromList(list []any) (definitions.Rect, error) {
	if len(list) != 4 {
		return definitions.Rect{}, fmt.Errorf("bounds list has %d values, want 4", len(list))
	}
	v := make([]float64, 4)
	for i, raw := range list {
		f, ok := utils.AnyToFloat64(raw)
		if !ok {
			return definitions.Rect{}, fmt.Errorf("bounds value %d is not a finite number: %v", i, raw)
		}
		v[i] = f
	}
	return definitions.RectFromEdges(v[0], v[1], v[2], v[3]), nil
}

// ParseAndroidBounds parses the uiautomator form "[x1,y1][x2,y2]".
func ParseAndroidBounds(s string) (definitions.Rect, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return definitions.Rect{}, fmt.Errorf("malformed bounds %q", s)
	}
	trimmed = strings.ReplaceAll(trimmed, "][", ",")
	trimmed = strings.Trim(trimmed, "[]")

	parts := strings.Split(trimmed, ",")
	if len(parts) != 4 {
		return definitions.Rect{}, fmt.Errorf("malformed bounds %q", s)
	}

	v := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || !definitions.IsFinite(f) {
			return definitions.Rect{}, fmt.Errorf("malformed bounds %q", s)
		}
		v[i] = f
	}
	return definitions.RectFromEdges(v[0], v[1], v[2], v[3]), nil
}

// ElementLabel picks the accessibility label, then visible text, then the
// element or class name.
func ElementLabel(item map[string]any) string {
	for _, group := range [][]string{accessibilityKeys, textKeys, nameKeys} {
		for _, key := range group {
			if v, ok := item[key]; ok && v != nil {
				if s := strings.TrimSpace(utils.AnyToString(v)); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

// Truncate shortens s to max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
