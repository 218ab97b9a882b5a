package android

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/spance/devoverlay/overlay/definitions"
	"github.com/spance/devoverlay/overlay/helper"
)

// uiNode mirrors one <node> of a uiautomator window dump.
type uiNode struct {
	Text        string   `xml:"text,attr"`
	ResourceID  string   `xml:"resource-id,attr"`
	Class       string   `xml:"class,attr"`
	ContentDesc string   `xml:"content-desc,attr"`
	Bounds      string   `xml:"bounds,attr"`
	Nodes       []uiNode `xml:"node"`
}

type hierarchy struct {
	XMLName xml.Name `xml:"hierarchy"`
	Nodes   []uiNode `xml:"node"`
}

// ParseHierarchy flattens a uiautomator dump in document order, so children
// come after (and hit-test above) their parents.
func ParseHierarchy(data []byte) ([]definitions.SourceElement, error) {
	// uiautomator prints a status line after the XML
	if end := bytes.LastIndex(data, []byte("</hierarchy>")); end != -1 {
		data = data[:end+len("</hierarchy>")]
	}
	if start := bytes.Index(data, []byte("<?xml")); start > 0 {
		data = data[start:]
	}

	var h hierarchy
	if err := xml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("invalid uiautomator dump: %w", err)
	}

	var raw []map[string]any
	var walk func(nodes []uiNode)
	walk = func(nodes []uiNode) {
		for _, n := range nodes {
			item := map[string]any{
				"id":           fmt.Sprintf("node-%d", len(raw)),
				"bounds":       n.Bounds,
				"content-desc": n.ContentDesc,
				"text":         n.Text,
				"class":        n.Class,
			}
			if n.ResourceID != "" {
				item["resource-id"] = n.ResourceID
			}
			raw = append(raw, item)
			walk(n.Nodes)
		}
	}
	walk(h.Nodes)

	return helper.NormalizeElements(raw), nil
}
