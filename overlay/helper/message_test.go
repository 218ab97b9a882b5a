package helper

import "testing"

func TestGetMessage(t *testing.T) {
	if got := GetMessage("tap_failed", "en"); got != "Tap failed" {
		t.Errorf("en: got %q", got)
	}
	if got := GetMessage("tap_failed", "cn"); got != "点击失败" {
		t.Errorf("cn: got %q", got)
	}
	if got := GetMessage("unknown", "en"); got != "" {
		t.Errorf("unknown key: got %q", got)
	}
}

func TestFormatCoordinates(t *testing.T) {
	if got := FormatCoordinates(540, 1170); got != "(540, 1170)" {
		t.Errorf("got %q", got)
	}
}
