package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spance/devoverlay/constants"
	"github.com/spance/devoverlay/overlay/definitions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "devoverlay.yaml", `
lang: cn
server:
  hostName: lab-pixel
overlay:
  pulseMs: 150
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "cn", cfg.Lang)
	assert.Equal(t, "lab-pixel", cfg.Server.HostName)
	assert.Equal(t, constants.DefaultAddr, cfg.Server.Addr, "unset keys keep defaults")

	timing := cfg.OverlayTiming()
	assert.Equal(t, 150*time.Millisecond, timing.PulseDuration)
	assert.Equal(t, definitions.DefaultReadoutDuration, timing.ReadoutDuration)
	assert.Equal(t, "cn", timing.Lang)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "devoverlay.yaml", "server: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg, "missing file yields defaults")

	writeFile(t, dir, "devoverlay.yml", "device:\n  type: ios\n  id: 00008030-XYZ\n")
	cfg, err = LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, constants.IOS, cfg.Device.Type)

	host := cfg.Host()
	assert.Equal(t, "00008030-XYZ", host.DeviceID)
	assert.Equal(t, constants.DefaultTapEndpoint, host.TapEndpoint)
}

func TestLoadPanel_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	want := definitions.PanelGeometry{
		ScreenPosition:   definitions.Point{X: 40, Y: 80},
		ScreenSize:       definitions.Size{Width: 300, Height: 600},
		SourceResolution: definitions.Size{Width: 1080, Height: 2340},
	}

	yamlPath := writeFile(t, dir, "panel.yaml", `
screenPosition: {x: 40, y: 80}
screenSize: {width: 300, height: 600}
sourceResolution: {width: 1080, height: 2340}
`)
	g, err := LoadPanel(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, want, g)

	jsonPath := writeFile(t, dir, "panel.json",
		`{"screenPosition": {"x": 40, "y": 80}, "screenSize": {"width": 300, "height": 600}, "sourceResolution": {"width": 1080, "height": 2340}}`)
	g, err = LoadPanel(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, want, g)

	_, err = LoadPanel(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
