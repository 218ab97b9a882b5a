// Package config loads the optional devoverlay.yaml workspace file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spance/devoverlay/constants"
	"github.com/spance/devoverlay/overlay/definitions"
	"github.com/spance/devoverlay/overlay/ios"
	"gopkg.in/yaml.v3"
)

// Config represents devoverlay.yaml. Zero values fall back to Default.
type Config struct {
	Lang  string `yaml:"lang"`
	Debug bool   `yaml:"debug"`

	Server  ServerConfig  `yaml:"server"`
	Device  DeviceConfig  `yaml:"device"`
	Overlay OverlayConfig `yaml:"overlay"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// HostName is the host this backend answers for; empty accepts any.
	HostName             string `yaml:"hostName"`
	ReadTimeout          int    `yaml:"readTimeout"`  // seconds
	WriteTimeout         int    `yaml:"writeTimeout"` // seconds
	BodyLimit            string `yaml:"bodyLimit"`
	EnableRequestLogging bool   `yaml:"enableRequestLogging"`
	Version              string `yaml:"-"`
}

type DeviceConfig struct {
	Type   string `yaml:"type"` // adb or ios
	ID     string `yaml:"id"`
	WdaURL string `yaml:"wdaUrl"`
}

type OverlayConfig struct {
	ServerURL    string `yaml:"serverUrl"`
	TapEndpoint  string `yaml:"tapEndpoint"`
	PulseMs      int    `yaml:"pulseMs"`
	ReadoutMs    int    `yaml:"readoutMs"`
	TapTimeoutMs int    `yaml:"tapTimeoutMs"`
}

func Default() *Config {
	return &Config{
		Lang: "en",
		Server: ServerConfig{
			Addr:                 constants.DefaultAddr,
			ReadTimeout:          30,
			WriteTimeout:         30,
			BodyLimit:            "2M",
			EnableRequestLogging: true,
		},
		Device: DeviceConfig{
			Type:   constants.ADB,
			WdaURL: ios.DefaultWdaURL,
		},
		Overlay: OverlayConfig{
			ServerURL:    constants.DefaultServerURL,
			TapEndpoint:  constants.DefaultTapEndpoint,
			PulseMs:      int(definitions.DefaultPulseDuration / time.Millisecond),
			ReadoutMs:    int(definitions.DefaultReadoutDuration / time.Millisecond),
			TapTimeoutMs: int(definitions.DefaultTapTimeout / time.Millisecond),
		},
	}
}

// Load reads a configuration file on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromDir looks for devoverlay.yaml or devoverlay.yml in dir.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"devoverlay.yaml", "devoverlay.yml"} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found
	return Default(), nil
}

// Host is the capability the overlay forwards taps for.
func (c *Config) Host() definitions.HostCapability {
	return definitions.HostCapability{
		HostName:    c.Server.HostName,
		DeviceID:    c.Device.ID,
		TapEndpoint: c.Overlay.TapEndpoint,
	}
}

// OverlayTiming converts the millisecond settings; non-positive values take
// the defaults.
func (c *Config) OverlayTiming() *definitions.OverlayConfig {
	oc := &definitions.OverlayConfig{
		PulseDuration:   time.Duration(c.Overlay.PulseMs) * time.Millisecond,
		ReadoutDuration: time.Duration(c.Overlay.ReadoutMs) * time.Millisecond,
		TapTimeout:      time.Duration(c.Overlay.TapTimeoutMs) * time.Millisecond,
		Lang:            c.Lang,
	}
	return oc.WithDefaults()
}

// LoadPanel reads a PanelGeometry from a YAML or JSON file.
func LoadPanel(path string) (definitions.PanelGeometry, error) {
	var g definitions.PanelGeometry
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided geometry file
	if err != nil {
		return g, err
	}
	// JSON is valid YAML, one decoder serves both
	if err := yaml.Unmarshal(data, &g); err != nil {
		return g, fmt.Errorf("parse panel %s: %w", path, err)
	}
	return g, nil
}
