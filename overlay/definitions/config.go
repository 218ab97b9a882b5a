package definitions

import "time"

const (
	DefaultPulseDuration   = 300 * time.Millisecond
	DefaultReadoutDuration = 2000 * time.Millisecond
	DefaultTapTimeout      = 10 * time.Second
)

// OverlayConfig holds the timing knobs of an Overlay.
type OverlayConfig struct {
	PulseDuration   time.Duration
	ReadoutDuration time.Duration
	TapTimeout      time.Duration
	Lang            string
}

// WithDefaults fills zero fields.
func (c *OverlayConfig) WithDefaults() *OverlayConfig {
	out := OverlayConfig{}
	if c != nil {
		out = *c
	}
	if out.PulseDuration <= 0 {
		out.PulseDuration = DefaultPulseDuration
	}
	if out.ReadoutDuration <= 0 {
		out.ReadoutDuration = DefaultReadoutDuration
	}
	if out.TapTimeout <= 0 {
		out.TapTimeout = DefaultTapTimeout
	}
	if out.Lang == "" {
		out.Lang = "en"
	}
	return &out
}
