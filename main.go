package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spance/devoverlay/config"
	"github.com/spance/devoverlay/constants"
	"github.com/spf13/cobra"
)

// Options holds the persistent command line values. Empty values fall back
// to the config file, then to defaults.
type Options struct {
	ConfigPath string `json:"config"`
	Debug      bool   `json:"debug"`
	Lang       string `json:"lang"`
	DeviceType string `json:"device_type"`
	DeviceID   string `json:"device_id"`
	WdaUrl     string `json:"wda_url"`
	ServerURL  string `json:"server"`
	Host       string `json:"host"`
}

var rootCmd = &cobra.Command{
	Use:   "devoverlay",
	Short: "Element overlay for mirrored devices",
	Long: `devoverlay projects detected UI elements onto a device stream panel,
turns panel clicks back into device coordinates and forwards them as taps.
It supports Android devices via ADB, and iOS devices via WebDriverAgent.`,
	Example: `  # Project a dump onto a panel and print the hit boxes
  devoverlay project --elements dump.json --panel panel.yaml

  # Which device pixel does a click at (190, 380) hit?
  devoverlay resolve --panel panel.yaml 190 380

  # Click through the overlay, forwarding to the backend
  devoverlay tap --panel panel.yaml --elements dump.json 190 380

  # Dump the attached device
  devoverlay dump --out dump.json

  # Render the overlay onto a screenshot
  devoverlay annotate --panel panel.yaml --elements dump.json --screenshot screen.png --out overlay.png

  # Run the tap-forwarding backend for an attached device
  devoverlay serve --host pixel-7

  # List connected iOS devices
  devoverlay devices --device-type ios`,
	SilenceUsage:      true,
	PersistentPreRunE: prepare,
}

var (
	opts = &Options{}
	cfg  = config.Default()
)

// Helper function to get environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as int with default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func init() {
	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config",
		getEnv("DEVOVERLAY_CONFIG", ""),
		"Config file (default: ./devoverlay.yaml when present)")

	rootCmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false,
		"Enable debug mode (default: false)")

	rootCmd.PersistentFlags().StringVar(&opts.Lang, "lang",
		getEnv("DEVOVERLAY_LANG", ""),
		"Message language (cn or en, default: en)")

	// Device options
	rootCmd.PersistentFlags().StringVar(&opts.DeviceType, "device-type",
		getEnv("DEVOVERLAY_DEVICE_TYPE", ""),
		"Device type: adb for Android, ios for iPhone (default: adb)")

	rootCmd.PersistentFlags().StringVarP(&opts.DeviceID, "device-id", "d",
		getEnv("DEVOVERLAY_DEVICE_ID", ""),
		"ADB serial or iOS UDID")

	rootCmd.PersistentFlags().StringVar(&opts.WdaUrl, "wda-url",
		getEnv("DEVOVERLAY_WDA_URL", ""),
		"WebDriverAgent URL for iOS (default: http://localhost:8100)")

	// Backend options
	rootCmd.PersistentFlags().StringVar(&opts.ServerURL, "server",
		getEnv("DEVOVERLAY_SERVER", ""),
		"Tap-forwarding backend base URL (default: "+constants.DefaultServerURL+")")

	rootCmd.PersistentFlags().StringVar(&opts.Host, "host",
		getEnv("DEVOVERLAY_HOST", ""),
		"Host name taps are forwarded for")

	rootCmd.AddCommand(projectCmd(), resolveCmd(), tapCmd(), dumpCmd(), annotateCmd(), serveCmd(), devicesCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// prepare loads the config file, applies flag and environment overrides and
// sets the log level.
func prepare(cmd *cobra.Command, args []string) error {
	loaded, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	cfg = loaded
	applyOptions(cfg, opts)

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Validate lang and device-type choices
	if cfg.Lang != "cn" && cfg.Lang != "en" {
		return fmt.Errorf("invalid language option: %s. Must be 'cn' or 'en'", cfg.Lang)
	}
	if cfg.Device.Type != constants.ADB && cfg.Device.Type != constants.IOS {
		return fmt.Errorf("invalid device type: %s. Must be 'adb' or 'ios'", cfg.Device.Type)
	}

	log.Debug().Str("config", opts.ConfigPath).Interface("options", opts).Msg("configuration")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadFromDir(".")
}

func applyOptions(c *config.Config, o *Options) {
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&c.Lang, o.Lang)
	override(&c.Device.Type, o.DeviceType)
	override(&c.Device.ID, o.DeviceID)
	override(&c.Device.WdaURL, o.WdaUrl)
	override(&c.Overlay.ServerURL, o.ServerURL)
	override(&c.Server.HostName, o.Host)
	if o.Debug {
		c.Debug = true
	}
	if ms := getEnvInt("DEVOVERLAY_PULSE_MS", 0); ms > 0 {
		c.Overlay.PulseMs = ms
	}
	if ms := getEnvInt("DEVOVERLAY_READOUT_MS", 0); ms > 0 {
		c.Overlay.ReadoutMs = ms
	}
	if ms := getEnvInt("DEVOVERLAY_TAP_TIMEOUT_MS", 0); ms > 0 {
		c.Overlay.TapTimeoutMs = ms
	}
}
