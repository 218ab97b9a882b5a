package android

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spance/devoverlay/overlay/definitions"
)

const dumpPath = "/sdcard/window_dump.xml"

type ADBDevice struct {
}

// createFallbackScreenshot creates a black frame when the capture fails so
// callers can still draw the overlay.
func createFallbackScreenshot() *definitions.Screenshot {
	const (
		defaultWidth  = 1080
		defaultHeight = 2400
	)

	img := image.NewRGBA(image.Rect(0, 0, defaultWidth, defaultHeight))

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		log.Error().Err(err).Msg("Error encoding fallback image")
	}

	return &definitions.Screenshot{
		Data:   buf.Bytes(),
		Width:  defaultWidth,
		Height: defaultHeight,
	}
}

func (r *ADBDevice) GetScreenshot(ctx context.Context, deviceID string) (*definitions.Screenshot, error) {
	tempPath := filepath.Join(os.TempDir(), fmt.Sprintf("screenshot_%s.png", uuid.New().String()))
	defer func() {
		_ = os.Remove(tempPath)
	}()

	adbPrefix := r.GetADBPrefix(deviceID)

	screenshotArgs := append(adbPrefix, "shell", "screencap", "-p", "/sdcard/tmp.png")
	output, err := r.run(ctx, "GetScreenshot", screenshotArgs)
	if err != nil {
		log.Error().Err(err).Str("output", string(output)).Msg("Screenshot command error")
		return createFallbackScreenshot(), nil
	}

	outputStr := string(output)
	if strings.Contains(outputStr, "Status: -1") || strings.Contains(outputStr, "Failed") {
		log.Error().Str("output", outputStr).Msg("Screenshot failed, screen may be protected")
		return createFallbackScreenshot(), nil
	}

	pullArgs := append(r.GetADBPrefix(deviceID), "pull", "/sdcard/tmp.png", tempPath)
	if output, err = r.run(ctx, "GetScreenshot", pullArgs); err != nil {
		log.Error().Err(err).Str("output", string(output)).Msg("Pull command error")
		return createFallbackScreenshot(), nil
	}

	data, err := os.ReadFile(tempPath)
	if err != nil {
		log.Error().Err(err).Msg("Error reading image file")
		return createFallbackScreenshot(), nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		log.Error().Err(err).Msg("Error decoding image")
		return createFallbackScreenshot(), nil
	}

	return &definitions.Screenshot{
		Data:   data,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

func (r *ADBDevice) Tap(ctx context.Context, x, y int, deviceID string) error {
	args := append(r.GetADBPrefix(deviceID), "shell", "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	output, err := r.run(ctx, "Tap", args)
	if err != nil {
		return fmt.Errorf("adb tap at %d,%d failed: %w (output: %s)", x, y, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// GetScreenSize reads the resolution reported by `wm size`. An override size
// wins over the physical size since that is what input and dumps use.
func (r *ADBDevice) GetScreenSize(ctx context.Context, deviceID string) (definitions.Size, error) {
	args := append(r.GetADBPrefix(deviceID), "shell", "wm", "size")
	output, err := r.run(ctx, "GetScreenSize", args)
	if err != nil {
		return definitions.Size{}, fmt.Errorf("failed to get screen size: %w", err)
	}
	return ParseWmSize(string(output))
}

// ParseWmSize parses "Physical size: 1080x2400" with an optional
// "Override size: ..." line.
func ParseWmSize(output string) (definitions.Size, error) {
	var physical, override string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		idx := strings.LastIndex(line, ":")
		if idx == -1 {
			continue
		}
		value := strings.TrimSpace(line[idx+1:])
		switch {
		case strings.HasPrefix(line, "Override size"):
			override = value
		case strings.HasPrefix(line, "Physical size"):
			physical = value
		}
	}

	value := physical
	if override != "" {
		value = override
	}
	parts := strings.Split(value, "x")
	if len(parts) != 2 {
		return definitions.Size{}, fmt.Errorf("unexpected wm size output: %s", strings.TrimSpace(output))
	}

	width, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	height, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || width <= 0 || height <= 0 {
		return definitions.Size{}, fmt.Errorf("failed to parse screen size: %s", value)
	}
	return definitions.Size{Width: float64(width), Height: float64(height)}, nil
}

// DumpUI runs uiautomator and returns the elements of the current window.
func (r *ADBDevice) DumpUI(ctx context.Context, deviceID string) ([]definitions.SourceElement, error) {
	dumpArgs := append(r.GetADBPrefix(deviceID), "shell", "uiautomator", "dump", dumpPath)
	if output, err := r.run(ctx, "DumpUI", dumpArgs); err != nil {
		return nil, fmt.Errorf("uiautomator dump failed: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}

	catArgs := append(r.GetADBPrefix(deviceID), "exec-out", "cat", dumpPath)
	xmlData, err := r.run(ctx, "DumpUI", catArgs)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dumpPath, err)
	}

	return ParseHierarchy(xmlData)
}

func (r *ADBDevice) run(ctx context.Context, op string, args []string) ([]byte, error) {
	log.Debug().Str("cmd", strings.Join(args, " ")).Msgf("[%s] run cmd", op)
	output, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
	if err != nil {
		log.Error().Err(err).Msgf("[%s] run cmd failed", op)
	}
	return output, err
}

func (r *ADBDevice) GetADBPrefix(deviceID string) []string {
	if deviceID != "" {
		return []string{adbPath, "-s", deviceID}
	}
	return []string{adbPath}
}
