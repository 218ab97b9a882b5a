package android

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spance/devoverlay/overlay/definitions"
)

const (
	adbPath = "adb"

	managerTimeout = 5 * time.Second
)

// Connect attaches a device over TCP. The overlay session refreshes
// elements after a successful connect.
func (r *ADBDevice) Connect(ctx context.Context, address string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, managerTimeout)
	defer cancel()

	output, err := r.run(ctx, "Connect", []string{adbPath, "connect", address})
	if err != nil {
		return fmt.Sprintf("Connect error: %v", err), err
	}
	return ParseConnectOutput(address, string(output))
}

// Disconnect detaches address, or every TCP device when address is empty.
func (r *ADBDevice) Disconnect(ctx context.Context, address string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, managerTimeout)
	defer cancel()

	args := []string{adbPath, "disconnect"}
	if address != "" && address != "all" {
		args = append(args, address)
	}
	output, err := r.run(ctx, "Disconnect", args)
	if err != nil {
		return fmt.Sprintf("Disconnect error: %v", err), err
	}
	msg := strings.TrimSpace(string(output))
	if strings.HasPrefix(strings.ToLower(msg), "error") {
		return msg, fmt.Errorf("adb disconnect %s: %s", address, msg)
	}
	return msg, nil
}

// ParseConnectOutput interprets `adb connect`, which exits 0 even when the
// connection fails.
func ParseConnectOutput(address, output string) (string, error) {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "already connected"):
		return fmt.Sprintf("Already connected to %s", address), nil
	case strings.Contains(lower, "failed"), strings.Contains(lower, "unable"), strings.Contains(lower, "cannot"):
		msg := strings.TrimSpace(output)
		return msg, fmt.Errorf("adb connect %s: %s", address, msg)
	case strings.Contains(lower, "connected"):
		return fmt.Sprintf("Connected to %s", address), nil
	default:
		msg := strings.TrimSpace(output)
		return msg, fmt.Errorf("adb connect %s: unexpected output %q", address, msg)
	}
}

func (r *ADBDevice) ListDevices(ctx context.Context) ([]definitions.DeviceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, managerTimeout)
	defer cancel()

	output, err := r.run(ctx, "ListDevices", []string{adbPath, "devices", "-l"})
	if err != nil {
		return nil, err
	}
	return ParseDeviceList(string(output)), nil
}

// ParseDeviceList parses the output of `adb devices -l`.
func ParseDeviceList(output string) []definitions.DeviceInfo {
	var devices []definitions.DeviceInfo
	scanner := bufio.NewScanner(strings.NewReader(output))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		deviceID := parts[0]
		status := parts[1]

		connType := definitions.USB
		if strings.Contains(deviceID, ":") {
			connType = definitions.Remote
		}

		var model string
		for _, part := range parts[2:] {
			if strings.HasPrefix(part, "model:") {
				model = strings.SplitN(part, ":", 2)[1]
				break
			}
		}

		devices = append(devices, definitions.DeviceInfo{
			DeviceID:       deviceID,
			Status:         status,
			ConnectionType: connType,
			Model:          model,
		})
	}

	return devices
}
