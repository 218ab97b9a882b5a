package overlay

import (
	"context"
	"fmt"

	"github.com/spance/devoverlay/constants"
	"github.com/spance/devoverlay/overlay/android"
	"github.com/spance/devoverlay/overlay/definitions"
	"github.com/spance/devoverlay/overlay/ios"
)

// DeviceOperator 定义设备操作接口
type DeviceOperator interface {
	Tap(ctx context.Context, x, y int, deviceID string) error
	GetScreenshot(ctx context.Context, deviceID string) (*definitions.Screenshot, error)
	GetScreenSize(ctx context.Context, deviceID string) (definitions.Size, error)
	DumpUI(ctx context.Context, deviceID string) ([]definitions.SourceElement, error)
}

// DeviceManager 管理设备连接和状态
type DeviceManager interface {
	Connect(ctx context.Context, address string) (string, error)
	Disconnect(ctx context.Context, address string) (string, error)
	ListDevices(ctx context.Context) ([]definitions.DeviceInfo, error)
}

type Device interface {
	DeviceOperator
	DeviceManager
}

func CreateDevice(deviceType string, wdaURL string) (Device, error) {
	switch deviceType {
	case constants.ADB:
		return &android.ADBDevice{}, nil
	case constants.IOS:
		return ios.NewIOSDevice(wdaURL), nil
	default:
		return nil, fmt.Errorf("unknown device type: %v", deviceType)
	}
}

// DeviceForwarder taps a locally attached device instead of going through
// the remote endpoint.
type DeviceForwarder struct {
	Device DeviceOperator
}

func (f DeviceForwarder) Tap(ctx context.Context, req definitions.TapRequest) (*definitions.TapResponse, error) {
	if err := f.Device.Tap(ctx, req.X, req.Y, req.DeviceID); err != nil {
		return &definitions.TapResponse{Success: false, Error: err.Error()}, err
	}
	return &definitions.TapResponse{Success: true}, nil
}
