package definitions

// HostCapability addresses the backend that forwards taps to a device.
type HostCapability struct {
	HostName string `json:"host_name" yaml:"hostName"`
	DeviceID string `json:"device_id,omitempty" yaml:"deviceId,omitempty"`
	// TapEndpoint is a URL template; {{server}} and {{host}} are substituted.
	TapEndpoint string `json:"tap_endpoint,omitempty" yaml:"tapEndpoint,omitempty"`
}

// TapRequest is the body of POST /server/remote/tapCoordinates.
type TapRequest struct {
	Host     string `json:"host"`
	DeviceID string `json:"device_id,omitempty"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

type TapResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// DumpRequest is the body of POST /server/remote/dumpUI.
type DumpRequest struct {
	Host     string `json:"host"`
	DeviceID string `json:"device_id,omitempty"`
}

type DumpResponse struct {
	Success    bool            `json:"success"`
	Error      string          `json:"error,omitempty"`
	Elements   []SourceElement `json:"elements,omitempty"`
	Resolution Size            `json:"resolution"`
}
