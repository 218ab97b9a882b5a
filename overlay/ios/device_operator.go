package ios

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
	"github.com/spance/devoverlay/overlay/definitions"
)

const DefaultWdaURL = "http://localhost:8100"

// IOSDevice drives an iPhone through WebDriverAgent. Coordinates are WDA
// points, which is also the unit of the source tree and window size.
type IOSDevice struct {
	mu         sync.Mutex
	baseURL    string
	sessionID  string
	httpClient *http.Client
}

func NewIOSDevice(wdaURL string) *IOSDevice {
	if wdaURL == "" {
		wdaURL = DefaultWdaURL
	}
	return &IOSDevice{
		baseURL: strings.TrimRight(wdaURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (r *IOSDevice) Tap(ctx context.Context, x, y int, deviceID string) error {
	path, err := r.sessionPath(ctx, "/wda/tap")
	if err != nil {
		return err
	}
	_, err = r.post(ctx, path, map[string]any{"x": x, "y": y})
	if err != nil {
		return fmt.Errorf("wda tap at %d,%d failed: %w", x, y, err)
	}
	return nil
}

func (r *IOSDevice) GetScreenshot(ctx context.Context, deviceID string) (*definitions.Screenshot, error) {
	resp, err := r.get(ctx, "/screenshot")
	if err != nil {
		return nil, err
	}
	encoded, ok := resp["value"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid screenshot response")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid screenshot encoding: %w", err)
	}
	return decodeScreenshot(data)
}

func (r *IOSDevice) GetScreenSize(ctx context.Context, deviceID string) (definitions.Size, error) {
	path, err := r.sessionPath(ctx, "/window/size")
	if err != nil {
		return definitions.Size{}, err
	}
	resp, err := r.get(ctx, path)
	if err != nil {
		return definitions.Size{}, err
	}

	value, ok := resp["value"].(map[string]any)
	if !ok {
		return definitions.Size{}, fmt.Errorf("invalid window size response")
	}
	w, _ := value["width"].(float64)
	h, _ := value["height"].(float64)
	size := definitions.Size{Width: w, Height: h}
	if !size.Valid() {
		return definitions.Size{}, fmt.Errorf("invalid window size %vx%v", w, h)
	}
	return size, nil
}

func (r *IOSDevice) DumpUI(ctx context.Context, deviceID string) ([]definitions.SourceElement, error) {
	resp, err := r.get(ctx, "/source")
	if err != nil {
		return nil, err
	}
	source, ok := resp["value"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid source response")
	}
	return ParseSource(source)
}

// Connect points the device at another WDA endpoint and checks it answers.
func (r *IOSDevice) Connect(ctx context.Context, address string) (string, error) {
	r.mu.Lock()
	if address != "" {
		r.baseURL = strings.TrimRight(address, "/")
		r.sessionID = ""
	}
	r.mu.Unlock()

	if _, err := r.get(ctx, "/status"); err != nil {
		return fmt.Sprintf("Connect error: %v", err), err
	}
	return fmt.Sprintf("Connected to %s", r.base()), nil
}

// Disconnect deletes the current WDA session, if any.
func (r *IOSDevice) Disconnect(ctx context.Context, address string) (string, error) {
	r.mu.Lock()
	sid := r.sessionID
	r.sessionID = ""
	r.mu.Unlock()

	if sid == "" {
		return "No active session", nil
	}
	if _, err := r.do(ctx, http.MethodDelete, "/session/"+sid, nil); err != nil {
		return fmt.Sprintf("Disconnect error: %v", err), err
	}
	return fmt.Sprintf("Session %s closed", sid), nil
}

func (r *IOSDevice) ListDevices(ctx context.Context) ([]definitions.DeviceInfo, error) {
	resp, err := r.get(ctx, "/status")
	if err != nil {
		return nil, err
	}
	return []definitions.DeviceInfo{statusToDevice(r.base(), resp)}, nil
}

func statusToDevice(baseURL string, resp map[string]any) definitions.DeviceInfo {
	info := definitions.DeviceInfo{DeviceID: baseURL, Status: "device", ConnectionType: definitions.USB}
	if !strings.Contains(baseURL, "localhost") && !strings.Contains(baseURL, "127.0.0.1") {
		info.ConnectionType = definitions.WiFi
	}

	value, _ := resp["value"].(map[string]any)
	if ready, ok := value["ready"].(bool); ok && !ready {
		info.Status = "offline"
	}
	if ios, ok := value["ios"].(map[string]any); ok {
		if ip, ok := ios["ip"].(string); ok && ip != "" {
			info.DeviceID = ip
		}
	}
	if osInfo, ok := value["os"].(map[string]any); ok {
		name, _ := osInfo["name"].(string)
		version, _ := osInfo["version"].(string)
		info.Model = strings.TrimSpace(name + " " + version)
	}
	return info
}

func (r *IOSDevice) base() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.baseURL
}

// sessionPath creates a session on first use.
func (r *IOSDevice) sessionPath(ctx context.Context, path string) (string, error) {
	r.mu.Lock()
	sid := r.sessionID
	r.mu.Unlock()

	if sid == "" {
		resp, err := r.post(ctx, "/session", map[string]any{
			"capabilities": map[string]any{"alwaysMatch": map[string]any{}},
		})
		if err != nil {
			return "", fmt.Errorf("failed to create session: %w", err)
		}
		if value, ok := resp["value"].(map[string]any); ok {
			sid, _ = value["sessionId"].(string)
		}
		if sid == "" {
			sid, _ = resp["sessionId"].(string)
		}
		if sid == "" {
			return "", fmt.Errorf("failed to create session: no session id in response")
		}
		log.Debug().Str("session", sid).Msg("[WDA] session created")

		r.mu.Lock()
		r.sessionID = sid
		r.mu.Unlock()
	}
	return fmt.Sprintf("/session/%s%s", sid, path), nil
}

func (r *IOSDevice) get(ctx context.Context, path string) (map[string]any, error) {
	return r.do(ctx, http.MethodGet, path, nil)
}

func (r *IOSDevice) post(ctx context.Context, path string, body any) (map[string]any, error) {
	return r.do(ctx, http.MethodPost, path, body)
}

func (r *IOSDevice) do(ctx context.Context, method, path string, body any) (map[string]any, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	url := r.base() + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug().Str("method", method).Str("url", url).Msg("[WDA] request")
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := sonic.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, string(raw))
	}

	if value, ok := result["value"].(map[string]any); ok {
		if errMsg, ok := value["error"].(string); ok {
			message := errMsg
			if msg, ok := value["message"].(string); ok {
				message = msg
			}
			return nil, fmt.Errorf("WDA error: %s", message)
		}
	}
	return result, nil
}
