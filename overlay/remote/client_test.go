package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spance/devoverlay/constants"
	"github.com/spance/devoverlay/overlay/definitions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEndpoint(t *testing.T) {
	assert.Equal(t, "http://10.0.0.2:5109/server/remote/tapCoordinates",
		ResolveEndpoint(constants.DefaultTapEndpoint, "http://10.0.0.2:5109/", "pixel"))
	assert.Equal(t, "http://gw/hosts/lab%20phone/tap",
		ResolveEndpoint("{{server}}/hosts/{{host}}/tap", "http://gw", "lab phone"))
}

func TestNewClient_EndpointFromHost(t *testing.T) {
	c := NewClient("", definitions.HostCapability{HostName: "pixel-7"}, 0)
	assert.Equal(t, constants.DefaultServerURL+constants.TapPath, c.TapURL())

	c = NewClient("http://gw:8080/", definitions.HostCapability{HostName: "pixel 7", TapEndpoint: "{{server}}/tap/{{host}}"}, time.Second)
	assert.Equal(t, "http://gw:8080/tap/pixel%207", c.TapURL())
}

func TestClient_TapPostsBody(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, constants.TapPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, sonic.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, definitions.HostCapability{HostName: "pixel-7"}, time.Second)
	resp, err := c.Tap(context.Background(), definitions.TapRequest{Host: "pixel-7", X: 540, Y: 1170})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	assert.Equal(t, map[string]any{"host": "pixel-7", "x": float64(540), "y": float64(1170)}, got, "device_id is omitted when empty")
}

func TestClient_TapFailureReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"success": false, "error": "device offline"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, definitions.HostCapability{HostName: "pixel-7"}, time.Second)
	resp, err := c.Tap(context.Background(), definitions.TapRequest{Host: "pixel-7", X: 1, Y: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device offline")
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
}

func TestClient_TapUnreadableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}))
	defer server.Close()

	c := NewClient(server.URL, definitions.HostCapability{HostName: "pixel-7"}, time.Second)
	_, err := c.Tap(context.Background(), definitions.TapRequest{Host: "pixel-7"})
	assert.Error(t, err)
}

func TestClient_TapHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(server.URL, definitions.HostCapability{HostName: "pixel-7"}, time.Minute)
	_, err := c.Tap(ctx, definitions.TapRequest{Host: "pixel-7"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Dump(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, constants.DumpPath, r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		var req definitions.DumpRequest
		assert.NoError(t, sonic.Unmarshal(body, &req))
		assert.Equal(t, definitions.DumpRequest{Host: "pixel-7", DeviceID: "emulator-5554"}, req)

		_, _ = w.Write([]byte(`{"success": true, "resolution": {"width": 1080, "height": 2340},
			"elements": [{"id": "a", "bounds": {"x": 1, "y": 2, "width": 3, "height": 4}, "label": "A"}]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, definitions.HostCapability{HostName: "pixel-7", DeviceID: "emulator-5554"}, time.Second)
	elements, resolution, err := c.Dump(context.Background())
	require.NoError(t, err)
	assert.Equal(t, definitions.Size{Width: 1080, Height: 2340}, resolution)
	require.Len(t, elements, 1)
	assert.Equal(t, definitions.Rect{X: 1, Y: 2, Width: 3, Height: 4}, elements[0].Bounds)
}
