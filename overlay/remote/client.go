package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
	"github.com/spance/devoverlay/constants"
	"github.com/spance/devoverlay/overlay/definitions"
	"github.com/valyala/fasttemplate"
)

// Client talks to the tap-forwarding backend on behalf of one host.
type Client struct {
	host       definitions.HostCapability
	tapURL     string
	dumpURL    string
	httpClient *http.Client
}

func NewClient(serverURL string, host definitions.HostCapability, timeout time.Duration) *Client {
	if serverURL == "" {
		serverURL = constants.DefaultServerURL
	}
	if timeout <= 0 {
		timeout = definitions.DefaultTapTimeout
	}
	tmpl := host.TapEndpoint
	if tmpl == "" {
		tmpl = constants.DefaultTapEndpoint
	}
	return &Client{
		host:       host,
		tapURL:     ResolveEndpoint(tmpl, serverURL, host.HostName),
		dumpURL:    ResolveEndpoint("{{server}}"+constants.DumpPath, serverURL, host.HostName),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ResolveEndpoint fills {{server}} and {{host}} in an endpoint template.
func ResolveEndpoint(tmpl, serverURL, host string) string {
	return fasttemplate.ExecuteString(tmpl, "{{", "}}", map[string]any{
		"server": strings.TrimRight(serverURL, "/"),
		"host":   url.PathEscape(host),
	})
}

func (c *Client) TapURL() string { return c.tapURL }

// Tap posts the tap and returns an error when the backend reports failure.
func (c *Client) Tap(ctx context.Context, req definitions.TapRequest) (*definitions.TapResponse, error) {
	resp := &definitions.TapResponse{}
	status, err := c.post(ctx, c.tapURL, req, resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return resp, fmt.Errorf("tap rejected by backend (status %d): %s", status, resp.Error)
	}
	return resp, nil
}

// Dump asks the backend for the current UI elements of the host.
func (c *Client) Dump(ctx context.Context) ([]definitions.SourceElement, definitions.Size, error) {
	resp := &definitions.DumpResponse{}
	req := definitions.DumpRequest{Host: c.host.HostName, DeviceID: c.host.DeviceID}
	status, err := c.post(ctx, c.dumpURL, req, resp)
	if err != nil {
		return nil, definitions.Size{}, err
	}
	if !resp.Success {
		return nil, definitions.Size{}, fmt.Errorf("dump rejected by backend (status %d): %s", status, resp.Error)
	}
	return resp.Elements, resp.Resolution, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) (int, error) {
	data, err := sonic.Marshal(body)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("POST %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	log.Debug().Str("url", endpoint).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("backend request")

	if err := sonic.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("POST %s: status %d, unreadable body %q: %w", endpoint, resp.StatusCode, string(raw), err)
	}
	return resp.StatusCode, nil
}
