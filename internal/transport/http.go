// Package transport implements the HTTP client for the matrix unit's
// control endpoint.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/renholt/crossbar/internal/cec"
	"github.com/renholt/crossbar/internal/port"
)

// HTTPClient talks to the matrix unit's HTTP control API.
type HTTPClient struct {
	base   string
	client *http.Client
}

// Verify HTTPClient satisfies the CEC transport at compile time.
var _ cec.Transport = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the given control URL.
func NewHTTPClient(controlURL string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(controlURL)
	if err != nil {
		return nil, fmt.Errorf("transport: parse control url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("transport: unsupported scheme %q", u.Scheme)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		base:   strings.TrimRight(controlURL, "/"),
		client: &http.Client{Timeout: timeout},
	}, nil
}

type commandResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// SendCEC issues a single CEC command to a physical port on the unit.
func (c *HTTPClient) SendCEC(ctx context.Context, kind port.Kind, number int, command string) error {
	body := map[string]any{
		"target_type": string(kind),
		"port":        number,
		"command":     command,
	}
	if err := c.post(ctx, "/cec/send", body); err != nil {
		return fmt.Errorf("transport: cec %s %s_%d: %w", command, kind, number, err)
	}
	return nil
}

// SwitchInput routes an input to an output on the unit.
func (c *HTTPClient) SwitchInput(ctx context.Context, output, input int) error {
	body := map[string]any{
		"output": output,
		"input":  input,
	}
	if err := c.post(ctx, "/switch", body); err != nil {
		return fmt.Errorf("transport: switch output %d to input %d: %w", output, input, err)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unit returned %s", resp.Status)
	}

	var cr commandResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		// Units without a JSON body on success are accepted as-is.
		return nil
	}
	if !cr.Success {
		if cr.Error != "" {
			return fmt.Errorf("unit rejected command: %s", cr.Error)
		}
		return fmt.Errorf("unit rejected command")
	}
	return nil
}
