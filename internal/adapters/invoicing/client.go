// Package invoicing is a thin passthrough client for the external
// invoice/webhook service. It forwards query strings verbatim and never
// interprets the upstream payload beyond checking that it is JSON.
package invoicing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout  = 15 * time.Second
	maxResponseSize = 4 << 20
)

// Sub-paths on the invoice service this client exposes.
const (
	PathPendingBookings = "/pending-bookings"
	PathPlaceholders    = "/placeholders"
)

// UpstreamError reports a failed upstream exchange. Status is what the
// caller-facing response should carry: the upstream's own status for
// upstream-reported failures, 502 for non-JSON bodies, 500 for transport
// failures.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return e.Message
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient returns a Client for the invoice service at baseURL. A zero
// or negative timeout falls back to defaultTimeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Fetch GETs subPath with the caller's raw query string appended
// unchanged and returns the upstream JSON body. A response whose
// content-type is not JSON, or whose body does not parse as JSON, is an
// UpstreamError with status 502; the raw body is never returned.
func (c *Client) Fetch(ctx context.Context, subPath, rawQuery string) (json.RawMessage, error) {
	url := c.baseURL + subPath
	if rawQuery != "" {
		url += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Status: http.StatusInternalServerError, Message: "invoice service unreachable"}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("invoice service returned status %d", resp.StatusCode),
		}
	}

	if !jsonContentType(resp.Header.Get("Content-Type")) {
		return nil, &UpstreamError{Status: http.StatusBadGateway, Message: "invoice service returned a non-JSON response"}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &UpstreamError{Status: http.StatusInternalServerError, Message: "read invoice service response failed"}
	}
	if !json.Valid(body) {
		return nil, &UpstreamError{Status: http.StatusBadGateway, Message: "invoice service returned a non-JSON response"}
	}

	return body, nil
}

func jsonContentType(value string) bool {
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
