package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/scanops/console/internal/domain"
	"github.com/scanops/console/internal/infrastructure/logger"
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

// UserMessage is the backend's own explanation, suitable for the console.
func (e *APIError) UserMessage() string {
	return e.Message
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logger.Logger
}

type ClientConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	Logger     *logger.Logger
	HTTPClient *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     log,
	}
}

func (c *Client) ScanStatus(ctx context.Context, scanID string) (*domain.ScanStatus, error) {
	var out domain.ScanStatus
	path := fmt.Sprintf("/api/v1/scans/%s", url.PathEscape(scanID))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = scanID
	}
	return &out, nil
}

func (c *Client) RunningScans(ctx context.Context, workspaceID string) (*domain.RunningScans, error) {
	var out domain.RunningScans
	q := url.Values{"workspace_id": {workspaceID}}
	if err := c.do(ctx, http.MethodGet, "/api/v1/scans/running", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelScan(ctx context.Context, scanID string) (*domain.CancelResult, error) {
	var out domain.CancelResult
	path := fmt.Sprintf("/api/v1/scans/%s/cancel", url.PathEscape(scanID))
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelAll(ctx context.Context, workspaceID string) (*domain.CancelAllResult, error) {
	var out domain.CancelAllResult
	q := url.Values{"workspace_id": {workspaceID}}
	if err := c.do(ctx, http.MethodPost, "/api/v1/scans/cancel-all", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logs(ctx context.Context, workspaceID string, page, limit int) (*domain.LogPage, error) {
	var out domain.LogPage
	q := url.Values{
		"workspace_id": {workspaceID},
		"page":         {strconv.Itoa(page)},
		"limit":        {strconv.Itoa(limit)},
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/logs", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Preview(ctx context.Context, tool domain.Tool, params map[string]interface{}) (*domain.CommandPreview, error) {
	var out domain.CommandPreview
	if err := c.do(ctx, http.MethodPost, tool.PreviewPath, nil, params, &out); err != nil {
		return nil, err
	}
	if out.CommandString == "" && len(out.Command) > 0 {
		out.CommandString = strings.Join(out.Command, " ")
	}
	if out.Parameters == nil {
		out.Parameters = params
	}
	return &out, nil
}

func (c *Client) Execute(ctx context.Context, tool domain.Tool, params map[string]interface{}) (*domain.ExecuteResponse, error) {
	var out domain.ExecuteResponse
	if err := c.do(ctx, http.MethodPost, tool.StartPath, nil, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload interface{}, out interface{}) error {
	start := time.Now()

	var body io.Reader
	size := 0
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
		size = len(raw)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}

	c.logger.Debugw("backend_request", "method", method, "path", path, "payload_bytes", size)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warnw("backend_network_error", "method", method, "path", path, "error", err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debugw("backend_response",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"resp_bytes", len(respBody),
	)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warnw("backend_bad_status", "method", method, "path", path, "status", resp.StatusCode)
		return &APIError{Status: resp.StatusCode, Message: extractMessage(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		c.logger.Warnw("backend_parse_error", "method", method, "path", path, "error", err)
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// extractMessage pulls a human message out of an error body: detail, error or message.
func extractMessage(body []byte) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	for _, key := range []string{"detail", "error", "message"} {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case []interface{}:
			var msgs []string
			for _, item := range v {
				if m, ok := item.(map[string]interface{}); ok {
					if s, ok := m["msg"].(string); ok {
						msgs = append(msgs, s)
					}
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return ""
}
