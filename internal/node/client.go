package node

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"oracleScope/internal/model"
	"oracleScope/internal/register"
	"oracleScope/internal/scans"
)

// Default client settings.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 500 * time.Millisecond

	maxResponseSize = 32 << 20
)

// ErrNotFound is returned when the node does not know the requested resource,
// for example an unregistered scan id.
var ErrNotFound = errors.New("not found")

// StatusError is a non-success HTTP response from the node.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the node REST API.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	maxRetries   int
	retryBackoff time.Duration
	logger       *zap.Logger
}

// Option configures Client.
type Option func(*Client)

// WithAPIKey sets the api_key header sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithMaxRetries sets the maximum retry attempts for read requests.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryBackoff sets the initial retry delay.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.retryBackoff = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a node client for the base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse node url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("node url must be http or https: %s", baseURL)
	}

	c := &Client{
		baseURL:      strings.TrimRight(parsed.String(), "/"),
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		maxRetries:   DefaultMaxRetries,
		retryBackoff: DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

type scanBoxResponse struct {
	Box struct {
		BoxID               string                     `json:"boxId"`
		Value               uint64                     `json:"value"`
		CreationHeight      uint64                     `json:"creationHeight"`
		AdditionalRegisters map[string]json.RawMessage `json:"additionalRegisters"`
	} `json:"box"`
}

// ScanBoxes returns the unspent boxes tracked by a scan.
func (c *Client) ScanBoxes(ctx context.Context, scanID string) ([]model.Box, error) {
	if strings.TrimSpace(scanID) == "" {
		return nil, fmt.Errorf("scan id is required")
	}
	path := "/scan/unspentBoxes/" + url.PathEscape(scanID)

	var resp []scanBoxResponse
	err := withRetry(ctx, c.maxRetries, c.retryBackoff, func(ctx context.Context) error {
		err := c.do(ctx, http.MethodGet, path, nil, &resp)
		if err != nil {
			c.logger.Warn("scan boxes request failed", zap.String("scan_id", scanID), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("scan boxes %s: %w", scanID, err)
	}

	boxes := make([]model.Box, 0, len(resp))
	for _, item := range resp {
		registers, err := orderedRegisters(item.Box.AdditionalRegisters)
		if err != nil {
			return nil, fmt.Errorf("box %s: %w", item.Box.BoxID, err)
		}
		boxes = append(boxes, model.Box{
			ID:             item.Box.BoxID,
			Value:          item.Box.Value,
			CreationHeight: item.Box.CreationHeight,
			Registers:      registers,
		})
	}
	return boxes, nil
}

type registerScanRequest struct {
	ScanName          string     `json:"scanName"`
	TrackingRule      scans.Rule `json:"trackingRule"`
	WalletInteraction string     `json:"walletInteraction"`
	RemoveOffchain    bool       `json:"removeOffchain"`
}

type registerScanResponse struct {
	ScanID json.Number `json:"scanId"`
}

// RegisterScan registers a tracking rule with the node and returns the scan
// id. It is not retried, since a lost response would register a duplicate.
func (c *Client) RegisterScan(ctx context.Context, name string, rule scans.Rule) (string, error) {
	req := registerScanRequest{
		ScanName:          name,
		TrackingRule:      rule,
		WalletInteraction: "off",
		RemoveOffchain:    true,
	}

	var resp registerScanResponse
	if err := c.do(ctx, http.MethodPost, "/scan/register", req, &resp); err != nil {
		return "", fmt.Errorf("register scan %q: %w", name, err)
	}
	if resp.ScanID == "" {
		return "", fmt.Errorf("register scan %q: missing scan id", name)
	}
	return resp.ScanID.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return permanent(fmt.Errorf("marshal request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api_key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return permanent(ctx.Err())
		}
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return permanent(fmt.Errorf("%w: %s", ErrNotFound, path))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 256)}
	case resp.StatusCode >= http.StatusBadRequest:
		return permanent(&StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 256)})
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return permanent(fmt.Errorf("unmarshal response: %w", err))
	}
	return nil
}

// orderedRegisters lists non-mandatory registers from R4 up to the first gap.
func orderedRegisters(raw map[string]json.RawMessage) ([]register.Value, error) {
	out := make([]register.Value, 0, len(raw))
	for i := 4; i <= 9; i++ {
		value, ok := raw["R"+strconv.Itoa(i)]
		if !ok {
			break
		}
		v, err := registerValue(value)
		if err != nil {
			return nil, fmt.Errorf("register R%d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// registerValue accepts both the plain hex form and the expanded object form
// carrying serializedValue.
func registerValue(raw json.RawMessage) (register.Value, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return register.Value(s), nil
	}
	var expanded struct {
		SerializedValue string `json:"serializedValue"`
	}
	if err := json.Unmarshal(raw, &expanded); err != nil {
		return "", err
	}
	if expanded.SerializedValue == "" {
		return "", fmt.Errorf("missing serialized value")
	}
	return register.Value(expanded.SerializedValue), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
