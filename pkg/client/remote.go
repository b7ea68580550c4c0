package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vargaseous/sec-mcptest/errors"
	"github.com/vargaseous/sec-mcptest/state"
)

// RemoteClient implements Client by calling the State API over HTTP.
type RemoteClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewRemoteClient creates a new RemoteClient for the API at baseURL.
// Every request is bounded by timeout.
func NewRemoteClient(baseURL string, timeout time.Duration) *RemoteClient {
	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		DisableKeepAlives: false,
		MaxIdleConns:      10,
		IdleConnTimeout:   90 * time.Second,
	}

	return &RemoteClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the API root this client talks to.
func (c *RemoteClient) BaseURL() string {
	return c.baseURL
}

// GetState returns the current document.
func (c *RemoteClient) GetState(ctx context.Context) (state.Document, error) {
	var doc state.Document
	err := c.do(ctx, http.MethodGet, "/state", nil, &doc)
	return doc, err
}

// ReplaceState overwrites the whole document.
func (c *RemoteClient) ReplaceState(ctx context.Context, doc state.Document) (state.Document, error) {
	var resp struct {
		State state.Document `json:"state"`
	}
	err := c.do(ctx, http.MethodPost, "/state", doc, &resp)
	return resp.State, err
}

// SetFilters replaces only the selected facility classes.
func (c *RemoteClient) SetFilters(ctx context.Context, classes []string) ([]string, error) {
	if classes == nil {
		classes = []string{}
	}
	var resp struct {
		SelectedFClasses []string `json:"selected_fclasses"`
	}
	err := c.do(ctx, http.MethodPost, "/filters", classes, &resp)
	return resp.SelectedFClasses, err
}

// SetMapView replaces only the map center and zoom.
func (c *RemoteClient) SetMapView(ctx context.Context, view state.MapView) (state.MapView, error) {
	var resp struct {
		Map state.MapView `json:"map"`
	}
	err := c.do(ctx, http.MethodPost, "/map", view, &resp)
	return resp.Map, err
}

// ResetState deletes the document.
func (c *RemoteClient) ResetState(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/state", nil, nil)
}

// ListFacilityClasses returns the valid class values.
func (c *RemoteClient) ListFacilityClasses(ctx context.Context) ([]string, error) {
	var resp struct {
		FClasses []string `json:"fclasses"`
	}
	err := c.do(ctx, http.MethodGet, "/fclasses", nil, &resp)
	return resp.FClasses, err
}

// Health returns the API's view of the backing store.
func (c *RemoteClient) Health(ctx context.Context) (HealthStatus, error) {
	var h HealthStatus
	err := c.do(ctx, http.MethodGet, "/health", nil, &h)
	return h, err
}

// IsRunning returns true if the API is available and responding.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// StreamChanges subscribes to change events via Server-Sent Events (SSE).
// The channel is closed when the context is cancelled or the connection
// is lost.
func (c *RemoteClient) StreamChanges(ctx context.Context) (<-chan struct{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// Use a client without a timeout for streaming
	streamClient := &http.Client{Transport: c.httpClient.Transport}

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, errors.APIUnavailable(c.baseURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	ch := make(chan struct{}, 10)

	go func() {
		defer resp.Body.Close()
		defer close(ch)

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()

			// Skip comments, event names and empty lines
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			select {
			case ch <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// Close cleans up any resources used by the client.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *RemoteClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.APIUnavailable(c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// decodeError turns a {detail, code} body back into a typed error.
func decodeError(resp *http.Response) error {
	var body struct {
		Detail string `json:"detail"`
		Code   string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Code == "" {
		return errors.New(errors.ErrCodeInternal, fmt.Sprintf("state API returned status %d", resp.StatusCode))
	}
	return errors.New(errors.ErrorCode(body.Code), body.Detail).WithDetail("status", resp.StatusCode)
}

// Ensure RemoteClient implements Client interface.
var _ Client = (*RemoteClient)(nil)
