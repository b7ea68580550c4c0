package client

import (
	"context"
	"time"

	"github.com/vargaseous/sec-mcptest/internal/daemon/store"
	"github.com/vargaseous/sec-mcptest/state"
)

// LocalClient implements Client by calling the state service directly.
// It needs access to the backing store but no running State API.
type LocalClient struct {
	service *state.Service
	backend store.Backend
}

// NewLocalClient creates a new LocalClient. backend is the store the
// service writes to; it is used for change streaming.
func NewLocalClient(service *state.Service, backend store.Backend) *LocalClient {
	return &LocalClient{service: service, backend: backend}
}

// GetState returns the current document.
func (c *LocalClient) GetState(ctx context.Context) (state.Document, error) {
	return c.service.Read(ctx)
}

// ReplaceState overwrites the whole document.
func (c *LocalClient) ReplaceState(ctx context.Context, doc state.Document) (state.Document, error) {
	return c.service.Replace(ctx, doc)
}

// SetFilters replaces only the selected facility classes.
func (c *LocalClient) SetFilters(ctx context.Context, classes []string) ([]string, error) {
	return c.service.SetFilters(ctx, classes)
}

// SetMapView replaces only the map center and zoom.
func (c *LocalClient) SetMapView(ctx context.Context, view state.MapView) (state.MapView, error) {
	return c.service.SetMapView(ctx, view)
}

// ResetState deletes the document.
func (c *LocalClient) ResetState(ctx context.Context) error {
	return c.service.Reset(ctx)
}

// ListFacilityClasses returns the valid class values.
func (c *LocalClient) ListFacilityClasses(ctx context.Context) ([]string, error) {
	return c.service.ListFacilityClasses(ctx)
}

// Health pings the store directly.
func (c *LocalClient) Health(ctx context.Context) (HealthStatus, error) {
	if c.service.Health(ctx).Healthy {
		return HealthStatus{Status: "healthy", Store: "connected"}, nil
	}
	return HealthStatus{Status: "unhealthy", Store: "disconnected"}, nil
}

// StreamChanges subscribes to the store's change channel directly.
func (c *LocalClient) StreamChanges(ctx context.Context) (<-chan struct{}, error) {
	sub, err := c.backend.Subscribe(ctx, c.service.Channel())
	if err != nil {
		return nil, err
	}

	ch := make(chan struct{}, 10)
	go func() {
		defer close(ch)
		defer sub.Close()

		for {
			_, ok, err := sub.Next(ctx, time.Second)
			if err != nil {
				return
			}
			if !ok {
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

// IsRunning returns false since no API server is involved.
func (c *LocalClient) IsRunning() bool {
	return false
}

// Close is a no-op; the caller owns the backend.
func (c *LocalClient) Close() error {
	return nil
}

// Ensure LocalClient implements Client interface.
var _ Client = (*LocalClient)(nil)
