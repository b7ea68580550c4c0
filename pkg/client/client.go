// Package client provides a client interface for interacting with the view
// state. RemoteClient talks to a running State API over HTTP; LocalClient
// calls the state service in-process against the configured store.
package client

import (
	"context"

	"github.com/vargaseous/sec-mcptest/state"
)

// Client defines the interface for reading and writing the shared view
// state. Both RemoteClient (HTTP) and LocalClient (direct calls) implement
// this interface.
type Client interface {
	// GetState returns the current document, or the default one.
	GetState(ctx context.Context) (state.Document, error)

	// ReplaceState overwrites the whole document.
	ReplaceState(ctx context.Context, doc state.Document) (state.Document, error)

	// SetFilters replaces only the selected facility classes.
	SetFilters(ctx context.Context, classes []string) ([]string, error)

	// SetMapView replaces only the map center and zoom.
	SetMapView(ctx context.Context, view state.MapView) (state.MapView, error)

	// ResetState deletes the document so readers see the defaults.
	ResetState(ctx context.Context) error

	// ListFacilityClasses returns the valid class values from the dataset.
	ListFacilityClasses(ctx context.Context) ([]string, error)

	// Health reports whether the backing store is reachable.
	Health(ctx context.Context) (HealthStatus, error)

	// StreamChanges delivers one value per change event until ctx is
	// cancelled or the stream breaks, then closes the channel.
	StreamChanges(ctx context.Context) (<-chan struct{}, error)

	// IsRunning returns true if the State API is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}

// HealthStatus mirrors the body of GET /health.
type HealthStatus struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// Healthy reports whether the store was reachable.
func (h HealthStatus) Healthy() bool {
	return h.Status == "healthy"
}
