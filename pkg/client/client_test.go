package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vargaseous/sec-mcptest/errors"
	"github.com/vargaseous/sec-mcptest/internal/daemon/server"
	"github.com/vargaseous/sec-mcptest/internal/daemon/store"
	"github.com/vargaseous/sec-mcptest/state"
	"github.com/vargaseous/sec-mcptest/testutil"
)

func newService(backend store.Backend) *state.Service {
	return state.NewService(backend, state.Options{
		OpTimeout: time.Second,
		Classes:   testutil.StaticClasses{"clinic", "hospital"},
		Logger:    testutil.QuietLogger(),
	})
}

// clients returns a remote and a local client sharing one fresh store.
func clients(t *testing.T) map[string]Client {
	t.Helper()

	remoteBackend := store.NewMemory()
	ts := httptest.NewServer(server.New(newService(remoteBackend), remoteBackend, testutil.QuietLogger()).Handler())
	remote := NewRemoteClient(ts.URL, 2*time.Second)

	localBackend := store.NewMemory()
	local := NewLocalClient(newService(localBackend), localBackend)

	t.Cleanup(func() {
		remote.Close()
		ts.Close()
		remoteBackend.Close()
		localBackend.Close()
	})
	return map[string]Client{"remote": remote, "local": local}
}

func TestClientOperations(t *testing.T) {
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			doc, err := c.GetState(ctx)
			require.NoError(t, err)
			assert.Equal(t, state.Default(), doc)

			zoom := 9
			want := state.Document{SelectedFClasses: []string{"hospital"}, MapCenter: &state.LatLng{1.3, 103.9}, ZoomLevel: &zoom}
			got, err := c.ReplaceState(ctx, want)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			classes, err := c.SetFilters(ctx, []string{"clinic"})
			require.NoError(t, err)
			assert.Equal(t, []string{"clinic"}, classes)

			view, err := c.SetMapView(ctx, state.MapView{Center: state.LatLng{1.35, 103.8}, Zoom: 14})
			require.NoError(t, err)
			assert.Equal(t, 14, view.Zoom)

			doc, err = c.GetState(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"clinic"}, doc.SelectedFClasses)
			assert.Equal(t, &state.LatLng{1.35, 103.8}, doc.MapCenter)

			all, err := c.ListFacilityClasses(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"clinic", "hospital"}, all)

			health, err := c.Health(ctx)
			require.NoError(t, err)
			assert.True(t, health.Healthy())

			require.NoError(t, c.ResetState(ctx))
			doc, err = c.GetState(ctx)
			require.NoError(t, err)
			assert.Equal(t, state.Default(), doc)
		})
	}
}

func TestStreamChanges(t *testing.T) {
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			changes, err := c.StreamChanges(ctx)
			require.NoError(t, err)

			_, err = c.SetFilters(context.Background(), []string{"clinic"})
			require.NoError(t, err)

			select {
			case _, ok := <-changes:
				assert.True(t, ok)
			case <-time.After(3 * time.Second):
				t.Fatal("no change event received")
			}

			cancel()
			assert.Eventually(t, func() bool {
				select {
				case _, ok := <-changes:
					return !ok
				default:
					return false
				}
			}, 3*time.Second, 10*time.Millisecond, "stream closes after cancel")
		})
	}
}

func TestRemoteErrorsAreTyped(t *testing.T) {
	backend := store.NewMemory()
	ts := httptest.NewServer(server.New(newService(backend), backend, testutil.QuietLogger()).Handler())
	defer ts.Close()
	c := NewRemoteClient(ts.URL, time.Second)

	_, err := c.SetMapView(context.Background(), state.MapView{Center: state.LatLng{1, 2}, Zoom: 3})
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/filters", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	err = c.do(context.Background(), http.MethodPost, "/state", map[string]string{"selected_fclasses": "x"}, nil)
	assert.True(t, errors.Is(err, errors.ErrCodeValidation), "got %v", err)
}

func TestUnreachableAPI(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := NewRemoteClient(url, 500*time.Millisecond)
	assert.False(t, c.IsRunning())

	_, err := c.GetState(context.Background())
	assert.True(t, errors.Is(err, errors.ErrCodeAPIUnavailable))
}

func TestFactoryFallsBack(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	backend := store.NewMemory()
	defer backend.Close()
	local := NewLocalClient(newService(backend), backend)

	c, err := New(url, 500*time.Millisecond, func() (Client, error) { return local, nil })
	require.NoError(t, err)
	assert.Same(t, local, c)

	c, err = New(url, 500*time.Millisecond, nil)
	require.NoError(t, err)
	assert.IsType(t, &RemoteClient{}, c)
}
