package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vargaseous/sec-mcptest/internal/daemon/store"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	defer s.Close()

	_, err := s.Get(ctx, "app_state")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, "app_state", []byte(`{"zoom_level":12}`)))
	require.NoError(t, s.Set(ctx, "app_state", []byte(`{"zoom_level":15}`)))

	got, err := s.Get(ctx, "app_state")
	require.NoError(t, err)
	assert.Equal(t, `{"zoom_level":15}`, string(got), "set overwrites")

	require.NoError(t, s.Delete(ctx, "app_state"))
	_, err = s.Get(ctx, "app_state")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, s.Ping(ctx))
}

func TestValuesSurviveReopen(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStore(t)
	require.NoError(t, s.Set(ctx, "app_state", []byte(`{"selected_fclasses":["clinic"]}`)))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "app_state")
	require.NoError(t, err)
	assert.Equal(t, `{"selected_fclasses":["clinic"]}`, string(got))
}

func TestInProcessNotifications(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	defer s.Close()

	sub, err := s.Subscribe(ctx, "app_state_changes")
	require.NoError(t, err)

	require.NoError(t, s.Publish(ctx, "app_state_changes", []byte("state_changed")))
	msg, ok, err := sub.Next(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "state_changed", string(msg.Payload))

	require.NoError(t, s.Close())
	_, _, err = sub.Next(ctx, time.Second)
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestMemoryDatabase(t *testing.T) {
	ctx := context.Background()
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "k", nil))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, got)
}
