package notify

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vargaseous/sec-mcptest/errors"
	"github.com/vargaseous/sec-mcptest/internal/daemon/store"
	"github.com/vargaseous/sec-mcptest/internal/daemon/store/redisstore"
	"github.com/vargaseous/sec-mcptest/testutil"
)

const channel = "app_state_changes"

// flakyBackend fails Subscribe a configurable number of times.
type flakyBackend struct {
	*store.Memory

	mu             sync.Mutex
	subscribeFails int
	subscribes     int
}

func (f *flakyBackend) Subscribe(ctx context.Context, ch string) (store.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	if f.subscribeFails > 0 {
		f.subscribeFails--
		return nil, stderrors.New("connection refused")
	}
	return f.Memory.Subscribe(ctx, ch)
}

func TestCheckReportsEvents(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	defer mem.Close()

	b := NewBridge(mem, channel, 10*time.Millisecond, testutil.QuietLogger())
	defer b.Close()

	changed, err := b.Check(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, b.Connected(), "first check subscribes")

	require.NoError(t, mem.Publish(ctx, channel, []byte("state_changed")))
	changed, err = b.Check(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = b.Check(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "each event is observed once")
}

func TestCheckIsBounded(t *testing.T) {
	mem := store.NewMemory()
	defer mem.Close()

	b := NewBridge(mem, channel, 20*time.Millisecond, testutil.QuietLogger())
	defer b.Close()

	start := time.Now()
	_, err := b.Check(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFailedSubscribeIsNoEventThenRecovers(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{Memory: store.NewMemory(), subscribeFails: 2}
	defer backend.Close()

	b := NewBridge(backend, channel, 10*time.Millisecond, testutil.QuietLogger())
	defer b.Close()

	for i := 0; i < 2; i++ {
		changed, err := b.Check(ctx)
		assert.False(t, changed)
		assert.True(t, errors.Is(err, errors.ErrCodeNotificationFailure))
		assert.False(t, b.Connected())
	}

	changed, err := b.Check(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, b.Connected())
	assert.Equal(t, 3, backend.subscribes)
}

func TestBrokenSubscriptionIsReplaced(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	backend := redisstore.New(redisstore.Options{Addr: mr.Addr()})
	defer backend.Close()

	b := NewBridge(backend, channel, 20*time.Millisecond, testutil.QuietLogger())
	defer b.Close()

	_, err := b.Check(ctx)
	require.NoError(t, err)
	require.True(t, b.Connected())

	// Simulate a store restart: every connection is dropped.
	mr.Restart()

	var recovered bool
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_, err := b.Check(ctx)
		if err == nil && b.Connected() {
			mr.Publish(channel, "state_changed")
			if changed, err := b.Check(ctx); err == nil && changed {
				recovered = true
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, recovered, "bridge re-subscribes after the store comes back")
}

func TestClose(t *testing.T) {
	mem := store.NewMemory()
	defer mem.Close()

	b := NewBridge(mem, channel, time.Millisecond, testutil.QuietLogger())
	_, err := b.Check(context.Background())
	require.NoError(t, err)

	require.NoError(t, b.Close())
	assert.False(t, b.Connected())

	_, err = b.Check(context.Background())
	assert.ErrorIs(t, err, store.ErrClosed)
}
