package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	_, err := m.Get(ctx, "app_state")
	assert.ErrorIs(t, err, ErrNotFound)

	value := []byte(`{"selected_fclasses":["clinic"]}`)
	require.NoError(t, m.Set(ctx, "app_state", value))

	// The store keeps its own copy.
	value[0] = 'X'
	got, err := m.Get(ctx, "app_state")
	require.NoError(t, err)
	assert.Equal(t, `{"selected_fclasses":["clinic"]}`, string(got))

	require.NoError(t, m.Delete(ctx, "app_state"))
	require.NoError(t, m.Delete(ctx, "app_state"), "deleting a missing key is not an error")
	_, err = m.Get(ctx, "app_state")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBusDeliversToLiveSubscribersOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	require.NoError(t, m.Publish(ctx, "changes", []byte("early")))

	sub, err := m.Subscribe(ctx, "changes")
	require.NoError(t, err)
	defer sub.Close()

	_, ok, err := sub.Next(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "events published before subscribing are not replayed")

	require.NoError(t, m.Publish(ctx, "other", []byte("ignored")))
	require.NoError(t, m.Publish(ctx, "changes", []byte("one")))
	require.NoError(t, m.Publish(ctx, "changes", []byte("two")))

	msg, ok, err := sub.Next(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "changes", msg.Channel)
	assert.Equal(t, "one", string(msg.Payload))

	msg, ok, err = sub.Next(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "two", string(msg.Payload), "messages arrive in publish order")
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	sub, err := m.Subscribe(ctx, "changes")
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close(), "close is idempotent")

	require.NoError(t, m.Publish(ctx, "changes", []byte("after close")))
	_, _, err = sub.Next(ctx, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNextHonoursContext(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	sub, err := m.Subscribe(context.Background(), "changes")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err := sub.Next(ctx, time.Minute)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClosedMemoryFails(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	sub, err := m.Subscribe(ctx, "changes")
	require.NoError(t, err)
	require.NoError(t, m.Close())

	_, _, err = sub.Next(ctx, time.Second)
	assert.ErrorIs(t, err, ErrClosed, "open subscriptions end when the store closes")

	assert.ErrorIs(t, m.Ping(ctx), ErrClosed)
	assert.ErrorIs(t, m.Set(ctx, "k", nil), ErrClosed)
	_, err = m.Subscribe(ctx, "changes")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Publish(ctx, "changes", nil), ErrClosed)
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	sub, err := m.Subscribe(ctx, "changes")
	require.NoError(t, err)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			_ = m.Publish(ctx, "changes", []byte("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}
