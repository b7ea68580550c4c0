package notify

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vargaseous/sec-mcptest/errors"
	"github.com/vargaseous/sec-mcptest/internal/daemon/store"
	"github.com/vargaseous/sec-mcptest/testutil"
)

// fakeStream hands out channels the test controls.
type fakeStream struct {
	opens   int
	failing bool
	current chan struct{}
	ctx     context.Context
}

func (f *fakeStream) open(ctx context.Context) (<-chan struct{}, error) {
	f.opens++
	if f.failing {
		return nil, stderrors.New("connection refused")
	}
	f.current = make(chan struct{}, 10)
	f.ctx = ctx
	return f.current, nil
}

func TestStreamCheckerCoalescesEvents(t *testing.T) {
	fs := &fakeStream{}
	c := NewStreamChecker(fs.open, "events", 10*time.Millisecond, testutil.QuietLogger())
	ctx := context.Background()

	changed, err := c.Check(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, fs.opens)

	fs.current <- struct{}{}
	fs.current <- struct{}{}
	fs.current <- struct{}{}

	changed, err = c.Check(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = c.Check(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "queued events were coalesced")
	assert.Equal(t, 1, fs.opens)
}

func TestStreamCheckerReopensAfterFailure(t *testing.T) {
	fs := &fakeStream{failing: true}
	c := NewStreamChecker(fs.open, "events", 10*time.Millisecond, testutil.QuietLogger())
	ctx := context.Background()

	changed, err := c.Check(ctx)
	assert.False(t, changed)
	assert.True(t, errors.Is(err, errors.ErrCodeNotificationFailure))

	fs.failing = false
	_, err = c.Check(ctx)
	require.NoError(t, err)
	first := fs.ctx

	close(fs.current)
	changed, err = c.Check(ctx)
	assert.False(t, changed)
	assert.True(t, errors.Is(err, errors.ErrCodeNotificationFailure))
	assert.Error(t, first.Err(), "dropped stream is cancelled")

	_, err = c.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, fs.opens)
}

func TestStreamCheckerClose(t *testing.T) {
	fs := &fakeStream{}
	c := NewStreamChecker(fs.open, "events", 10*time.Millisecond, testutil.QuietLogger())

	_, err := c.Check(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.Error(t, fs.ctx.Err())

	_, err = c.Check(context.Background())
	assert.ErrorIs(t, err, store.ErrClosed)
}
