package poll

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vargaseous/sec-mcptest/internal/daemon/store"
	"github.com/vargaseous/sec-mcptest/internal/notify"
	"github.com/vargaseous/sec-mcptest/testutil"
)

// scriptedChecker replays a fixed sequence of check results.
type scriptedChecker struct {
	mu      sync.Mutex
	results []result
	closed  bool
}

type result struct {
	changed bool
	err     error
}

func (s *scriptedChecker) Check(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return false, nil
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.changed, r.err
}

func (s *scriptedChecker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestStepRefreshesOnlyOnChange(t *testing.T) {
	checker := &scriptedChecker{results: []result{
		{changed: false},
		{changed: true},
		{err: stderrors.New("store unreachable")},
		{changed: true},
	}}
	var refreshes int
	loop := New(checker, time.Second, func(context.Context) error {
		refreshes++
		return nil
	}, testutil.QuietLogger())

	ctx := context.Background()
	assert.False(t, loop.Step(ctx))
	assert.True(t, loop.Step(ctx))
	assert.False(t, loop.Step(ctx), "a failed check counts as no event")
	assert.True(t, loop.Step(ctx))
	assert.Equal(t, 2, refreshes)
}

func TestStepSurvivesRefreshFailure(t *testing.T) {
	checker := &scriptedChecker{results: []result{{changed: true}, {changed: true}}}
	var calls int
	loop := New(checker, time.Second, func(context.Context) error {
		calls++
		return stderrors.New("render failed")
	}, testutil.QuietLogger())

	assert.True(t, loop.Step(context.Background()))
	assert.True(t, loop.Step(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestRunStopsOnCancelAndReleasesChecker(t *testing.T) {
	checker := &scriptedChecker{}
	loop := New(checker, time.Millisecond, nil, testutil.QuietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}

	checker.mu.Lock()
	defer checker.mu.Unlock()
	assert.True(t, checker.closed)
}

func TestRunWithBridgeRefetchesAfterPublish(t *testing.T) {
	mem := store.NewMemory()
	defer mem.Close()

	bridge := notify.NewBridge(mem, "app_state_changes", 5*time.Millisecond, testutil.QuietLogger())

	var refreshes atomic.Int32
	loop := New(bridge, 5*time.Millisecond, func(context.Context) error {
		refreshes.Add(1)
		return nil
	}, testutil.QuietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	require.Eventually(t, bridge.Connected, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, mem.Publish(context.Background(), "app_state_changes", []byte("state_changed")))

	assert.Eventually(t, func() bool { return refreshes.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
}
