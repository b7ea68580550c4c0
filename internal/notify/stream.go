package notify

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vargaseous/sec-mcptest/errors"
	"github.com/vargaseous/sec-mcptest/internal/daemon/store"
	"github.com/vargaseous/sec-mcptest/logging"
)

// OpenFunc opens a change stream that lives until ctx is cancelled.
// client.Client.StreamChanges has this shape.
type OpenFunc func(ctx context.Context) (<-chan struct{}, error)

var errStreamClosed = stderrors.New("change stream closed")

// StreamChecker adapts a push stream, such as the State API's event
// stream, to the same bounded-wait Check as Bridge. Consumers use it when
// they cannot reach the store directly.
type StreamChecker struct {
	open   OpenFunc
	wait   time.Duration
	label  string
	logger *logrus.Entry

	mu     sync.Mutex
	events <-chan struct{}
	cancel context.CancelFunc
	closed bool
}

// NewStreamChecker creates a StreamChecker. label names the stream in
// errors and logs.
func NewStreamChecker(open OpenFunc, label string, wait time.Duration, logger *logrus.Entry) *StreamChecker {
	if logger == nil {
		logger = logging.NewLogger("notify")
	}
	return &StreamChecker{open: open, wait: wait, label: label, logger: logger}
}

// Check waits at most the configured wait for an event. Events that
// queued up since the last check are coalesced into one true.
func (s *StreamChecker) Check(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, store.ErrClosed
	}

	if s.events == nil {
		streamCtx, cancel := context.WithCancel(context.Background())
		events, err := s.open(streamCtx)
		if err != nil {
			cancel()
			return false, errors.NotificationFailed(s.label, err)
		}
		s.logger.WithField("stream", s.label).Debug("Change stream opened")
		s.events, s.cancel = events, cancel
	}

	timer := time.NewTimer(s.wait)
	defer timer.Stop()

	select {
	case _, ok := <-s.events:
		if !ok {
			s.drop()
			return false, errors.NotificationFailed(s.label, errStreamClosed)
		}
		s.drain()
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (s *StreamChecker) drain() {
	for {
		select {
		case _, ok := <-s.events:
			if !ok {
				// Reported on the next check, after this change is handled.
				return
			}
		default:
			return
		}
	}
}

// Close stops the stream. Checks after Close fail.
func (s *StreamChecker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.drop()
	return nil
}

func (s *StreamChecker) drop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.events, s.cancel = nil, nil
}
