// Package notify turns the store's change channel into a cheap "did
// anything change?" check that survives store restarts.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vargaseous/sec-mcptest/errors"
	"github.com/vargaseous/sec-mcptest/internal/daemon/store"
	"github.com/vargaseous/sec-mcptest/logging"
)

// Bridge holds one subscription on the change channel for the lifetime of
// a consumer session. The subscription is opened lazily and replaced after
// any failure.
type Bridge struct {
	backend store.Backend
	channel string
	wait    time.Duration
	logger  *logrus.Entry

	mu     sync.Mutex
	sub    store.Subscription
	closed bool
}

// NewBridge creates a Bridge whose checks wait at most wait for an event.
func NewBridge(backend store.Backend, channel string, wait time.Duration, logger *logrus.Entry) *Bridge {
	if logger == nil {
		logger = logging.NewLogger("notify")
	}
	return &Bridge{
		backend: backend,
		channel: channel,
		wait:    wait,
		logger:  logger,
	}
}

// Check performs one bounded-wait receive. It returns true when an event
// was waiting. A failed check returns false together with the cause, so
// callers can log it and keep going; the broken subscription has already
// been dropped and the next Check opens a new one.
func (b *Bridge) Check(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, store.ErrClosed
	}

	if b.sub == nil {
		subCtx, cancel := context.WithTimeout(ctx, b.connectTimeout())
		sub, err := b.backend.Subscribe(subCtx, b.channel)
		cancel()
		if err != nil {
			return false, errors.NotificationFailed(b.channel, err)
		}
		b.logger.WithField("channel", b.channel).Debug("Subscribed to change events")
		b.sub = sub
	}

	_, ok, err := b.sub.Next(ctx, b.wait)
	if err != nil {
		b.drop()
		return false, errors.NotificationFailed(b.channel, err)
	}
	return ok, nil
}

// Connected reports whether a subscription is currently open.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sub != nil
}

// Close releases the subscription. Checks after Close fail.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.drop()
	return nil
}

func (b *Bridge) drop() {
	if b.sub == nil {
		return
	}
	if err := b.sub.Close(); err != nil {
		b.logger.WithError(err).Debug("Closing subscription failed")
	}
	b.sub = nil
}

// connectTimeout bounds a (re)subscribe, which needs a network round trip
// on remote stores, to a few times the check wait.
func (b *Bridge) connectTimeout() time.Duration {
	if t := 50 * b.wait; t > time.Second {
		return t
	}
	return time.Second
}
