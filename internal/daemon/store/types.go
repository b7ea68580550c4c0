// Package store defines the contract of the backing key/value and pub/sub
// store that holds the shared view state, plus an in-process implementation.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("store: key not found")
	// ErrClosed is returned by operations on a closed store or subscription.
	ErrClosed = errors.New("store: closed")
)

// Backend is a byte-addressable key/value store with a change-notification
// bus. Every single Get/Set/Delete is atomic; nothing spans several calls.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Publish delivers payload to every subscription currently open on
	// channel. Subscriptions opened later never see it.
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	Ping(ctx context.Context) error
	Close() error
}

// Subscription is one live listener on a channel.
type Subscription interface {
	// Next waits at most wait for the next message. It returns ok=false and
	// a nil error when nothing arrived in time. Any error means the
	// subscription is no longer usable and must be replaced.
	Next(ctx context.Context, wait time.Duration) (msg Message, ok bool, err error)
	Close() error
}

// Message is a payload received on a channel.
type Message struct {
	Channel string
	Payload []byte
}
