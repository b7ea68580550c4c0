// Package redisstore implements the store backend on a Redis server using
// plain GET/SET/DEL for the state and PUBLISH/SUBSCRIBE for change events.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vargaseous/sec-mcptest/internal/daemon/store"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Store is a Redis-backed store.Backend.
type Store struct {
	client *redis.Client
}

// New creates a Store. No connection is made until the first command.
func New(opts Options) *Store {
	return NewFromClient(redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}))
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Get returns the value of key or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, mapErr(err)
	}
	return value, nil
}

// Set writes value under key without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return mapErr(s.client.Set(ctx, key, value, 0).Err())
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return mapErr(s.client.Del(ctx, key).Err())
}

// Publish sends payload to the subscribers of channel.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	return mapErr(s.client.Publish(ctx, channel, payload).Err())
}

// Subscribe opens a subscription and waits for the server to confirm it,
// so every event published after Subscribe returns is delivered.
func (s *Store) Subscribe(ctx context.Context, channel string) (store.Subscription, error) {
	pubsub := s.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, mapErr(err))
	}
	return &subscription{pubsub: pubsub}, nil
}

// Ping checks that the server answers.
func (s *Store) Ping(ctx context.Context) error {
	return mapErr(s.client.Ping(ctx).Err())
}

// Close closes the client and its connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

type subscription struct {
	pubsub *redis.PubSub
}

func (s *subscription) Next(ctx context.Context, wait time.Duration) (store.Message, bool, error) {
	deadline := time.Now().Add(wait)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return store.Message{}, false, nil
		}

		received, err := s.pubsub.ReceiveTimeout(ctx, remaining)
		if err != nil {
			if isTimeout(err) {
				return store.Message{}, false, nil
			}
			return store.Message{}, false, mapErr(err)
		}

		switch m := received.(type) {
		case *redis.Message:
			return store.Message{Channel: m.Channel, Payload: []byte(m.Payload)}, true, nil
		default:
			// Subscription confirmations and pongs carry no event.
		}
	}
}

func (s *subscription) Close() error {
	return s.pubsub.Close()
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return store.ErrNotFound
	case errors.Is(err, redis.ErrClosed):
		return store.ErrClosed
	default:
		return err
	}
}

// Ensure Store implements store.Backend interface.
var _ store.Backend = (*Store)(nil)
