package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vargaseous/sec-mcptest/cli"
	"github.com/vargaseous/sec-mcptest/config"
	"github.com/vargaseous/sec-mcptest/internal/dataset"
	"github.com/vargaseous/sec-mcptest/internal/daemon/store"
	"github.com/vargaseous/sec-mcptest/internal/daemon/store/redisstore"
	"github.com/vargaseous/sec-mcptest/internal/daemon/store/sqlitestore"
	"github.com/vargaseous/sec-mcptest/logging"
	"github.com/vargaseous/sec-mcptest/pkg/client"
	"github.com/vargaseous/sec-mcptest/pkg/profiling"
	"github.com/vargaseous/sec-mcptest/state"
)

// openBackend builds the store selected by cfg.Store.Backend.
func openBackend(cfg *config.Config) (store.Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		return redisstore.New(redisstore.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		}), nil
	case config.BackendSQLite:
		return sqlitestore.Open(cfg.Store.SQLite.Path)
	case config.BackendMemory:
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func newService(cfg *config.Config, backend store.Backend, logger *logrus.Entry) *state.Service {
	return state.NewService(backend, state.Options{
		Key:       cfg.Store.Key,
		Channel:   cfg.Store.Channel,
		OpTimeout: cfg.Store.OpTimeout.Std(),
		Classes:   dataset.New(cfg.Dataset.Path, cfg.Dataset.ClassField),
		Logger:    logger,
	})
}

// session is a configured client plus whatever it opened.
type session struct {
	cfg     *config.Config
	client  client.Client
	backend store.Backend // nil unless the client runs in-process
}

func (s *session) Close() error {
	err := s.client.Close()
	if s.backend != nil {
		if cerr := s.backend.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// openSession loads the configuration and connects to the State API. When
// the API is not running, the store is used in-process instead.
func openSession(cmd *cobra.Command) (*session, error) {
	defer profiling.Track("open_session")()

	cfg, _, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger("client")
	s := &session{cfg: cfg}

	s.client, err = client.New(cfg.Client.BaseURL, cfg.Client.Timeout.Std(), func() (client.Client, error) {
		if cfg.Store.Backend == config.BackendMemory {
			logger.Warn("State API not running and the memory store is private to this process")
		}
		logger.WithField("backend", cfg.Store.Backend).Debug("State API not running, using the store directly")

		backend, err := openBackend(cfg)
		if err != nil {
			return nil, err
		}
		s.backend = backend
		return client.NewLocalClient(newService(cfg, backend, logging.NewLogger("state")), backend), nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// withSession runs fn against an open session and closes it afterwards.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	defer profiling.Track(cmd.CommandPath())()
	return fn(cmd.Context(), s)
}
