// Package poll runs a consumer's cooperative refresh loop: check the change
// channel without blocking, re-fetch only when something changed.
package poll

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vargaseous/sec-mcptest/logging"
)

// Checker reports whether a change event is waiting. notify.Bridge is the
// production implementation.
type Checker interface {
	Check(ctx context.Context) (bool, error)
	Close() error
}

// ChangeFunc is called after a change was observed, typically to re-read
// the document and re-render.
type ChangeFunc func(ctx context.Context) error

// Loop drives a Checker on a fixed interval.
type Loop struct {
	checker  Checker
	interval time.Duration
	onChange ChangeFunc
	logger   *logrus.Entry
}

// New creates a Loop.
func New(checker Checker, interval time.Duration, onChange ChangeFunc, logger *logrus.Entry) *Loop {
	if logger == nil {
		logger = logging.NewLogger("poll")
	}
	return &Loop{
		checker:  checker,
		interval: interval,
		onChange: onChange,
		logger:   logger,
	}
}

// Interval returns the time between steps.
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// Step performs a single check and, when a change was waiting, calls the
// change handler. Failures of either are logged and never returned; Step
// reports whether a change was observed.
func (l *Loop) Step(ctx context.Context) bool {
	changed, err := l.checker.Check(ctx)
	if err != nil {
		l.logger.WithError(err).Warn("Change check failed, will retry")
		return false
	}
	if !changed {
		return false
	}

	l.logger.Debug("Change observed, refreshing")
	if l.onChange != nil {
		if err := l.onChange(ctx); err != nil {
			l.logger.WithError(err).Warn("Refresh after change failed")
		}
	}
	return true
}

// Run steps until ctx is cancelled, then releases the checker.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		if err := l.checker.Close(); err != nil {
			l.logger.WithError(err).Debug("Closing change checker failed")
		}
	}()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		l.Step(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
