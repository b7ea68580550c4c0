package state

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vargaseous/sec-mcptest/errors"
	"github.com/vargaseous/sec-mcptest/internal/daemon/store"
	"github.com/vargaseous/sec-mcptest/logging"
)

const tracerName = "github.com/vargaseous/sec-mcptest/state"

// ClassSource lists the reference set of valid facility classes.
type ClassSource interface {
	Classes() ([]string, error)
}

// Options configures a Service. Zero values fall back to the defaults of
// the config package.
type Options struct {
	Key       string
	Channel   string
	OpTimeout time.Duration
	Classes   ClassSource
	Logger    *logrus.Entry
}

// Health reports whether the backing store answered a ping.
type Health struct {
	Healthy bool
	Err     error
}

// Service is the sole reader and writer of the shared document and the
// sole publisher of change events. It holds no state between calls beyond
// the store handle, so one instance serves every request concurrently.
//
// SetFilters and SetMapView read, modify and write without a transaction:
// concurrent callers race and the last write wins.
type Service struct {
	backend   store.Backend
	key       string
	channel   string
	opTimeout time.Duration
	classes   ClassSource
	logger    *logrus.Entry
	tracer    trace.Tracer
}

// NewService creates a Service on top of backend.
func NewService(backend store.Backend, opts Options) *Service {
	if opts.Key == "" {
		opts.Key = "app_state"
	}
	if opts.Channel == "" {
		opts.Channel = "app_state_changes"
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger("state")
	}
	return &Service{
		backend:   backend,
		key:       opts.Key,
		channel:   opts.Channel,
		opTimeout: opts.OpTimeout,
		classes:   opts.Classes,
		logger:    opts.Logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// Channel returns the name of the change-event channel.
func (s *Service) Channel() string {
	return s.channel
}

// Read returns the persisted document, or Default when none exists.
func (s *Service) Read(ctx context.Context) (doc Document, err error) {
	ctx, span := s.start(ctx, "state.Read")
	defer func() { endSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	return s.read(ctx)
}

func (s *Service) read(ctx context.Context) (Document, error) {
	raw, err := s.backend.Get(ctx, s.key)
	if stderrors.Is(err, store.ErrNotFound) {
		return Default(), nil
	}
	if err != nil {
		return Document{}, errors.StoreUnavailable("read", err)
	}

	doc, err := unmarshalDocument(raw)
	if err != nil {
		return Document{}, errors.Wrap(err, errors.ErrCodeInternal, "stored state document is corrupt").
			WithDetail("key", s.key)
	}
	return doc, nil
}

// Replace validates doc and persists it verbatim, without merging with the
// previous value.
func (s *Service) Replace(ctx context.Context, doc Document) (_ Document, err error) {
	ctx, span := s.start(ctx, "state.Replace")
	defer func() { endSpan(span, err) }()

	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	doc = doc.normalized()

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.write(ctx, "replace", doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// ReplaceJSON decodes and validates raw before replacing the document.
// Nothing is written when validation fails.
func (s *Service) ReplaceJSON(ctx context.Context, raw []byte) (Document, error) {
	doc, err := DecodeDocument(raw)
	if err != nil {
		return Document{}, err
	}
	return s.Replace(ctx, doc)
}

// SetFilters replaces only the selected facility classes.
func (s *Service) SetFilters(ctx context.Context, classes []string) (_ []string, err error) {
	ctx, span := s.start(ctx, "state.SetFilters", attribute.StringSlice("fclasses", classes))
	defer func() { endSpan(span, err) }()

	if classes == nil {
		classes = []string{}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	doc.SelectedFClasses = classes
	if err := s.write(ctx, "set_filters", doc); err != nil {
		return nil, err
	}
	return classes, nil
}

// SetMapView replaces only the map center and zoom level.
func (s *Service) SetMapView(ctx context.Context, view MapView) (_ MapView, err error) {
	ctx, span := s.start(ctx, "state.SetMapView", attribute.Int("zoom", view.Zoom))
	defer func() { endSpan(span, err) }()

	if err := view.Center.validate("center"); err != nil {
		return MapView{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	doc, err := s.read(ctx)
	if err != nil {
		return MapView{}, err
	}
	center, zoom := view.Center, view.Zoom
	doc.MapCenter = &center
	doc.ZoomLevel = &zoom
	if err := s.write(ctx, "set_map_view", doc); err != nil {
		return MapView{}, err
	}
	return view, nil
}

// Reset deletes the persisted document. Resetting an absent document is
// not an error.
func (s *Service) Reset(ctx context.Context) (err error) {
	ctx, span := s.start(ctx, "state.Reset")
	defer func() { endSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.backend.Delete(ctx, s.key); err != nil {
		return errors.StoreUnavailable("reset", err)
	}
	s.publish(ctx)
	return nil
}

// Health pings the backing store. It never fails; the result says whether
// the store is reachable.
func (s *Service) Health(ctx context.Context) Health {
	ctx, span := s.start(ctx, "state.Health")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.backend.Ping(ctx); err != nil {
		s.logger.WithError(err).Debug("Backing store ping failed")
		span.SetAttributes(attribute.Bool("healthy", false))
		return Health{Healthy: false, Err: err}
	}
	span.SetAttributes(attribute.Bool("healthy", true))
	return Health{Healthy: true}
}

// ListFacilityClasses returns the reference set of valid classes from the
// dataset, not from the shared document.
func (s *Service) ListFacilityClasses(ctx context.Context) (_ []string, err error) {
	_, span := s.start(ctx, "state.ListFacilityClasses")
	defer func() { endSpan(span, err) }()

	if s.classes == nil {
		return nil, errors.New(errors.ErrCodeDataUnavailable, "no reference dataset configured")
	}
	return s.classes.Classes()
}

// write persists doc and, once the store acknowledged it, announces the
// change.
func (s *Service) write(ctx context.Context, op string, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode state document")
	}
	if err := s.backend.Set(ctx, s.key, raw); err != nil {
		return errors.StoreUnavailable(op, err)
	}
	s.publish(ctx)
	return nil
}

// publish sends a change event. Failure is logged and dropped: the write
// already succeeded and consumers catch up on their next read.
func (s *Service) publish(ctx context.Context) {
	if err := s.backend.Publish(ctx, s.channel, []byte(ChangedPayload)); err != nil {
		s.logger.WithError(errors.NotificationFailed(s.channel, err)).Warn("Change event dropped")
		trace.SpanFromContext(ctx).AddEvent("change event dropped")
	}
}

func (s *Service) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.code", string(errors.GetCode(err))))
	}
	span.End()
}
