// Package server provides the HTTP surface of the view-state service.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/vargaseous/sec-mcptest/errors"
	"github.com/vargaseous/sec-mcptest/internal/daemon/store"
	"github.com/vargaseous/sec-mcptest/state"
)

// maxBodyBytes caps request bodies; a state document is tiny.
const maxBodyBytes = 1 << 20

// streamKeepAlive is how long an idle event stream waits before sending a
// keep-alive.
var streamKeepAlive = 15 * time.Second

// Server serves the state API over HTTP/1.1 and cleartext HTTP/2.
type Server struct {
	logger   *logrus.Entry
	mu       sync.Mutex
	server   *http.Server
	service  *state.Service
	backend  store.Backend
	upgrader websocket.Upgrader

	// streams is cancelled by Shutdown so open event streams end instead
	// of holding the grace period.
	streams     context.Context
	stopStreams context.CancelFunc
}

// New creates a new Server. backend must be the store the service writes
// to; the event streams subscribe to it directly.
func New(service *state.Service, backend store.Backend, logger *logrus.Entry) *Server {
	streams, stopStreams := context.WithCancel(context.Background())
	return &Server{
		logger:      logger,
		service:     service,
		backend:     backend,
		streams:     streams,
		stopStreams: stopStreams,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/filters", s.handleFilters)
	mux.HandleFunc("/map", s.handleMap)
	mux.HandleFunc("/fclasses", s.handleFacilityClasses)
	mux.HandleFunc("/health", s.handleHealth)

	// Push channels for consumers that prefer not to poll
	mux.HandleFunc("/events", s.handleStreamEvents)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return s.withRequestID(s.withTracing(s.withAccessLog(mux)))
}

// ListenAndServe listens on addr and serves until Shutdown.
func (s *Server) ListenAndServe(addr string, readHeaderTimeout time.Duration) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(listener, readHeaderTimeout)
}

// Serve serves on listener. It blocks until the server stops or fails.
func (s *Server) Serve(listener net.Listener, readHeaderTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.WithField("addr", listener.Addr().String()).Info("State API listening")
	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.stopStreams()

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// handleState serves GET (read), POST (replace) and DELETE (reset).
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		doc, err := s.service.Read(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)

	case http.MethodPost:
		body, ok := s.readBody(w, r)
		if !ok {
			return
		}
		doc, err := s.service.ReplaceJSON(r.Context(), body)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, replaceResponse{Status: "success", State: doc})

	case http.MethodDelete:
		if err := s.service.Reset(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resetResponse{Status: "success", Message: "State reset to defaults"})

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	classes, err := state.DecodeFilters(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	classes, err = s.service.SetFilters(r.Context(), classes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, filtersResponse{Status: "success", SelectedFClasses: classes})
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	view, err := state.DecodeMapView(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err = s.service.SetMapView(r.Context(), view)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapResponse{Status: "success", Map: view})
}

func (s *Server) handleFacilityClasses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	classes, err := s.service.ListFacilityClasses(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fclassesResponse{FClasses: classes})
}

// handleHealth always answers 200; the body carries the verdict.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	resp := healthResponse{Status: "healthy", Store: "connected"}
	if !s.service.Health(r.Context()).Healthy {
		resp = healthResponse{Status: "unhealthy", Store: "disconnected"}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStreamEvents provides Server-Sent Events (SSE) for change events.
// Every event means "re-read /state"; events carry no document.
func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	// Ensure the connection supports flushing
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := s.streamContext(r)
	defer cancel()

	sub, err := s.backend.Subscribe(ctx, s.service.Channel())
	if err != nil {
		s.writeError(w, r, errors.StoreUnavailable("subscribe", err))
		return
	}
	defer sub.Close()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Send initial comment to confirm the subscription is live
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	logger := s.requestLogger(r)
	logger.Debug("SSE client connected")

	for {
		msg, ok, err := sub.Next(ctx, streamKeepAlive)
		if err != nil {
			switch {
			case ctx.Err() == nil:
				logger.WithError(err).Warn("Change subscription lost, closing stream")
			case s.streams.Err() != nil:
				logger.Debug("Server shutting down, closing SSE stream")
			default:
				logger.Debug("SSE client disconnected")
			}
			return
		}
		if !ok {
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()
			continue
		}
		// SSE format: "event: name\ndata: payload\n\n"
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", state.ChangedPayload, msg.Payload)
		flusher.Flush()
	}
}

// handleWebSocket relays change events as text frames.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.streamContext(r)
	defer cancel()

	sub, err := s.backend.Subscribe(ctx, s.service.Channel())
	if err != nil {
		s.writeError(w, r, errors.StoreUnavailable("subscribe", err))
		return
	}
	defer sub.Close()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		s.requestLogger(r).WithError(err).Debug("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// The reader only exists to notice the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		msg, ok, err := sub.Next(ctx, streamKeepAlive)
		if err != nil {
			if s.streams.Err() != nil {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(time.Second))
			}
			return
		}
		deadline := time.Now().Add(5 * time.Second)
		if !ok {
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
			continue
		}
		_ = conn.SetWriteDeadline(deadline)
		if err := conn.WriteMessage(websocket.TextMessage, msg.Payload); err != nil {
			return
		}
	}
}

// streamContext ends when the request does or when Shutdown begins.
func (s *Server) streamContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(s.streams, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, errors.Validation("body", err.Error()))
		return nil, false
	}
	return body, true
}

// writeError maps err to its status code and a {detail, code} body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}

	entry := s.requestLogger(r).WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	detail := err.Error()
	if se, ok := errors.As(err); ok {
		detail = se.Message
	}
	writeJSON(w, status, errorResponse{Detail: detail, Code: string(code)})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Detail: "Method Not Allowed", Code: "METHOD_NOT_ALLOWED"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
