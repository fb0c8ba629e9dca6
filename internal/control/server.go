package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tessera/internal/logging"
	"tessera/internal/progress"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     allowedOrigin,
}

// allowedOrigin accepts requests without an Origin header (native clients),
// file:// pages and pages served from a loopback host. Anything else is a
// browser page from elsewhere.
func allowedOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "file":
		return true
	case "http", "https":
	default:
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// guardOrigin rejects cross-origin browser requests before they reach a handler.
func guardOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowedOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Server serves the control endpoints.
type Server struct {
	bind   string
	hub    *progress.Hub
	ctrl   Controller
	logger *slog.Logger

	listener net.Listener
	server   *http.Server

	// base parents every request context; Stop cancels it so open
	// websocket streams end with the server.
	base     context.Context
	cancel   context.CancelFunc
	streamMu sync.Mutex
	streams  sync.WaitGroup
}

// NewServer returns nil when bind is empty.
func NewServer(bind string, hub *progress.Hub, ctrl Controller, logger *slog.Logger) *Server {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil
	}
	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		bind:   bind,
		hub:    hub,
		ctrl:   ctrl,
		logger: logging.NewComponentLogger(logger, "control"),
		base:   base,
		cancel: cancel,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/activate", s.handleActivate)
	mux.HandleFunc("/state", s.handleState)
	s.server = &http.Server{
		Handler:           guardOrigin(mux),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	return s
}

// Start listens and serves until ctx ends or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("control listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("control server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr is the bound address, resolved after Start.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

// EventsURL is the websocket URL handed to the frontend.
func (s *Server) EventsURL() string {
	if s == nil {
		return ""
	}
	return "ws://" + s.Addr() + "/events"
}

// Stop shuts the server down and waits for open event streams to close.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	s.streamMu.Lock()
	s.cancel()
	s.streamMu.Unlock()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.streams.Wait()
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		s.writeError(w, http.StatusNotFound, "progress stream disabled")
		return
	}
	since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)

	if !s.trackStream() {
		s.writeError(w, http.StatusServiceUnavailable, "launcher stopping")
		return
	}
	defer s.streams.Done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	// Hijacked connections outlive Shutdown, so the stream also watches base.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.base, cancel)
	defer stop()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		events, next, err := s.hub.Fetch(ctx, since, true)
		if err != nil {
			if s.base.Err() != nil {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "launcher stopping"),
					time.Now().Add(writeWait))
			}
			return
		}
		for _, evt := range events {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				s.logger.Debug("websocket write failed", logging.Error(err))
				return
			}
		}
		since = next
	}
}

// trackStream registers an event stream unless Stop has begun.
func (s *Server) trackStream() bool {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	if s.base.Err() != nil {
		return false
	}
	s.streams.Add(1)
	return true
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.ctrl == nil {
		s.writeError(w, http.StatusServiceUnavailable, "launcher not ready")
		return
	}
	if err := s.ctrl.Activate(r.Context()); err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, ActivateResponse{Activated: true, State: s.ctrl.Status().State})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.ctrl == nil {
		s.writeError(w, http.StatusServiceUnavailable, "launcher not ready")
		return
	}
	s.writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
