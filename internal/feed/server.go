package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/clalos/plate-logger/internal/pipeline"
	"github.com/clalos/plate-logger/internal/readlog"
)

const (
	defaultReadsLimit = 20
	maxReadsLimit     = 500
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RecentReads returns up to limit stored reads, newest first.
type RecentReads func(limit int) ([]readlog.PlateRead, error)

// Server exposes the live feed and pipeline counters.
//
//	GET /ws             websocket stream of ReadMessage
//	GET /stats          pipeline.MetricsSnapshot as JSON
//	GET /reads?limit=N  stored reads as []ReadMessage (only with a database)
//	GET /healthz        liveness check
type Server struct {
	hub    *Hub
	stats  func() pipeline.MetricsSnapshot
	reads  RecentReads
	srv    *http.Server
	logger *slog.Logger
}

// NewServer wires the routes for addr. stats is called for every /stats
// request and must be safe for concurrent use. reads may be nil, in which
// case /reads is not served.
func NewServer(addr string, hub *Hub, stats func() pipeline.MetricsSnapshot, reads RecentReads, logger *slog.Logger) *Server {
	s := &Server{hub: hub, stats: stats, reads: reads, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebsocket).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	if reads != nil {
		r.HandleFunc("/reads", s.handleReads).Methods(http.MethodGet)
	}
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)

	s.srv = &http.Server{
		Handler:      r,
		Addr:         addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Listen binds the configured address. Bind errors surface here instead of
// from the background Serve call.
func (s *Server) Listen() (net.Listener, error) {
	return net.Listen("tcp", s.srv.Addr)
}

// Serve accepts connections on ln until Shutdown. It returns nil after a
// clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Starting live feed server", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(512)

	s.hub.Register(conn)

	// The feed is one-way; reading only detects the client going away.
	go func() {
		defer s.hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.stats()); err != nil {
		s.logger.Warn("Failed to write stats response", "error", err)
	}
}

func (s *Server) handleReads(w http.ResponseWriter, r *http.Request) {
	limit := defaultReadsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxReadsLimit {
			http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = n
	}

	reads, err := s.reads(limit)
	if err != nil {
		s.logger.Warn("Failed to load recent reads", "error", err)
		http.Error(w, "failed to load reads", http.StatusInternalServerError)
		return
	}

	messages := make([]ReadMessage, 0, len(reads))
	for _, read := range reads {
		messages = append(messages, newReadMessage(read))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(messages); err != nil {
		s.logger.Warn("Failed to write reads response", "error", err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
