// Package feed publishes accepted plate reads to websocket clients and serves
// pipeline counters over HTTP.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clalos/plate-logger/internal/readlog"
)

const (
	broadcastBuffer = 16

	// defaultWriteWait bounds a single write to one client.
	defaultWriteWait = 10 * time.Second
)

// ErrHubBusy is returned by Observe when the broadcast queue is full.
var ErrHubBusy = errors.New("feed hub broadcast queue is full")

// ReadMessage is the JSON payload sent for every accepted read.
type ReadMessage struct {
	Plate     string `json:"plate"`
	Timestamp string `json:"timestamp"`
}

func newReadMessage(read readlog.PlateRead) ReadMessage {
	return ReadMessage{
		Plate:     read.Text,
		Timestamp: read.Timestamp.Format(readlog.TimestampLayout),
	}
}

// Hub fans accepted reads out to connected websocket clients.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex
	writeWait  time.Duration
	logger     *slog.Logger
}

// NewHub creates a Hub. Call Run to start delivering messages.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		writeWait:  defaultWriteWait,
		logger:     logger,
	}
}

// Run delivers messages until ctx is cancelled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("Feed client connected", "clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("Feed client disconnected", "clients", total)

		case message := <-h.broadcast:
			h.send(message)
		}
	}
}

// send writes message to every client. Only Run mutates the client map, so
// the writes happen without the lock; a client that cannot keep up within
// writeWait is dropped.
func (h *Hub) send(message []byte) {
	var dropped []*websocket.Conn
	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Warn("Failed to send plate read to feed client", "error", err)
			dropped = append(dropped, client)
		}
	}
	if len(dropped) == 0 {
		return
	}

	h.mu.Lock()
	for _, client := range dropped {
		delete(h.clients, client)
		client.Close()
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("Dropped unresponsive feed clients", "dropped", len(dropped), "clients", total)
}

// Observe queues read for broadcast. It never blocks the pipeline.
func (h *Hub) Observe(read readlog.PlateRead) error {
	message, err := json.Marshal(newReadMessage(read))
	if err != nil {
		return fmt.Errorf("failed to encode plate read: %w", err)
	}

	select {
	case h.broadcast <- message:
		return nil
	default:
		return ErrHubBusy
	}
}

// Register adds a client. It blocks until Run accepts it; once Run has
// returned the client is closed instead.
func (h *Hub) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes and closes a client.
func (h *Hub) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
