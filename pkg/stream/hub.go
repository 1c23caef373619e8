// Package stream broadcasts flock snapshots to websocket clients as JSON text frames.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/simulation"
	golog "github.com/tochemey/goakt/v3/log"
)

const (
	sendBuffer   = 8
	writeTimeout = 5 * time.Second
)

// Hub fans snapshots out to every connected websocket client.
// Slow clients lose frames instead of slowing down the simulation.
type Hub struct {
	logger golog.Logger

	mu      sync.RWMutex
	clients map[uuid.UUID]chan []byte
	closed  bool // set once Run has returned, later clients are turned away
}

func NewHub(logger golog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[uuid.UUID]chan []byte),
	}
}

// ServeHTTP upgrades the request and streams frames until the client leaves.
// Messages sent by the client are discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // viewers are served from other origins
	})
	if err != nil {
		h.logger.Warnf("failed to accept websocket: %v", err)
		return
	}
	defer conn.CloseNow()

	id, send, ok := h.register()
	if !ok {
		conn.Close(websocket.StatusGoingAway, "simulation stopped")
		return
	}
	defer h.unregister(id)
	h.logger.Infof("stream client %s connected from %s", id, r.RemoteAddr)

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			h.logger.Infof("stream client %s disconnected", id)
			return
		case frame, ok := <-send:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "simulation stopped")
				return
			}
			if err := write(ctx, conn, frame); err != nil {
				if isClosed(err) {
					h.logger.Debugf("stream client %s closed during write: %v", id, err)
				} else {
					h.logger.Warnf("stream client %s write failed: %v", id, err)
				}
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, frame []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, frame)
}

func (h *Hub) register() (uuid.UUID, chan []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return uuid.Nil, nil, false
	}
	id := uuid.New()
	send := make(chan []byte, sendBuffer)
	h.clients[id] = send
	return id, send, true
}

func (h *Hub) unregister(id uuid.UUID) {
	h.mu.Lock()
	delete(h.clients, id)
	h.mu.Unlock()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish encodes snap once and queues it for every client.
// It returns how many clients got the frame, the others were busy.
func (h *Hub) Publish(snap *simulation.Snapshot) (int, error) {
	frame, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for _, send := range h.clients {
		select {
		case send <- frame:
			sent++
		default:
			// client busy, skip frame
		}
	}
	return sent, nil
}

// Run publishes every snapshot received on snapshots until ctx is done or the channel is
// closed. Connected clients, and any client connecting afterwards, are then told to go away.
func (h *Hub) Run(ctx context.Context, snapshots <-chan *simulation.Snapshot) error {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			if _, err := h.Publish(snap); err != nil {
				return err
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, send := range h.clients {
		close(send)
		delete(h.clients, id)
	}
}

// isClosed reports whether err only means the stream ended normally.
func isClosed(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
