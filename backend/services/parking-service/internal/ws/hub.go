package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"smartparking/backend/services/parking-service/internal/models"
)

// LayoutMessage is the payload pushed to subscribers.
type LayoutMessage struct {
	Type  string             `json:"type"`
	Slots []models.SlotState `json:"slots"`
}

// Hub tracks subscribers and fans layout updates out to them.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	updates     chan []models.SlotState
	logger      *zap.Logger
}

// NewHub builds an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		updates:     make(chan []models.SlotState, 1),
		logger:      logger,
	}
}

// Add registers new connection.
func (h *Hub) Add(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn.ID()] = conn
}

// Remove removes connection.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, id)
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// CloseAll disconnects every subscriber.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.connections))
	for _, conn := range h.connections {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}
}

// Publish queues layout for broadcast without blocking. Only the newest pending layout is kept.
func (h *Hub) Publish(layout []models.SlotState) {
	for {
		select {
		case h.updates <- layout:
			return
		default:
		}
		select {
		case <-h.updates:
		default:
		}
	}
}

// Start broadcasts queued layouts until ctx is done.
func (h *Hub) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case layout := <-h.updates:
			h.broadcast(layout)
		}
	}
}

func (h *Hub) broadcast(layout []models.SlotState) {
	msg, err := EncodeLayout(layout)
	if err != nil {
		h.logger.Error("failed to encode layout", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.connections {
		conn.Send(msg)
	}
}

// EncodeLayout renders the wire form of a layout update.
func EncodeLayout(layout []models.SlotState) ([]byte, error) {
	if layout == nil {
		layout = []models.SlotState{}
	}
	return json.Marshal(LayoutMessage{Type: "layout", Slots: layout})
}
