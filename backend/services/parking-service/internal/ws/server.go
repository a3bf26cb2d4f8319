package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"smartparking/backend/services/parking-service/internal/models"
)

// SnapshotFunc returns the layout a new subscriber starts from.
type SnapshotFunc func() []models.SlotState

// Server upgrades HTTP connections to WebSockets for the layout feed.
type Server struct {
	hub          *Hub
	snapshot     SnapshotFunc
	logger       *zap.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewServer builds ws server.
func NewServer(hub *Hub, snapshot SnapshotFunc, writeTimeout, pingInterval time.Duration, logger *zap.Logger) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Server{
		hub:          hub,
		snapshot:     snapshot,
		logger:       logger,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is HTTP handler for /ws/layout endpoint.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := NewConnection(uuid.NewString(), conn, s.writeTimeout, s.pingInterval, s.logger, func(id string) {
		s.hub.Remove(id)
		cancel()
	})
	s.hub.Add(connection)

	if msg, err := EncodeLayout(s.snapshot()); err == nil {
		connection.Send(msg)
	}

	go connection.Start(ctx)
	s.logger.Info("layout subscriber connected", zap.String("conn_id", connection.ID()), zap.String("remote", r.RemoteAddr))
}
