package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"robodash/internal/logger"
	"robodash/internal/models"
)

// writeTimeout bounds a single write to a client socket so one stalled
// client cannot wedge the hub loop.
const writeTimeout = 10 * time.Second

// Event is the envelope for every message pushed to clients.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type directMessage struct {
	clientID string
	payload  []byte
}

// HubService fans events out to all connected dashboard clients. All writes
// to a connection go through the hub goroutine, so handler goroutines never
// race each other on the same socket.
//
// It implements vision.Publisher for the inference tiers.
type HubService struct {
	clients    map[string]*websocket.Conn
	broadcast  chan []byte
	direct     chan directMessage
	register   chan registration
	unregister chan string
	mutex      sync.RWMutex
	logger     *logger.Logger
}

type registration struct {
	id   string
	conn *websocket.Conn
}

// NewHubService creates an empty hub.
func NewHubService(log *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[string]*websocket.Conn),
		broadcast:  make(chan []byte, 16),
		direct:     make(chan directMessage, 16),
		register:   make(chan registration),
		unregister: make(chan string),
		logger:     log,
	}
}

// Run processes hub events until ctx is cancelled.
func (h *HubService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case reg := <-h.register:
			h.mutex.Lock()
			h.clients[reg.id] = reg.conn
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client connected. Total: %d", total)

		case id := <-h.unregister:
			h.mutex.Lock()
			if conn, ok := h.clients[id]; ok {
				delete(h.clients, id)
				conn.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client disconnected. Total: %d", total)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for id, conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Error("Error sending message: %v", err)
					delete(h.clients, id)
					conn.Close()
				}
			}
			h.mutex.Unlock()

		case msg := <-h.direct:
			h.mutex.Lock()
			if conn, ok := h.clients[msg.clientID]; ok {
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
					h.logger.Error("Error sending message: %v", err)
					delete(h.clients, msg.clientID)
					conn.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *HubService) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for id, conn := range h.clients {
		conn.Close()
		delete(h.clients, id)
	}
}

// Register adds a connection and returns its client id.
func (h *HubService) Register(conn *websocket.Conn) string {
	id := uuid.NewString()
	h.register <- registration{id: id, conn: conn}
	return id
}

// Unregister removes and closes a client connection.
func (h *HubService) Unregister(id string) {
	h.unregister <- id
}

// Broadcast pushes an event to every connected client. The send never blocks:
// when the hub is backlogged the event is dropped, so a stalled client cannot
// stall the inference tiers publishing through the hub.
func (h *HubService) Broadcast(event string, data interface{}) {
	payload, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		h.logger.Error("Failed to encode %q event: %v", event, err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warning("Hub backlog full, dropping %q event", event)
	}
}

// SendTo pushes an event to a single client. Like Broadcast, a backlogged hub
// drops the event instead of blocking the caller.
func (h *HubService) SendTo(clientID, event string, data interface{}) {
	payload, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		h.logger.Error("Failed to encode %q event: %v", event, err)
		return
	}
	select {
	case h.direct <- directMessage{clientID: clientID, payload: payload}:
	default:
		h.logger.Warning("Hub backlog full, dropping %q event for client %s", event, clientID)
	}
}

// PublishDetections implements vision.Publisher.
func (h *HubService) PublishDetections(snapshot models.Snapshot) {
	h.Broadcast("detection_results", snapshot)
}

// PublishScenePredictions implements vision.Publisher.
func (h *HubService) PublishScenePredictions(predictions []models.ScenePrediction) {
	h.Broadcast("scene_suggestion", predictions)
}

// ClientCount returns the number of connected clients.
func (h *HubService) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
