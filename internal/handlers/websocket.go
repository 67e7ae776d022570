package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vindex/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsMessage is the frame broadcast to connected clients
type wsMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// WebSocketHandler pushes pipeline and classification events to browsers
type WebSocketHandler struct {
	logger      arbor.ILogger
	clients     map[*websocket.Conn]bool
	clientMutex map[*websocket.Conn]*sync.Mutex
	mu          sync.RWMutex
	allowed     map[interfaces.EventType]bool
}

// broadcastEvents lists the event types forwarded to clients by default
var broadcastEvents = []interfaces.EventType{
	interfaces.EventPipelineState,
	interfaces.EventUploadProgress,
	interfaces.EventJobProgress,
	interfaces.EventClassificationChanged,
}

// NewWebSocketHandler wires the handler into the event bus. allowedEvents
// narrows the broadcast set; empty means broadcast every default type.
func NewWebSocketHandler(eventService interfaces.EventService, allowedEvents []string, logger arbor.ILogger) (*WebSocketHandler, error) {
	h := &WebSocketHandler{
		logger:      logger,
		clients:     make(map[*websocket.Conn]bool),
		clientMutex: make(map[*websocket.Conn]*sync.Mutex),
		allowed:     make(map[interfaces.EventType]bool),
	}

	if len(allowedEvents) > 0 {
		for _, name := range allowedEvents {
			h.allowed[interfaces.EventType(name)] = true
		}
	} else {
		for _, eventType := range broadcastEvents {
			h.allowed[eventType] = true
		}
	}

	for _, eventType := range broadcastEvents {
		if !h.allowed[eventType] {
			continue
		}
		if err := eventService.Subscribe(eventType, h.handleEvent); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// HandleWebSocket upgrades the connection and keeps it registered until
// the client disconnects
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.register(conn)
	defer h.unregister(conn)

	h.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("WebSocket client connected")

	// Drain reads; clients only receive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
	h.clientMutex = make(map[*websocket.Conn]*sync.Mutex)
}

func (h *WebSocketHandler) handleEvent(ctx context.Context, event interfaces.Event) error {
	h.broadcast(wsMessage{
		Type:      string(event.Type),
		Timestamp: time.Now().UTC(),
		Payload:   event.Payload,
	})
	return nil
}

func (h *WebSocketHandler) register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
}

func (h *WebSocketHandler) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		conn.Close()
	}
}

func (h *WebSocketHandler) broadcast(msg wsMessage) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range conns {
		mutexes[i].Lock()
		err := conn.WriteJSON(msg)
		mutexes[i].Unlock()
		if err != nil {
			h.logger.Debug().Err(err).Msg("WebSocket write failed, dropping client")
			h.unregister(conn)
		}
	}
}
