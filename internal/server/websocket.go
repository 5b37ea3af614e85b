package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/pramodthe/enterprise-ai-platform/internal/tracing"
	"github.com/pramodthe/enterprise-ai-platform/pkg/orchestrator"
)

const wsWriteTimeout = 10 * time.Second

// Event names sent to WebSocket clients.
const (
	EventConnected = "connected"
	EventResponse  = "chat.response"
	EventError     = "error"
)

// WSMessage is a server-to-client frame.
type WSMessage struct {
	Event        string      `json:"event"`
	ConnectionID string      `json:"connection_id,omitempty"`
	Data         interface{} `json:"data,omitempty"`
	Error        string      `json:"error,omitempty"`
}

type wsConn struct {
	id          string
	conn        *websocket.Conn
	remoteAddr  string
	connectedAt time.Time
	// sessionID is reused for frames that omit session_id.
	sessionID string
}

func (c *wsConn) send(msg WSMessage) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(msg)
}

type connRegistry struct {
	mu    sync.RWMutex
	conns map[string]*wsConn
}

func newConnRegistry() *connRegistry {
	return &connRegistry{conns: make(map[string]*wsConn)}
}

func (r *connRegistry) add(c *wsConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.id] = c
}

func (r *connRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

func (r *connRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *connRegistry) closeAll() {
	r.mu.RLock()
	conns := make([]*wsConn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.conn.Close()
	}
}

// handleWebSocket upgrades the connection and serves chat frames until the
// client goes away. Each text frame is one chat request.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	id, err := gonanoid.New()
	if err != nil {
		id = tracing.NewRequestID()
	}
	client := &wsConn{
		id:          id,
		conn:        conn,
		remoteAddr:  clientKey(r),
		connectedAt: time.Now(),
	}
	s.conns.add(client)

	s.logger.Info().
		Str("connection_id", id).
		Str("ip", r.RemoteAddr).
		Msg("Client connected")

	if err := client.send(WSMessage{Event: EventConnected, ConnectionID: id}); err != nil {
		s.logger.Error().Err(err).Str("connection_id", id).Msg("Failed to send greeting")
		conn.Close()
		s.conns.remove(id)
		return
	}

	s.serveConn(r, client)
}

func (s *Server) serveConn(r *http.Request, client *wsConn) {
	defer func() {
		client.conn.Close()
		s.conns.remove(client.id)
		s.logger.Info().
			Str("connection_id", client.id).
			Dur("connected_for", time.Since(client.connectedAt)).
			Msg("Client disconnected")
	}()

	for {
		_, frame, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error().Err(err).Str("connection_id", client.id).Msg("WebSocket error")
			}
			return
		}

		if !s.limiter.allow(client.remoteAddr) {
			if err := client.send(WSMessage{Event: EventError, Error: "rate limit exceeded"}); err != nil {
				return
			}
			continue
		}

		req, err := decodeChatRequest(frame)
		if err != nil {
			if err := client.send(WSMessage{Event: EventError, Error: err.Error()}); err != nil {
				return
			}
			continue
		}
		if req.SessionID == "" {
			req.SessionID = client.sessionID
		}

		ctx := tracing.NewRequestContext(r.Context())
		resp := s.process(ctx, req)
		if resp.SessionID != orchestrator.GuardrailBlockedSessionID {
			client.sessionID = resp.SessionID
		}

		if err := client.send(WSMessage{Event: EventResponse, Data: resp}); err != nil {
			s.logger.Error().Err(err).Str("connection_id", client.id).Msg("Failed to send response")
			return
		}
	}
}
