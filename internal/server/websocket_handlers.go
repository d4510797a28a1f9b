package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/crowdgauge/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocketMessage represents a message sent over WebSocket.
type WebSocketMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// OutcomeEvent is the live-feed view of a pipeline outcome. It carries no
// contributor data.
type OutcomeEvent struct {
	MessageID   string   `json:"message_id"`
	State       string   `json:"state"`
	StationID   string   `json:"station_id,omitempty"`
	WaterHeight *float64 `json:"water_height,omitempty"`
	Waterline   int      `json:"waterline"`
	Error       string   `json:"error,omitempty"`
	DurationMs  int64    `json:"duration_ms"`
}

func newOutcomeEvent(o pipeline.Outcome) OutcomeEvent {
	ev := OutcomeEvent{
		MessageID:  o.MessageID,
		State:      string(o.State),
		Waterline:  o.Waterline,
		DurationMs: o.Duration.Milliseconds(),
	}
	if o.Contribution != nil {
		ev.StationID = o.Contribution.StationID
		ev.WaterHeight = o.Contribution.WaterHeight
	}
	if o.Err != nil {
		ev.Error = o.Err.Error()
	}
	return ev
}

// outcomesWebSocketHandler streams every pipeline outcome to the client.
func (s *Server) outcomesWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	u := upgrader
	u.CheckOrigin = s.checkOrigin
	conn, err := u.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	events, cancel := s.outcomes.Subscribe()
	defer cancel()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	if err := s.sendWebSocketMessage(conn, WebSocketMessage{Type: "subscribed"}); err != nil {
		return
	}
	s.streamOutcomes(conn, events)
}

// streamOutcomes writes outcomes and keepalive pings until the client goes
// away. It is the only writer on conn.
func (s *Server) streamOutcomes(conn *websocket.Conn, events <-chan pipeline.Outcome) {
	_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("WebSocket error", "error", err)
				}
				return
			}
			websocketMessagesTotal.WithLabelValues("received").Inc()
		}
	}()

	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return
		case o, ok := <-events:
			if !ok {
				return
			}
			if err := s.sendWebSocketMessage(conn, WebSocketMessage{Type: "outcome", Payload: newOutcomeEvent(o)}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

// sendWebSocketMessage sends a message over WebSocket.
func (s *Server) sendWebSocketMessage(conn WebSocketConnWriter, msg WebSocketMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal WebSocket message", "error", err)
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("Failed to send WebSocket message", "error", err)
		return err
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
	return nil
}

// checkOrigin accepts any origin when CORS is open and only the configured
// one otherwise.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.corsOrigin == "" || s.corsOrigin == "*" {
		return true
	}
	return origin == s.corsOrigin
}
