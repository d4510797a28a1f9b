package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/crowdgauge/internal/contribution"
	"github.com/MeKo-Tech/crowdgauge/internal/pipeline"
)

// mockWebSocketConn records written messages.
type mockWebSocketConn struct {
	sentMessages [][]byte
	err          error
}

func (m *mockWebSocketConn) WriteMessage(_ int, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.sentMessages = append(m.sentMessages, data)
	return nil
}

func TestSendWebSocketMessage(t *testing.T) {
	s := &Server{}
	conn := &mockWebSocketConn{}

	require.NoError(t, s.sendWebSocketMessage(conn, WebSocketMessage{Type: "subscribed"}))
	require.Len(t, conn.sentMessages, 1)
	assert.JSONEq(t, `{"type":"subscribed"}`, string(conn.sentMessages[0]))

	conn.err = errors.New("broken pipe")
	assert.Error(t, s.sendWebSocketMessage(conn, WebSocketMessage{Type: "outcome"}))
}

func TestNewOutcomeEvent(t *testing.T) {
	ev := newOutcomeEvent(pipeline.Outcome{
		MessageID: "MM1",
		State:     pipeline.StateAccepted,
		Contribution: &contribution.Contribution{
			StationID:   "NY1000",
			WaterHeight: contribution.Float(1.07),
		},
		Waterline: 312,
		Duration:  1500 * time.Millisecond,
	})
	assert.Equal(t, "accepted", ev.State)
	assert.Equal(t, "NY1000", ev.StationID)
	assert.InDelta(t, 1.07, *ev.WaterHeight, 1e-9)
	assert.Equal(t, 312, ev.Waterline)
	assert.Equal(t, int64(1500), ev.DurationMs)
	assert.Empty(t, ev.Error)

	ev = newOutcomeEvent(pipeline.Outcome{
		MessageID: "MM2",
		State:     pipeline.StateRejectedInvalidStation,
		Err:       pipeline.ErrInvalidStationLabel,
		Waterline: -1,
	})
	assert.Equal(t, "rejected_invalid_station", ev.State)
	assert.Empty(t, ev.StationID)
	assert.Nil(t, ev.WaterHeight)
	assert.Equal(t, pipeline.ErrInvalidStationLabel.Error(), ev.Error)
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		cors   string
		origin string
		want   bool
	}{
		{"*", "https://evil.example", true},
		{"", "https://any.example", true},
		{"https://app.example", "", true},
		{"https://app.example", "https://app.example", true},
		{"https://app.example", "https://evil.example", false},
	}
	for _, tt := range tests {
		s := &Server{corsOrigin: tt.cors}
		req := httptest.NewRequest(http.MethodGet, "/ws/outcomes", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, s.checkOrigin(req), "%s vs %s", tt.cors, tt.origin)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg WebSocketMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestOutcomesWebSocket(t *testing.T) {
	env := newTestEnv(t, Config{CORSOrigin: "*"})
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/outcomes"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
		_ = conn.Close()
	}()

	assert.Equal(t, "subscribed", readMessage(t, conn).Type)
	require.Equal(t, 1, env.outcomes.Subscribers())

	env.outcomes.Publish(pipeline.Outcome{
		MessageID:    "MM9",
		State:        pipeline.StateAccepted,
		Contribution: &contribution.Contribution{StationID: "PA1002", WaterHeight: contribution.Float(2.5)},
	})

	msg := readMessage(t, conn)
	assert.Equal(t, "outcome", msg.Type)
	payload, ok := msg.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "MM9", payload["message_id"])
	assert.Equal(t, "accepted", payload["state"])
	assert.Equal(t, "PA1002", payload["station_id"])
	assert.InDelta(t, 2.5, payload["water_height"], 1e-9)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return env.outcomes.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestOutcomesWebSocket_Ping(t *testing.T) {
	env := newTestEnv(t, Config{PingInterval: 20 * time.Millisecond})
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/outcomes"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
		_ = conn.Close()
	}()

	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})

	// Control frames are only handled while reading.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("no keepalive ping received")
	}
}

func TestOutcomesWebSocket_RejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, Config{CORSOrigin: "https://app.example"})
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/outcomes"
	header := http.Header{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, env.outcomes.Subscribers())
}
