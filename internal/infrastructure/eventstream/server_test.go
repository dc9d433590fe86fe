package eventstream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/domain/entity"
)

func dialTestServer(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(s.handleEvents))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEventStream_PublishReachesClient(t *testing.T) {
	s := NewServer(zap.NewNop())
	conn := dialTestServer(t, s)

	// Registration happens inside the upgrade handler; give the
	// writer goroutine a moment to attach before publishing.
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.clients) == 1
	}, time.Second, 10*time.Millisecond)

	s.Publish(entity.NewTextEvent("hello"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(msg, &wire))
	require.Equal(t, "text", wire["type"])
	require.Equal(t, "hello", wire["text"])
}

func TestEventStream_ToolAndUsagePayloads(t *testing.T) {
	s := NewServer(zap.NewNop())
	conn := dialTestServer(t, s)

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.clients) == 1
	}, time.Second, 10*time.Millisecond)

	s.Publish(entity.NewToolCompleteEvent(entity.ToolCallInfo{ID: "t1", Name: "bash", Success: true}))
	s.Publish(entity.NewUsageEvent(100, 20))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var tool map[string]any
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg, &tool))
	require.Equal(t, "tool_complete", tool["type"])
	require.Equal(t, "bash", tool["toolName"])
	require.Equal(t, true, tool["success"])

	var usage map[string]any
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg, &usage))
	require.Equal(t, float64(100), usage["inTokens"])
	require.Equal(t, float64(20), usage["outTokens"])
}

func TestEventStream_DroppedClientIsRemoved(t *testing.T) {
	s := NewServer(zap.NewNop())
	conn := dialTestServer(t, s)

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.clients) == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.clients) == 0
	}, 2*time.Second, 10*time.Millisecond)

	// Publishing with no clients must not panic or block.
	s.Publish(entity.NewTextEvent("into the void"))
}
