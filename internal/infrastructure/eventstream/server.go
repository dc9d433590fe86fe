// Package eventstream serves the agent's event stream to host UIs over
// a local websocket, so a TUI or editor plugin can render progress
// without linking the runtime in-process.
package eventstream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/domain/entity"
	"github.com/agentcore/agentcore/pkg/safego"
)

// wireEvent is the JSON shape sent to subscribers.
type wireEvent struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	ToolID    string `json:"toolId,omitempty"`
	ToolName  string `json:"toolName,omitempty"`
	Success   bool   `json:"success,omitempty"`
	InTokens  int    `json:"inTokens,omitempty"`
	OutTokens int    `json:"outTokens,omitempty"`
	Full      string `json:"full,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func toWire(ev entity.AgentEvent) wireEvent {
	w := wireEvent{
		Type:      string(ev.Type),
		Text:      ev.Text,
		Full:      ev.Full,
		Timestamp: ev.Timestamp.UnixMilli(),
	}
	if ev.ToolCall != nil {
		w.ToolID = ev.ToolCall.ID
		w.ToolName = ev.ToolCall.Name
		w.Success = ev.ToolCall.Success
	}
	if ev.Usage != nil {
		w.InTokens = ev.Usage.InputTokens
		w.OutTokens = ev.Usage.OutputTokens
	}
	if ev.Err != nil {
		w.Error = ev.Err.Error()
	}
	return w
}

// Server fans agent events out to every connected websocket client.
// A client whose send buffer is full misses that event rather than
// stalling the run; the client itself stays connected.
type Server struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]chan []byte
	upgrader websocket.Upgrader
	logger   *zap.Logger
	httpSrv  *http.Server
}

func NewServer(logger *zap.Logger) *Server {
	return &Server{
		clients: make(map[*websocket.Conn]chan []byte),
		upgrader: websocket.Upgrader{
			// Local-only surface; the listener binds loopback.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.With(zap.String("component", "eventstream")),
	}
}

// Start listens on addr and serves /events until Stop.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	safego.Go(s.logger, "eventstream-listener", func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("event stream server failed", zap.Error(err))
		}
	})
	s.logger.Info("event stream listening", zap.String("addr", addr))
	return nil
}

// Stop closes the listener and every client.
func (s *Server) Stop() {
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, ch := range s.clients {
		close(ch)
		_ = conn.Close()
		delete(s.clients, conn)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	send := make(chan []byte, 256)
	s.mu.Lock()
	s.clients[conn] = send
	s.mu.Unlock()

	safego.Go(s.logger, "eventstream-writer", func() {
		defer s.drop(conn)
		for msg := range send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	})

	// Reader goroutine exists only to notice the client going away.
	safego.Go(s.logger, "eventstream-reader", func() {
		defer s.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.clients[conn]; ok {
		close(ch)
		delete(s.clients, conn)
	}
	_ = conn.Close()
}

// Publish fans one event out. Events for clients whose buffers are full
// are dropped per client, keeping a stuck UI from backpressuring the
// loop.
func (s *Server) Publish(ev entity.AgentEvent) {
	msg, err := json.Marshal(toWire(ev))
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Forward drains an event channel into Publish, returning when the
// channel closes.
func (s *Server) Forward(events <-chan entity.AgentEvent) {
	for ev := range events {
		s.Publish(ev)
	}
}
