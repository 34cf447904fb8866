package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/group03/phychat-backend/internal/models"
	"github.com/group03/phychat-backend/internal/tutor"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 64 * 1024
)

// ChatFrame is a client message on the chat websocket; Type must be "chat"
type ChatFrame struct {
	Type string `json:"type"`
	models.ChatRequest
}

// ServerFrame is a server message on the chat websocket: "connected",
// "reply" (with Data) or "error" (with Error)
type ServerFrame struct {
	Type  string                `json:"type"`
	Data  *models.TutorResponse `json:"data,omitempty"`
	Error string                `json:"error,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	allowed := make(map[string]bool, len(s.config.CORS.AllowedOrigins))
	for _, o := range s.config.CORS.AllowedOrigins {
		allowed[o] = true
	}

	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowed["*"] || allowed[origin] {
				return true
			}
			// same-host requests, e.g. tests and server-side clients
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

// chatConn serializes writes to a websocket connection
type chatConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *chatConn) send(frame ServerFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(frame)
}

func (c *chatConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer ws.Close()

	conn := &chatConn{conn: ws}
	ctx := r.Context()
	client := clientKey(r)

	slog.Info("chat websocket connected", "remote_addr", r.RemoteAddr)

	ws.SetReadLimit(wsMaxMessage)
	_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	if err := conn.send(ServerFrame{Type: "connected"}); err != nil {
		return
	}

	done := make(chan struct{})
	defer close(done)

	// keepalive
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "error", err)
			}
			break
		}

		var frame ChatFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			slog.Debug("invalid message format", "error", err)
			if conn.send(ServerFrame{Type: "error", Error: "invalid message format"}) != nil {
				break
			}
			continue
		}

		if !s.allowChat(ctx, client) {
			if conn.send(ServerFrame{Type: "error", Error: "too many chat requests, slow down"}) != nil {
				break
			}
			continue
		}

		out := s.chatFrameReply(ctx, frame)
		if err := conn.send(out); err != nil {
			slog.Debug("websocket write error", "error", err)
			break
		}
	}

	slog.Info("chat websocket disconnected", "remote_addr", r.RemoteAddr)
}

func (s *Server) chatFrameReply(ctx context.Context, frame ChatFrame) ServerFrame {
	if frame.Type != "chat" {
		return ServerFrame{Type: "error", Error: "unsupported message type: " + frame.Type}
	}
	if frame.UserID == "" {
		return ServerFrame{Type: "error", Error: "user_id is required"}
	}

	resp, err := s.reply(ctx, &frame.ChatRequest)
	if err != nil {
		if errors.Is(err, tutor.ErrModelNotLoaded) {
			return ServerFrame{Type: "error", Error: "tutor model is not loaded"}
		}
		slog.Error("failed to generate tutor reply", "error", err, "user_id", frame.UserID)
		return ServerFrame{Type: "error", Error: "AI service error"}
	}

	return ServerFrame{Type: "reply", Data: resp}
}
