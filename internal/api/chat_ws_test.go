package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/group03/phychat-backend/internal/models"
)

func dialChat(t *testing.T, env *testEnv, header http.Header) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(env.server.Router())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello ServerFrame
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, "connected", hello.Type)

	return conn
}

func TestChatWebSocket(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	conn := dialChat(t, env, nil)

	code := "x = '5' + 3"
	require.NoError(t, conn.WriteJSON(ChatFrame{
		Type: "chat",
		ChatRequest: models.ChatRequest{
			UserID:         "s1",
			Message:        "why?",
			CodeSnippet:    &code,
			ConversationID: "ws-conv",
		},
	}))

	var reply ServerFrame
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "reply", reply.Type)
	require.NotNil(t, reply.Data)
	assert.Equal(t, models.TypeError, reply.Data.ErrorType)

	history, err := env.history.GetConversationHistory(context.Background(), "ws-conv", 5)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestChatWebSocketErrors(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	conn := dialChat(t, env, nil)

	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{"not json", "hello", "invalid message format"},
		{"wrong type", `{"type":"resize"}`, "unsupported message type: resize"},
		{"missing user", `{"type":"chat","message":"hi"}`, "user_id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)))

			var frame ServerFrame
			require.NoError(t, conn.ReadJSON(&frame))
			assert.Equal(t, "error", frame.Type)
			assert.Equal(t, tt.wantErr, frame.Error)
		})
	}
}

func TestChatWebSocketRequiresKey(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.APIKeys = []string{"sk_test_123456789"}
	env := newTestEnv(t, cfg, nil)

	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn := dialChat(t, env, http.Header{"X-API-Key": []string{"sk_test_123456789"}})
	assert.NotNil(t, conn)
}
