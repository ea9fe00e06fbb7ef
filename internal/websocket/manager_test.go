package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagewith/internal/logging"
)

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestSameHostValidator(t *testing.T) {
	v := SameHostValidator{Extra: []string{"https://studio.example.com/"}}

	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"same host", "http://preview.internal:8080", "preview.internal:8080", true},
		{"localhost", "http://localhost:3000", "preview.internal:8080", true},
		{"loopback ip", "http://127.0.0.1:9999", "preview.internal:8080", true},
		{"ipv6 loopback", "http://[::1]:9999", "preview.internal:8080", true},
		{"extra origin", "https://studio.example.com", "preview.internal:8080", true},
		{"foreign", "http://evil.example.com", "preview.internal:8080", false},
		{"bad scheme", "file://localhost", "preview.internal:8080", false},
		{"garbage", "::not a url", "preview.internal:8080", false},
		{"no host", "http://", "preview.internal:8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.IsAllowedOrigin(tt.origin, tt.host))
		})
	}
}

func TestManagerBroadcastsReload(t *testing.T) {
	manager := NewManager(nil, logging.Discard())
	server := httptest.NewServer(manager)
	defer server.Close()
	defer manager.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(server), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool {
		return manager.GetConnectedClients() == 1
	}, 2*time.Second, 10*time.Millisecond)

	manager.Reload("/src/hello.js")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, MessageTypeReload, msg.Type)
	assert.Equal(t, "/src/hello.js", msg.Target)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestManagerUnregistersClosedClients(t *testing.T) {
	manager := NewManager(nil, logging.Discard())
	server := httptest.NewServer(manager)
	defer server.Close()
	defer manager.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(server), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return manager.GetConnectedClients() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))

	assert.Eventually(t, func() bool {
		return manager.GetConnectedClients() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManagerRejectsForeignOrigin(t *testing.T) {
	manager := NewManager(nil, logging.Discard())
	defer manager.Shutdown(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	rec := httptest.NewRecorder()

	manager.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, manager.GetConnectedClients())
}

func TestManagerShutdown(t *testing.T) {
	manager := NewManager(nil, logging.Discard())
	server := httptest.NewServer(manager)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(server), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool {
		return manager.GetConnectedClients() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, manager.Shutdown(ctx))
	assert.True(t, manager.IsShutdown())
	assert.Equal(t, 0, manager.GetConnectedClients())

	_, _, err = conn.Read(ctx)
	assert.Error(t, err)

	rec := httptest.NewRecorder()
	manager.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// Second shutdown is a no-op
	assert.NoError(t, manager.Shutdown(ctx))
}
