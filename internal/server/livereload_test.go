package server

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagewith/internal/config"
	"github.com/conneroisu/pagewith/internal/registry"
	ws "github.com/conneroisu/pagewith/internal/websocket"
)

func registryOptions() registry.PageOptions {
	return registry.PageOptions{Title: "Example"}
}

func TestLiveReloadBroadcastsOnEntryChange(t *testing.T) {
	dir := t.TempDir()
	entry := writeEntry(t, dir, "live.js", "window.live = 1;\n")

	cfg := config.Default()
	cfg.Development.Debounce = 20 * time.Millisecond
	srv := newTestServer(t, cfg, WithLiveReload(true))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := srv.Listen(ctx, "127.0.0.1", 0)
	require.NoError(t, err)

	_, url := srv.CreatePage(entry, registry.PageOptions{})
	rec := get(t, srv, strings.TrimPrefix(url, info.URL))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), ReloadPath)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(info.URL, "http")+ReloadPath, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// Give the watcher time to register before touching the file.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(entry, []byte("window.live = 2;\n"), 0o644))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg ws.UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, ws.MessageTypeReload, msg.Type)
	assert.Equal(t, entry, msg.Target)
}

func TestLiveReloadDisabledByDefault(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := get(t, srv, ReloadPath)
	assert.Equal(t, 404, rec.Code)
}
