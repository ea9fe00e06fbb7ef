// Package websocket pushes live-reload notifications to open preview pages.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/pagewith/internal/logging"
)

const (
	sendBuffer   = 16
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Manager tracks connected preview pages and broadcasts updates to them.
type Manager struct {
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex

	originValidator OriginValidator
	logger          logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// NewManager creates a manager. A nil validator accepts same-host and
// loopback origins.
func NewManager(originValidator OriginValidator, logger logging.Logger) *Manager {
	if originValidator == nil {
		originValidator = SameHostValidator{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		clients:         make(map[*websocket.Conn]*Client),
		originValidator: originValidator,
		logger:          logger.WithComponent("websocket"),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the page goes away or the manager shuts down.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.ctx.Err() != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	if origin := r.Header.Get("Origin"); origin != "" && !m.originValidator.IsAllowedOrigin(origin, r.Host) {
		m.logger.Warn(r.Context(), nil, "WebSocket connection rejected", "origin", origin, "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin was checked above.
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionDisabled,
	})
	if err != nil {
		m.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	now := time.Now()
	client := &Client{
		conn:         conn,
		send:         make(chan []byte, sendBuffer),
		remoteAddr:   r.RemoteAddr,
		connectedAt:  now,
		lastActivity: now,
	}

	m.clientsMutex.Lock()
	if m.ctx.Err() != nil {
		m.clientsMutex.Unlock()
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		return
	}
	m.clients[conn] = client
	count := len(m.clients)
	m.wg.Add(1)
	m.clientsMutex.Unlock()

	m.logger.Debug(r.Context(), "WebSocket client connected", "remote", r.RemoteAddr, "clients", count)

	go m.writeToClient(client)
	m.readFromClient(client)
}

// readFromClient blocks until the connection fails. Pages never send
// anything meaningful, so frames are read only to observe closure.
func (m *Manager) readFromClient(client *Client) {
	defer m.unregister(client)

	for {
		_, _, err := client.conn.Read(m.ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && m.ctx.Err() == nil {
				m.logger.Debug(m.ctx, "WebSocket read ended", "remote", client.remoteAddr, "error", err.Error())
			}
			return
		}
		client.lastActivity = time.Now()
	}
}

func (m *Manager) writeToClient(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}

			ctx, cancel := context.WithTimeout(m.ctx, writeTimeout)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()

			if err != nil {
				_ = client.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(m.ctx, writeTimeout)
			err := client.conn.Ping(ctx)
			cancel()

			if err != nil {
				_ = client.conn.Close(websocket.StatusPolicyViolation, "ping failed")
				return
			}

		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) unregister(client *Client) {
	m.clientsMutex.Lock()
	_, exists := m.clients[client.conn]
	if exists {
		delete(m.clients, client.conn)
		close(client.send)
	}
	count := len(m.clients)
	m.clientsMutex.Unlock()

	if exists {
		_ = client.conn.Close(websocket.StatusNormalClosure, "")
		m.wg.Done()
		m.logger.Debug(context.Background(), "WebSocket client disconnected", "clients", count)
	}
}

// Broadcast sends message to every connected page. Pages whose send buffer
// is full are dropped.
func (m *Manager) Broadcast(message UpdateMessage) {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}

	data, err := json.Marshal(message)
	if err != nil {
		m.logger.Error(m.ctx, err, "Failed to marshal broadcast message")
		return
	}

	m.clientsMutex.RLock()
	var slow []*Client
	for _, client := range m.clients {
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	m.clientsMutex.RUnlock()

	for _, client := range slow {
		_ = client.conn.Close(websocket.StatusPolicyViolation, "client too slow")
	}
}

// Reload asks every connected page to reload itself.
func (m *Manager) Reload(target string) {
	m.Broadcast(UpdateMessage{Type: MessageTypeReload, Target: target})
}

// GetConnectedClients returns the number of connected clients
func (m *Manager) GetConnectedClients() int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()
	return len(m.clients)
}

// Shutdown closes every connection and waits for their goroutines, or for
// ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.clientsMutex.Lock()
		m.cancel()
		clients := make([]*Client, 0, len(m.clients))
		for _, client := range m.clients {
			clients = append(clients, client)
		}
		m.clientsMutex.Unlock()

		for _, client := range clients {
			_ = client.conn.Close(websocket.StatusGoingAway, "Server shutdown")
		}
	})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShutdown returns whether the manager has been shut down
func (m *Manager) IsShutdown() bool {
	return m.ctx.Err() != nil
}
