package websocket

import (
	"time"

	"github.com/coder/websocket"
)

// Message types sent to preview pages.
const (
	MessageTypeReload = "reload"
	MessageTypeError  = "error"
)

// Client represents a connected preview page
type Client struct {
	conn         *websocket.Conn
	send         chan []byte
	remoteAddr   string
	connectedAt  time.Time
	lastActivity time.Time
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OriginValidator decides whether a page at origin may open a reload socket
// on the server reached through host.
type OriginValidator interface {
	IsAllowedOrigin(origin, host string) bool
}
