package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/conneroisu/pagewith/internal/errors"
	"github.com/conneroisu/pagewith/internal/logging"
)

// DefaultHost is the interface Listen binds when no host is given.
const DefaultHost = "localhost"

// ConnectionInfo describes where a listening server can be reached.
type ConnectionInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	URL  string `json:"url"`
}

// Lifecycle binds an http.Handler to a TCP listener and shuts it down again.
// A Lifecycle can be listened and closed once; after Close it refuses to
// listen again.
type Lifecycle struct {
	handler    http.Handler
	logger     logging.Logger
	httpServer *http.Server
	info       *ConnectionInfo
	closed     bool
	serveDone  chan struct{}
	mutex      sync.Mutex
}

// NewLifecycle creates a lifecycle serving handler.
func NewLifecycle(handler http.Handler, logger logging.Logger) *Lifecycle {
	return &Lifecycle{
		handler: handler,
		logger:  logger.WithComponent("lifecycle"),
	}
}

// Listen binds host:port and starts serving in the background. An empty host
// means DefaultHost and port 0 picks a free port.
func (l *Lifecycle) Listen(ctx context.Context, host string, port int) (ConnectionInfo, error) {
	if host == "" {
		host = DefaultHost
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.info != nil {
		return ConnectionInfo{}, errors.Bind(addr, fmt.Errorf("server is already listening on %s", l.info.URL))
	}
	if l.closed {
		return ConnectionInfo{}, errors.Bind(addr, http.ErrServerClosed)
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return ConnectionInfo{}, errors.Bind(addr, err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		_ = listener.Close()
		return ConnectionInfo{}, errors.Bind(addr, fmt.Errorf("unexpected listener address %s", listener.Addr()))
	}

	info := ConnectionInfo{
		Host: host,
		Port: tcpAddr.Port,
		URL:  "http://" + net.JoinHostPort(host, strconv.Itoa(tcpAddr.Port)),
	}

	server := &http.Server{
		Handler:           l.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := server.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			l.logger.Error(context.Background(), err, "Server stopped unexpectedly", "url", info.URL)
		}
	}()

	l.httpServer = server
	l.info = &info
	l.serveDone = done

	l.logger.Info(ctx, "Server listening", "url", info.URL)

	return info, nil
}

// Close gracefully shuts the server down. It reports NotRunning when the
// server never listened or was already closed.
//
// The lock is released before shutting down, so in-flight handlers may still
// call Info while Close waits for them.
func (l *Lifecycle) Close(ctx context.Context) error {
	l.mutex.Lock()
	if l.httpServer == nil {
		l.mutex.Unlock()
		return errors.NotRunning()
	}

	server := l.httpServer
	url := l.info.URL
	done := l.serveDone

	l.httpServer = nil
	l.info = nil
	l.serveDone = nil
	l.closed = true
	l.mutex.Unlock()

	if err := server.Shutdown(ctx); err != nil {
		_ = server.Close()
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	<-done

	l.logger.Info(ctx, "Server closed", "url", url)

	return nil
}

// Info returns the connection details while the server is listening.
func (l *Lifecycle) Info() (ConnectionInfo, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.info == nil {
		return ConnectionInfo{}, false
	}

	return *l.info, true
}
