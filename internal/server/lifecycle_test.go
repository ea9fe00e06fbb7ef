package server

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagewith/internal/errors"
	"github.com/conneroisu/pagewith/internal/logging"
	"github.com/conneroisu/pagewith/internal/routes"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
}

func TestLifecycleCloseBeforeListen(t *testing.T) {
	l := NewLifecycle(okHandler(), logging.Discard())

	err := l.Close(context.Background())

	assert.True(t, stderrors.Is(err, errors.ErrNotRunning))
	_, ok := l.Info()
	assert.False(t, ok)
}

func TestLifecycleListenAndClose(t *testing.T) {
	l := NewLifecycle(okHandler(), logging.Discard())
	ctx := context.Background()

	info, err := l.Listen(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultHost, info.Host)
	assert.NotZero(t, info.Port)
	assert.Equal(t, "http://localhost:"+strconv.Itoa(info.Port), info.URL)

	got, ok := l.Info()
	require.True(t, ok)
	assert.Equal(t, info, got)

	resp, err := http.Get(info.URL)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	require.NoError(t, l.Close(ctx))

	_, ok = l.Info()
	assert.False(t, ok)
	assert.True(t, stderrors.Is(l.Close(ctx), errors.ErrNotRunning))
}

func TestLifecycleListenTwice(t *testing.T) {
	l := NewLifecycle(okHandler(), logging.Discard())
	ctx := context.Background()

	_, err := l.Listen(ctx, "127.0.0.1", 0)
	require.NoError(t, err)
	defer l.Close(ctx)

	_, err = l.Listen(ctx, "127.0.0.1", 0)
	assert.True(t, stderrors.Is(err, errors.ErrBind))
}

func TestLifecycleListenAfterClose(t *testing.T) {
	l := NewLifecycle(okHandler(), logging.Discard())
	ctx := context.Background()

	_, err := l.Listen(ctx, "127.0.0.1", 0)
	require.NoError(t, err)
	require.NoError(t, l.Close(ctx))

	_, err = l.Listen(ctx, "127.0.0.1", 0)
	assert.True(t, stderrors.Is(err, errors.ErrBind))
}

func TestLifecycleBindFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	port := occupied.Addr().(*net.TCPAddr).Port
	l := NewLifecycle(okHandler(), logging.Discard())

	_, err = l.Listen(context.Background(), "127.0.0.1", port)

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrBind))
	assert.Contains(t, err.Error(), strconv.Itoa(port))
}

func TestLifecycleConcurrentClose(t *testing.T) {
	l := NewLifecycle(okHandler(), logging.Discard())
	_, err := l.Listen(context.Background(), "127.0.0.1", 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			results <- l.Close(ctx)
		}()
	}
	wg.Wait()
	close(results)

	closed, notRunning := 0, 0
	for err := range results {
		switch {
		case err == nil:
			closed++
		case stderrors.Is(err, errors.ErrNotRunning):
			notRunning++
		default:
			t.Errorf("unexpected close error: %v", err)
		}
	}

	assert.Equal(t, 1, closed)
	assert.Equal(t, 9, notRunning)
}

func TestPreviewServerURL(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()

	_, err := srv.URL("/preview/x")
	assert.True(t, stderrors.Is(err, errors.ErrNotRunning))

	info, err := srv.Listen(ctx, "127.0.0.1", 0)
	require.NoError(t, err)

	u, err := srv.URL("//preview//x")
	require.NoError(t, err)
	assert.Equal(t, info.URL+"/preview/x", u)

	page, pageURL := srv.CreatePage("example.js", registryOptions())
	assert.Equal(t, info.URL+"/preview/"+page.ID, pageURL)

	resp, err := http.Get(info.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Close(ctx))
	assert.True(t, stderrors.Is(srv.Close(ctx), errors.ErrNotRunning))
}

func TestCloseWaitsForHandlerCallingURL(t *testing.T) {
	started := make(chan struct{})
	var srv *PreviewServer
	srv = newTestServer(t, nil, WithRouter(func(mux routes.Mux) {
		mux.HandleFunc("GET /slow", func(w http.ResponseWriter, r *http.Request) {
			close(started)
			time.Sleep(100 * time.Millisecond)
			_, err := srv.URL("/after")
			if err != nil {
				_, _ = io.WriteString(w, "closed")
				return
			}
			_, _ = io.WriteString(w, "open")
		})
	}))

	info, err := srv.Listen(context.Background(), "127.0.0.1", 0)
	require.NoError(t, err)

	respDone := make(chan int, 1)
	go func() {
		resp, err := http.Get(info.URL + "/slow")
		if err != nil {
			respDone <- 0
			return
		}
		resp.Body.Close()
		respDone <- resp.StatusCode
	}()
	<-started

	closed := make(chan error, 1)
	go func() { closed <- srv.Close(context.Background()) }()

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked on an in-flight handler")
	}
	assert.Equal(t, http.StatusOK, <-respDone)
}
