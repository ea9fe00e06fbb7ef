package server

import (
	"net/http"
	"path"

	"github.com/spf13/afero"
)

// contentHandler serves a directory read-only. As a routes.Matcher it only
// claims requests for paths that exist, so routes registered after it still
// see everything else.
type contentHandler struct {
	fs     afero.Fs
	server http.Handler
}

func newContentHandler(dir string) *contentHandler {
	fs := afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), dir))

	return &contentHandler{
		fs:     fs,
		server: http.FileServer(afero.NewHttpFs(fs)),
	}
}

// Matches reports whether the request path names an existing file or
// directory under the content base.
func (c *contentHandler) Matches(r *http.Request) bool {
	_, err := c.fs.Stat(path.Clean("/" + r.URL.Path))
	return err == nil
}

func (c *contentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.server.ServeHTTP(w, r)
}
