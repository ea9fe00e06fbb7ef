// Package routes lets callers extend the preview server with their own HTTP
// handlers and later retract exactly those handlers.
//
// Handlers are kept in an ordered list of groups. Each group owns its own
// ServeMux and a stable id, so removing one group never disturbs another,
// whatever order groups are added or removed in. A request is served by the
// first group, in registration order, that has a matching pattern and whose
// handler does not decline it (see Matcher). When no group matches, the
// fallback handler runs.
package routes

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/conneroisu/pagewith/internal/logging"
)

// Mux is the registration surface handed to route callbacks. It accepts the
// same patterns as http.ServeMux.
type Mux interface {
	Handle(pattern string, handler http.Handler)
	HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request))
}

// Matcher is implemented by handlers that only claim some of the requests
// their pattern matches. When Matches reports false the router keeps looking
// in later groups, then falls back.
type Matcher interface {
	Matches(req *http.Request) bool
}

// group is one set of routes added by a single Apply call.
type group struct {
	id        string
	mux       *http.ServeMux
	patterns  []string
	permanent bool
}

func (g *group) Handle(pattern string, handler http.Handler) {
	g.mux.Handle(pattern, handler)
	g.patterns = append(g.patterns, pattern)
}

func (g *group) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	g.Handle(pattern, http.HandlerFunc(handler))
}

// Patch identifies the routes added by one Apply call.
type Patch struct {
	ID       string
	Patterns []string
	router   *Router
}

// Count returns how many handlers the patch registered.
func (p Patch) Count() int {
	return len(p.Patterns)
}

// Remove retracts the patch's routes. It is safe to call more than once.
func (p Patch) Remove() {
	if p.router != nil {
		p.router.remove(p.ID)
	}
}

// Router dispatches requests across route groups.
type Router struct {
	groups   []*group
	fallback http.Handler
	mutex    sync.RWMutex
	logger   logging.Logger
}

// NewRouter creates a router with no groups whose fallback answers 404.
func NewRouter(logger logging.Logger) *Router {
	return &Router{
		fallback: http.NotFoundHandler(),
		logger:   logger.WithComponent("routes"),
	}
}

// Base registers routes that can never be removed.
func (r *Router) Base(register func(Mux)) {
	r.add(register, true)
}

// Apply registers a removable group of routes and returns its patch.
func (r *Router) Apply(register func(Mux)) Patch {
	g := r.add(register, false)

	return Patch{
		ID:       g.id,
		Patterns: append([]string(nil), g.patterns...),
		router:   r,
	}
}

func (r *Router) add(register func(Mux), permanent bool) *group {
	g := &group{
		id:        uuid.NewString(),
		mux:       http.NewServeMux(),
		permanent: permanent,
	}
	if register != nil {
		register(g)
	}

	r.mutex.Lock()
	r.groups = append(r.groups, g)
	r.mutex.Unlock()

	r.logger.Debug(context.Background(), "Route group added",
		"group_id", g.id,
		"handlers", len(g.patterns),
		"permanent", permanent)

	return g
}

func (r *Router) remove(id string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, g := range r.groups {
		if g.id != id || g.permanent {
			continue
		}
		r.groups = append(r.groups[:i:i], r.groups[i+1:]...)
		r.logger.Debug(context.Background(), "Route group removed",
			"group_id", id,
			"handlers", len(g.patterns))
		return
	}
}

// SetFallback sets the handler used when no group matches.
func (r *Router) SetFallback(handler http.Handler) {
	if handler == nil {
		handler = http.NotFoundHandler()
	}

	r.mutex.Lock()
	r.fallback = handler
	r.mutex.Unlock()
}

// Len returns the total number of registered handlers across all groups.
func (r *Router) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	total := 0
	for _, g := range r.groups {
		total += len(g.patterns)
	}
	return total
}

// Groups returns the number of active groups.
func (r *Router) Groups() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.groups)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mutex.RLock()
	groups := make([]*group, len(r.groups))
	copy(groups, r.groups)
	fallback := r.fallback
	r.mutex.RUnlock()

	for _, g := range groups {
		h, pattern := g.mux.Handler(req)
		if pattern == "" {
			continue
		}
		if m, ok := h.(Matcher); ok && !m.Matches(req) {
			continue
		}
		// ServeMux.ServeHTTP matches again so that path values are set
		g.mux.ServeHTTP(w, req)
		return
	}

	fallback.ServeHTTP(w, req)
}
