// Package registry remembers which entry module and presentation options each
// preview page renders.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/pagewith/internal/errors"
)

// PageOptions controls how a preview page is presented.
type PageOptions struct {
	// Title of the HTML document. Empty means the renderer default.
	Title string
	// Markup is literal HTML, or a path to a file holding it.
	Markup string
}

// PageContext is one registered preview page. It is never modified after
// creation.
type PageContext struct {
	ID        string
	EntryPath string
	Options   PageOptions
	CreatedAt time.Time
}

// PageEvent represents a change in the page registry
type PageEvent struct {
	Type      EventType
	Page      PageContext
	Timestamp time.Time
}

// EventType represents the type of page event
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeRemoved
)

// String returns a readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EventTypeCreated:
		return "created"
	case EventTypeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// PageRegistry manages all registered preview pages
type PageRegistry struct {
	pages    map[string]PageContext
	mutex    sync.RWMutex
	watchers []chan PageEvent
}

// NewPageRegistry creates a new page registry
func NewPageRegistry() *PageRegistry {
	return &PageRegistry{
		pages:    make(map[string]PageContext),
		watchers: make([]chan PageEvent, 0),
	}
}

// Create registers a page for entryPath under a fresh random id.
func (r *PageRegistry) Create(entryPath string, opts PageOptions) PageContext {
	page := PageContext{
		ID:        uuid.NewString(),
		EntryPath: entryPath,
		Options:   opts,
		CreatedAt: time.Now(),
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.pages[page.ID] = page
	r.notify(PageEvent{Type: EventTypeCreated, Page: page, Timestamp: time.Now()})

	return page
}

// Resolve looks up a page by id.
func (r *PageRegistry) Resolve(id string) (PageContext, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	page, exists := r.pages[id]
	if !exists {
		return PageContext{}, errors.PageNotFound(id)
	}

	return page, nil
}

// Remove deletes a page. Removing an unknown id is a no-op.
func (r *PageRegistry) Remove(id string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	page, exists := r.pages[id]
	if !exists {
		return
	}

	delete(r.pages, id)
	r.notify(PageEvent{Type: EventTypeRemoved, Page: page, Timestamp: time.Now()})
}

// GetAll returns all registered pages
func (r *PageRegistry) GetAll() []PageContext {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]PageContext, 0, len(r.pages))
	for _, page := range r.pages {
		result = append(result, page)
	}
	return result
}

// Count returns the number of registered pages
func (r *PageRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.pages)
}

// notify must be called with the mutex held.
func (r *PageRegistry) notify(event PageEvent) {
	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

// Watch returns a channel that receives page events
func (r *PageRegistry) Watch() <-chan PageEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan PageEvent, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *PageRegistry) UnWatch(ch <-chan PageEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}
