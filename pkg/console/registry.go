package console

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-formembed/pkg/preview"
)

// ErrViewNotFound is returned for unknown view ids.
var ErrViewNotFound = errors.New("console: view not found")

// Registry tracks the open views of a console process.
type Registry struct {
	mu        sync.Mutex
	generator Generator
	store     preview.Store
	defaults  []ViewOption
	views     map[string]*View
}

// NewRegistry creates a registry whose views share generator and store.
// defaults apply to every view opened.
func NewRegistry(generator Generator, store preview.Store, defaults ...ViewOption) *Registry {
	return &Registry{
		generator: generator,
		store:     store,
		defaults:  defaults,
		views:     make(map[string]*View),
	}
}

// Open creates and tracks a new view.
func (r *Registry) Open(options ...ViewOption) (*View, error) {
	opts := append(append([]ViewOption(nil), r.defaults...), options...)
	view, err := NewView(r.generator, r.store, opts...)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.views[view.ID()]; exists {
		return nil, fmt.Errorf("console: view %q already open", view.ID())
	}
	r.views[view.ID()] = view
	return view, nil
}

// Get returns the open view with id.
func (r *Registry) Get(id string) (*View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	view, ok := r.views[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrViewNotFound, id)
	}
	return view, nil
}

// Close closes and forgets the view with id.
func (r *Registry) Close(ctx context.Context, id string) error {
	r.mu.Lock()
	view, ok := r.views[id]
	delete(r.views, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrViewNotFound, id)
	}
	view.Close(ctx)
	return nil
}

// CloseAll closes every open view.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	views := r.views
	r.views = make(map[string]*View)
	r.mu.Unlock()
	for _, view := range views {
		view.Close(ctx)
	}
}

// Len reports the number of open views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}
