package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Lookup for unknown or revoked handles.
var ErrNotFound = errors.New("preview: resource not found")

// Handle addresses a transient resource.
type Handle struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// IsZero reports whether the handle is unset.
func (h Handle) IsZero() bool {
	return h.ID == ""
}

// Resource is the content served for a handle.
type Resource struct {
	MediaType string
	Content   []byte
}

// Store is the host environment's transient resource facility.
type Store interface {
	// Create allocates a new handle serving content with mediaType.
	Create(ctx context.Context, mediaType string, content []byte) (Handle, error)
	// Revoke releases a handle. Unknown or already revoked ids are a no-op.
	Revoke(ctx context.Context, id string) error
	// Lookup returns the resource behind id.
	Lookup(id string) (Resource, error)
}

// MemoryStore keeps resources in process memory and addresses them as
// {baseURL}/{uuid}.
type MemoryStore struct {
	mu        sync.RWMutex
	baseURL   string
	resources map[string]Resource
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store issuing URLs under baseURL (for example
// "http://localhost:8080/preview").
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		resources: make(map[string]Resource),
	}
}

// Create stores a copy of content under a fresh id.
func (s *MemoryStore) Create(ctx context.Context, mediaType string, content []byte) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	if strings.TrimSpace(mediaType) == "" {
		return Handle{}, fmt.Errorf("preview: media type is required")
	}
	id := uuid.NewString()

	s.mu.Lock()
	s.resources[id] = Resource{
		MediaType: mediaType,
		Content:   bytes.Clone(content),
	}
	s.mu.Unlock()

	return Handle{ID: id, URL: s.url(id)}, nil
}

// Revoke drops the resource behind id.
func (s *MemoryStore) Revoke(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.resources, id)
	s.mu.Unlock()
	return nil
}

// Lookup returns the resource behind id.
func (s *MemoryStore) Lookup(id string) (Resource, error) {
	s.mu.RLock()
	res, ok := s.resources[id]
	s.mu.RUnlock()
	if !ok {
		return Resource{}, ErrNotFound
	}
	return Resource{MediaType: res.MediaType, Content: bytes.Clone(res.Content)}, nil
}

// Len reports the number of outstanding resources.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.resources)
}

// ServeHTTP serves the resource named by the last path segment.
func (s *MemoryStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Path
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		id = id[idx+1:]
	}
	Serve(w, r, s, id)
}

// Serve writes the resource behind id, or 404 when it is gone.
func Serve(w http.ResponseWriter, r *http.Request, store Store, id string) {
	res, err := store.Lookup(id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", res.MediaType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(res.Content)
}

func (s *MemoryStore) url(id string) string {
	if s.baseURL == "" {
		return id
	}
	return s.baseURL + "/" + id
}
