package preview

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option customises a Manager.
type Option func(*Manager)

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithLiveGauge tracks the number of live handles across managers.
func WithLiveGauge(gauge prometheus.Gauge) Option {
	return func(m *Manager) {
		m.gauge = gauge
	}
}

// WithMediaType overrides the media type of published resources.
func WithMediaType(mediaType string) Option {
	return func(m *Manager) {
		if mediaType != "" {
			m.mediaType = mediaType
		}
	}
}

// Manager owns at most one live preview handle.
type Manager struct {
	mu        sync.Mutex
	store     Store
	logger    *zap.Logger
	gauge     prometheus.Gauge
	mediaType string

	current Handle
	key     string
	digest  string
}

// NewManager creates a manager allocating handles from store.
func NewManager(store Store, options ...Option) *Manager {
	m := &Manager{
		store:     store,
		logger:    zap.NewNop(),
		mediaType: "text/html",
	}
	for _, opt := range options {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Publish makes content available under a handle keyed by key (typically the
// selected form and style fingerprint). A new handle is allocated before the
// previous one is released; publishing the same key and content again returns
// the live handle unchanged.
func (m *Manager) Publish(ctx context.Context, key string, content []byte) (Handle, error) {
	if m.store == nil {
		return Handle{}, errors.New("preview: store is nil")
	}
	digest := contentDigest(content)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current.IsZero() && m.key == key && m.digest == digest {
		return m.current, nil
	}

	next, err := m.store.Create(ctx, m.mediaType, content)
	if err != nil {
		return Handle{}, fmt.Errorf("preview: allocate handle: %w", err)
	}
	if m.gauge != nil {
		m.gauge.Inc()
	}

	previous := m.current
	m.current, m.key, m.digest = next, key, digest

	if !previous.IsZero() {
		m.revoke(ctx, previous)
	}
	m.logger.Debug("preview handle published",
		zap.String("key", key),
		zap.String("handle", next.ID),
		zap.String("replaced", previous.ID),
	)
	return next, nil
}

// Current returns the live handle, if any.
func (m *Manager) Current() (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, !m.current.IsZero()
}

// Release revokes the live handle. Calling it with nothing outstanding is a
// no-op.
func (m *Manager) Release(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.IsZero() {
		return
	}
	m.revoke(ctx, m.current)
	m.current, m.key, m.digest = Handle{}, "", ""
}

func (m *Manager) revoke(ctx context.Context, handle Handle) {
	if err := m.store.Revoke(context.WithoutCancel(ctx), handle.ID); err != nil {
		m.logger.Warn("preview handle revoke failed", zap.String("handle", handle.ID), zap.Error(err))
	}
	if m.gauge != nil {
		m.gauge.Dec()
	}
}

func contentDigest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
