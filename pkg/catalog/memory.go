package catalog

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-formembed/pkg/form"
)

// Memory is a process local Catalog.
type Memory struct {
	mu      sync.RWMutex
	records map[string]form.Record
	opts    options
}

var _ Catalog = (*Memory)(nil)

// NewMemory creates an in-memory catalog. Seed records failing validation
// are rejected.
func NewMemory(opts ...Option) (*Memory, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	m := &Memory{
		records: make(map[string]form.Record, len(cfg.seed)),
		opts:    cfg,
	}
	for _, record := range cfg.seed {
		if err := record.Validate(); err != nil {
			return nil, fmt.Errorf("catalog: seed %q: %w", record.ID, err)
		}
		if _, exists := m.records[record.ID]; exists {
			continue
		}
		m.records[record.ID] = record.Clone()
	}
	return m, nil
}

// ListForms returns every record, most recently modified first.
func (m *Memory) ListForms(ctx context.Context) ([]form.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]form.Record, 0, len(m.records))
	for _, record := range m.records {
		out = append(out, record.Clone())
	}
	m.mu.RUnlock()
	sortRecords(out)
	return out, nil
}

// GetForm returns the record with id.
func (m *Memory) GetForm(ctx context.Context, id string) (form.Record, error) {
	if err := ctx.Err(); err != nil {
		return form.Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[id]
	if !ok {
		return form.Record{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return record.Clone(), nil
}

// CreateForm inserts a new record stamped with the current time.
func (m *Memory) CreateForm(ctx context.Context, record form.Record) (form.Record, error) {
	if err := ctx.Err(); err != nil {
		return form.Record{}, err
	}
	if err := record.Validate(); err != nil {
		return form.Record{}, fmt.Errorf("catalog: create: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[record.ID]; exists {
		return form.Record{}, fmt.Errorf("%w: %q", ErrDuplicate, record.ID)
	}
	stored := record.Clone()
	stored.LastModified = m.opts.clock().UTC()
	m.records[stored.ID] = stored
	m.opts.logger.Info("form created", zap.String("form", stored.ID))
	return stored.Clone(), nil
}

// UpdateForm replaces an existing record. Path is pinned to the stored value.
func (m *Memory) UpdateForm(ctx context.Context, record form.Record) (form.Record, error) {
	if err := ctx.Err(); err != nil {
		return form.Record{}, err
	}
	if err := record.Validate(); err != nil {
		return form.Record{}, fmt.Errorf("catalog: update: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.records[record.ID]
	if !ok {
		return form.Record{}, fmt.Errorf("%w: %q", ErrNotFound, record.ID)
	}
	stored := record.Clone()
	stored.Path = current.Path
	stored.LastModified = m.opts.clock().UTC()
	m.records[stored.ID] = stored
	m.opts.logger.Info("form updated", zap.String("form", stored.ID))
	return stored.Clone(), nil
}

// Len reports the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
