package console

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/goliatone/go-formembed/pkg/artifact"
	"github.com/goliatone/go-formembed/pkg/form"
	"github.com/goliatone/go-formembed/pkg/preview"
	"github.com/goliatone/go-formembed/pkg/style"
)

var (
	// ErrViewClosed is returned by operations on a closed view.
	ErrViewClosed = errors.New("console: view closed")
	// ErrNothingSelected is returned when a result is requested before a
	// form is selected.
	ErrNothingSelected = errors.New("console: no form selected")
)

// Generator produces artifacts for a record and style.
type Generator interface {
	Generate(record form.Record, cfg style.Configuration) (artifact.Artifacts, error)
}

// Result is what the view currently shows.
type Result struct {
	Record    form.Record         `json:"record"`
	Style     style.Configuration `json:"style"`
	Artifacts artifact.Artifacts  `json:"artifacts"`
	Preview   preview.Handle      `json:"preview"`
}

// ViewOption customises a View.
type ViewOption func(*viewConfig)

type viewConfig struct {
	id     string
	style  style.Configuration
	logger *zap.Logger
	gauge  prometheus.Gauge
}

// WithID fixes the view id instead of generating one.
func WithID(id string) ViewOption {
	return func(cfg *viewConfig) {
		if id != "" {
			cfg.id = id
		}
	}
}

// WithStyle sets the style the view starts with.
func WithStyle(cfg style.Configuration) ViewOption {
	return func(vc *viewConfig) {
		vc.style = cfg.Normalize()
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) ViewOption {
	return func(cfg *viewConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithLiveGauge forwards a live handle gauge to the preview manager.
func WithLiveGauge(gauge prometheus.Gauge) ViewOption {
	return func(cfg *viewConfig) {
		cfg.gauge = gauge
	}
}

// View is one Embed/Preview view. The style lives only as long as the view.
type View struct {
	mu        sync.Mutex
	id        string
	generator Generator
	previews  *preview.Manager
	logger    *zap.Logger

	style     style.Configuration
	selected  *form.Record
	artifacts artifact.Artifacts
	closed    bool
}

// NewView creates a view publishing previews into store.
func NewView(generator Generator, store preview.Store, options ...ViewOption) (*View, error) {
	if generator == nil {
		return nil, errors.New("console: generator is required")
	}
	if store == nil {
		return nil, errors.New("console: preview store is required")
	}
	cfg := viewConfig{
		style:  style.Default(),
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.id == "" {
		cfg.id = uuid.NewString()
	}
	logger := cfg.logger.With(zap.String("view", cfg.id))

	managerOpts := []preview.Option{preview.WithLogger(logger)}
	if cfg.gauge != nil {
		managerOpts = append(managerOpts, preview.WithLiveGauge(cfg.gauge))
	}
	return &View{
		id:        cfg.id,
		generator: generator,
		previews:  preview.NewManager(store, managerOpts...),
		logger:    logger,
		style:     cfg.style,
	}, nil
}

// ID returns the view identifier.
func (v *View) ID() string {
	return v.id
}

// Style returns the current style.
func (v *View) Style() style.Configuration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.style
}

// Select shows record, regenerating artifacts and the preview for the
// current style. The previous selection is kept when generation fails.
func (v *View) Select(ctx context.Context, record form.Record) (Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return Result{}, ErrViewClosed
	}

	result, err := v.render(ctx, record, v.style)
	if err != nil {
		return Result{}, err
	}
	selected := record.Clone()
	v.selected = &selected
	v.artifacts = result.Artifacts
	v.logger.Debug("form selected", zap.String("form", record.ID))
	return result, nil
}

// SetStyle replaces the style after filling missing fields with defaults and
// regenerates the artifacts of the selected form, if any.
func (v *View) SetStyle(ctx context.Context, cfg style.Configuration) (Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return Result{}, ErrViewClosed
	}

	next := cfg.Normalize()
	if v.selected == nil {
		v.style = next
		return Result{Style: next}, nil
	}
	result, err := v.render(ctx, *v.selected, next)
	if err != nil {
		return Result{}, err
	}
	v.style = next
	v.artifacts = result.Artifacts
	return result, nil
}

// Deselect drops the selection and releases the preview handle.
func (v *View) Deselect(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clearLocked(ctx)
}

// Close releases everything the view holds. Further calls fail with
// ErrViewClosed; closing twice is a no-op.
func (v *View) Close(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.clearLocked(ctx)
	v.closed = true
	v.logger.Debug("view closed")
}

// Result returns what the view currently shows.
func (v *View) Result() (Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return Result{}, ErrViewClosed
	}
	if v.selected == nil {
		return Result{Style: v.style}, ErrNothingSelected
	}
	handle, _ := v.previews.Current()
	return Result{
		Record:    v.selected.Clone(),
		Style:     v.style,
		Artifacts: v.artifacts,
		Preview:   handle,
	}, nil
}

func (v *View) render(ctx context.Context, record form.Record, cfg style.Configuration) (Result, error) {
	arts, err := v.generator.Generate(record, cfg)
	if err != nil {
		return Result{}, fmt.Errorf("console: generate %q: %w", record.ID, err)
	}
	resource := arts.Preview()
	handle, err := v.previews.Publish(ctx, previewKey(record, cfg), resource.Content)
	if err != nil {
		return Result{}, fmt.Errorf("console: publish preview %q: %w", record.ID, err)
	}
	return Result{
		Record:    record.Clone(),
		Style:     cfg,
		Artifacts: arts,
		Preview:   handle,
	}, nil
}

func (v *View) clearLocked(ctx context.Context) {
	v.selected = nil
	v.artifacts = artifact.Artifacts{}
	v.previews.Release(ctx)
}

func previewKey(record form.Record, cfg style.Configuration) string {
	return record.ID + ":" + cfg.Fingerprint()
}
