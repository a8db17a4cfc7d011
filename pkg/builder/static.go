package builder

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/goliatone/go-formembed/pkg/form"
)

// ErrInstanceDestroyed is returned by StaticInstance once destroyed.
var ErrInstanceDestroyed = errors.New("builder: editor instance destroyed")

// StaticEditor is an in-process Editor without a visual surface. It backs
// headless imports and tests.
type StaticEditor struct {
	mu           sync.Mutex
	gate         <-chan struct{}
	ignoreCancel bool
	fail         error
	override     form.Schema
	instances    []*StaticInstance
}

// StaticOption customises a StaticEditor.
type StaticOption func(*StaticEditor)

// WithReadyGate holds every attach until gate is closed or receives.
func WithReadyGate(gate <-chan struct{}) StaticOption {
	return func(e *StaticEditor) {
		e.gate = gate
	}
}

// WithIgnoreCancel makes gated attaches ignore context cancellation, the way
// a slow remote editor may still report ready after being abandoned.
func WithIgnoreCancel() StaticOption {
	return func(e *StaticEditor) {
		e.ignoreCancel = true
	}
}

// WithAttachFailure makes every attach fail with err.
func WithAttachFailure(err error) StaticOption {
	return func(e *StaticEditor) {
		e.fail = err
	}
}

// WithInitialSchema makes new instances start from schema instead of the
// seed, as when a definition is imported from disk.
func WithInitialSchema(schema form.Schema) StaticOption {
	return func(e *StaticEditor) {
		e.override = schema.Clone()
	}
}

// NewStaticEditor creates a StaticEditor.
func NewStaticEditor(options ...StaticOption) *StaticEditor {
	e := &StaticEditor{}
	for _, opt := range options {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Attach implements Editor.
func (e *StaticEditor) Attach(ctx context.Context, mount MountRef, seed form.Schema, opts AttachOptions) (Instance, error) {
	if e.gate != nil {
		if e.ignoreCancel {
			<-e.gate
		} else {
			select {
			case <-e.gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if e.fail != nil {
		return nil, e.fail
	}

	initial := seed
	if !e.override.IsZero() {
		initial = e.override
	}
	inst := &StaticInstance{
		mount:  mount,
		seed:   seed.Clone(),
		opts:   opts,
		schema: initial.Clone(),
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	e.instances = append(e.instances, inst)
	e.mu.Unlock()
	return inst, nil
}

// Instances returns every instance attached so far, oldest first.
func (e *StaticEditor) Instances() []*StaticInstance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*StaticInstance(nil), e.instances...)
}

// Live counts attached instances that have not been destroyed.
func (e *StaticEditor) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	live := 0
	for _, inst := range e.instances {
		if !inst.Destroyed() {
			live++
		}
	}
	return live
}

// StaticInstance is an Instance produced by StaticEditor.
type StaticInstance struct {
	mu        sync.Mutex
	mount     MountRef
	seed      form.Schema
	opts      AttachOptions
	schema    form.Schema
	listeners []func(form.Schema)
	destroyed bool
	done      chan struct{}
}

// Seed returns the schema the instance was attached with.
func (i *StaticInstance) Seed() form.Schema {
	return i.seed.Clone()
}

// Mount returns the mount the instance was attached to.
func (i *StaticInstance) Mount() MountRef {
	return i.mount
}

// Options returns the attach options the instance received.
func (i *StaticInstance) Options() AttachOptions {
	return i.opts
}

// CurrentSchema implements Instance.
func (i *StaticInstance) CurrentSchema() form.Schema {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.schema.Clone()
}

// OnChange implements Instance.
func (i *StaticInstance) OnChange(fn func(form.Schema)) {
	if fn == nil {
		return
	}
	i.mu.Lock()
	i.listeners = append(i.listeners, fn)
	i.mu.Unlock()
}

// Reset implements Instance. Listeners are not notified.
func (i *StaticInstance) Reset(schema form.Schema) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed {
		return ErrInstanceDestroyed
	}
	i.schema = schema.Clone()
	return nil
}

// Destroy implements Instance. It is idempotent.
func (i *StaticInstance) Destroy() error {
	i.release()
	return nil
}

// Done implements Instance.
func (i *StaticInstance) Done() <-chan struct{} {
	return i.done
}

// Disconnect drops the instance as if the editor surface went away without
// being asked to.
func (i *StaticInstance) Disconnect() {
	i.release()
}

func (i *StaticInstance) release() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed {
		return
	}
	i.destroyed = true
	i.listeners = nil
	close(i.done)
}

// Destroyed reports whether Destroy was called.
func (i *StaticInstance) Destroyed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.destroyed
}

// Edit replaces the schema as a user edit would and notifies listeners on
// the calling goroutine.
func (i *StaticInstance) Edit(schema form.Schema) error {
	i.mu.Lock()
	if i.destroyed {
		i.mu.Unlock()
		return ErrInstanceDestroyed
	}
	i.schema = schema.Clone()
	listeners := slices.Clone(i.listeners)
	i.mu.Unlock()

	for _, fn := range listeners {
		fn(schema.Clone())
	}
	return nil
}
