package builder

import (
	"context"

	"github.com/goliatone/go-formembed/pkg/form"
)

// MountRef names the location the editor is drawn into.
type MountRef string

// AttachOptions are forwarded to the editor on attach.
type AttachOptions struct {
	// Display selects the builder display mode ("form" or "wizard").
	Display string `json:"display,omitempty"`
	// NoDefaultSubmitButton suppresses the submit button the builder adds
	// to blank forms.
	NoDefaultSubmitButton bool `json:"noDefaultSubmitButton,omitempty"`
}

// Editor is the external visual editor capability.
type Editor interface {
	// Attach mounts a new editor instance seeded with seed and blocks until
	// it reports ready, fails, or ctx is cancelled.
	Attach(ctx context.Context, mount MountRef, seed form.Schema, opts AttachOptions) (Instance, error)
}

// Instance is one attached editor. Destroy and Reset must not invoke change
// callbacks synchronously.
type Instance interface {
	// CurrentSchema returns the latest schema held by the editor.
	CurrentSchema() form.Schema
	// OnChange registers fn for schema change notifications, delivered in
	// emission order.
	OnChange(fn func(form.Schema))
	// Reset replaces the editor content without detaching.
	Reset(schema form.Schema) error
	// Destroy releases the instance.
	Destroy() error
	// Done is closed once the instance is gone, whether through Destroy or
	// because the editor surface disappeared on its own.
	Done() <-chan struct{}
}

// Catalog is the collaborator that persists builder output.
type Catalog interface {
	CreateForm(ctx context.Context, record form.Record) (form.Record, error)
	UpdateForm(ctx context.Context, record form.Record) (form.Record, error)
}

// NameSource solicits a display name from the user when a new form is saved.
type NameSource interface {
	RequestName(ctx context.Context, suggestion string) (string, error)
}

// NameSourceFunc adapts a function to NameSource.
type NameSourceFunc func(ctx context.Context, suggestion string) (string, error)

// RequestName calls f.
func (f NameSourceFunc) RequestName(ctx context.Context, suggestion string) (string, error) {
	return f(ctx, suggestion)
}
