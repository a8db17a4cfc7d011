package builder

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-formembed/pkg/form"
)

var (
	// ErrEditorNotAttached is returned by operations that need a ready
	// editor.
	ErrEditorNotAttached = errors.New("builder: editor not attached")
	// ErrEditorAttachFailure marks failures to load or initialise the
	// editor.
	ErrEditorAttachFailure = errors.New("builder: editor failed to load")
	// ErrNameRequired is returned when a new form is saved without a name.
	ErrNameRequired = form.ErrNameRequired
	// ErrEditorLost is the cause reported when a ready editor disappears
	// without being detached.
	ErrEditorLost = errors.New("builder: editor instance went away")
	// ErrDetached is returned by Wait when the attachment it waited for was
	// abandoned.
	ErrDetached = errors.New("builder: session detached")
)

// AttachError describes a failed attachment. It matches
// ErrEditorAttachFailure with errors.Is.
type AttachError struct {
	Mount      MountRef
	Generation uint64
	Cause      error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("builder: editor failed to load at %q (attempt %d): %v", e.Mount, e.Generation, e.Cause)
}

func (e *AttachError) Unwrap() []error {
	return []error{ErrEditorAttachFailure, e.Cause}
}
