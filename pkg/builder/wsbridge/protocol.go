package wsbridge

import (
	"github.com/goliatone/go-formembed/pkg/builder"
	"github.com/goliatone/go-formembed/pkg/form"
)

// Message types exchanged with the builder page.
const (
	TypeSeed    = "seed"
	TypeReset   = "reset"
	TypeDestroy = "destroy"
	TypeReady   = "ready"
	TypeChange  = "change"
	TypeError   = "error"
)

// Message is the JSON frame used in both directions.
type Message struct {
	Type    string                 `json:"type"`
	Schema  form.Schema            `json:"schema,omitempty"`
	Options *builder.AttachOptions `json:"options,omitempty"`
	Error   string                 `json:"error,omitempty"`
}
