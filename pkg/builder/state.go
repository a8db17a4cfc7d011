package builder

// State is the lifecycle state of a Session.
type State int

const (
	StateEmpty State = iota
	StateAttaching
	StateReady
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAttaching:
		return "attaching"
	case StateReady:
		return "ready"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Mode tells whether the session edits an existing record or creates one.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// EventKind enumerates the notifications a Session emits.
type EventKind string

const (
	EventStateChanged  EventKind = "state_changed"
	EventAttachFailed  EventKind = "attach_failed"
	EventAttachStalled EventKind = "attach_stalled"
	EventEditorLost    EventKind = "editor_lost"
	EventSchemaChanged EventKind = "schema_changed"
	EventSaved         EventKind = "saved"
	EventCleared       EventKind = "cleared"
)

// Event is delivered to the session listener outside of the session lock.
type Event struct {
	Kind       EventKind
	State      State
	Generation uint64
	FormID     string
	Err        error
}

// Listener receives session events.
type Listener func(Event)

// Status is a point in time view of the session.
type Status struct {
	State      State  `json:"state"`
	Mode       Mode   `json:"mode"`
	FormID     string `json:"formId,omitempty"`
	Generation uint64 `json:"generation"`
	Stalled    bool   `json:"stalled"`
	Error      string `json:"error,omitempty"`
	Components int    `json:"components"`
	err        error
}

// Err returns the attach failure reported for the current instance, if any.
func (s Status) Err() error {
	return s.err
}
