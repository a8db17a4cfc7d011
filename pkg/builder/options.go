package builder

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMount is the mount point used when none is configured.
	DefaultMount MountRef = "builder"
	// DefaultStallAfter is how long an attachment may take before the
	// session reports it as stalled.
	DefaultStallAfter = 15 * time.Second
)

// Option customises a Session.
type Option func(*Session)

// WithMount sets the mount point the editor is attached to.
func WithMount(mount MountRef) Option {
	return func(s *Session) {
		if trimmed := strings.TrimSpace(string(mount)); trimmed != "" {
			s.mount = MountRef(trimmed)
		}
	}
}

// WithAttachOptions forwards editor options on every attach.
func WithAttachOptions(opts AttachOptions) Option {
	return func(s *Session) {
		s.attachOpts = opts
	}
}

// WithNameSource sets how names are solicited for new forms.
func WithNameSource(names NameSource) Option {
	return func(s *Session) {
		s.names = names
	}
}

// WithStallAfter sets the stalled-attachment threshold. Zero disables it.
func WithStallAfter(d time.Duration) Option {
	return func(s *Session) {
		if d >= 0 {
			s.stallAfter = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithListener registers a listener for session events.
func WithListener(listener Listener) Option {
	return func(s *Session) {
		s.listener = listener
	}
}

// SaveOption customises a single Save call.
type SaveOption func(*saveConfig)

type saveConfig struct {
	name string
}

// SaveWithName supplies the display name instead of asking the NameSource.
// For records being edited it overrides the name taken from the schema title.
func SaveWithName(name string) SaveOption {
	return func(cfg *saveConfig) {
		cfg.name = strings.TrimSpace(name)
	}
}
