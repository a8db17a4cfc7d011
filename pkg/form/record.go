package form

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Status describes the publication lifecycle of a form.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished:
		return true
	default:
		return false
	}
}

var (
	// ErrNameRequired is returned when a record would be created without a
	// usable display name.
	ErrNameRequired = errors.New("form: name is required")
	// ErrInvalidRecord wraps structural problems reported by Record.Validate.
	ErrInvalidRecord = errors.New("form: invalid record")
)

// Record is one manageable form in the catalog.
type Record struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Path         string    `json:"path" yaml:"path"`
	Schema       Schema    `json:"schema,omitempty" yaml:"schema,omitempty"`
	Status       Status    `json:"status" yaml:"status"`
	Submissions  int       `json:"submissions" yaml:"submissions"`
	Views        int       `json:"views" yaml:"views"`
	LastModified time.Time `json:"lastModified" yaml:"lastModified"`
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonWordChars  = regexp.MustCompile(`[^\w-]`)
)

// DeriveID turns a display name into the URL safe identifier used for both
// the record id and its routing path: lowercased, whitespace runs collapsed
// to a hyphen, anything outside [A-Za-z0-9_-] removed.
func DeriveID(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = whitespaceRun.ReplaceAllString(slug, "-")
	return nonWordChars.ReplaceAllString(slug, "")
}

// NewRecord builds a fresh draft record whose id and path derive from name.
func NewRecord(name string, schema Schema) (Record, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Record{}, ErrNameRequired
	}
	id := DeriveID(trimmed)
	if id == "" {
		return Record{}, fmt.Errorf("%w: %q has no usable characters", ErrNameRequired, trimmed)
	}
	if schema.IsZero() {
		schema = BlankSchema()
	}
	return Record{
		ID:     id,
		Name:   trimmed,
		Path:   id,
		Schema: schema.Clone(),
		Status: StatusDraft,
	}, nil
}

// Revise returns a copy of the record carrying schema. The name follows the
// schema title when one is declared; id and path are left untouched.
func (r Record) Revise(schema Schema) Record {
	out := r.Clone()
	out.Schema = schema.Clone()
	if title := schema.Title(); title != "" {
		out.Name = title
	}
	return out
}

// Clone returns a deep copy so callers can hand records across components
// without sharing the schema buffer.
func (r Record) Clone() Record {
	out := r
	out.Schema = r.Schema.Clone()
	return out
}

// Validate checks the invariants the catalog relies on.
func (r Record) Validate() error {
	var problems []string
	if strings.TrimSpace(r.ID) == "" {
		problems = append(problems, "id is empty")
	}
	if strings.TrimSpace(r.Path) == "" {
		problems = append(problems, "path is empty")
	}
	if strings.TrimSpace(r.Name) == "" {
		problems = append(problems, "name is empty")
	}
	if !r.Status.Valid() {
		problems = append(problems, fmt.Sprintf("unknown status %q", r.Status))
	}
	if r.Submissions < 0 || r.Views < 0 {
		problems = append(problems, "counters must be non-negative")
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(problems, ", "))
}
