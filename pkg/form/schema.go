package form

import (
	"bytes"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Schema is the structural definition produced by the visual builder. The
// console never interprets it beyond reading a title hint and counting top
// level components; the bytes are forwarded verbatim to the builder and the
// hosting service.
type Schema []byte

var blankSchema = []byte(`{"display":"form","components":[]}`)

// BlankSchema returns the seed used for brand new forms.
func BlankSchema() Schema {
	return Schema(bytes.Clone(blankSchema))
}

// ParseSchema validates that raw is a JSON document and wraps it.
func ParseSchema(raw []byte) (Schema, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("form: schema is empty")
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("form: schema is not valid JSON")
	}
	return Schema(bytes.Clone(trimmed)), nil
}

// IsZero reports whether the schema carries no content.
func (s Schema) IsZero() bool {
	return len(bytes.TrimSpace(s)) == 0
}

// Clone copies the underlying buffer.
func (s Schema) Clone() Schema {
	if s == nil {
		return nil
	}
	return Schema(bytes.Clone(s))
}

// Equal compares two schemas byte for byte.
func (s Schema) Equal(other Schema) bool {
	return bytes.Equal(s, other)
}

// Title returns the top level title declared by the schema, if any.
func (s Schema) Title() string {
	if s.IsZero() {
		return ""
	}
	var head struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(s, &head); err != nil {
		return ""
	}
	return strings.TrimSpace(head.Title)
}

// ComponentCount returns the number of top level components, or zero when the
// schema does not follow the usual {"components": [...]} shape.
func (s Schema) ComponentCount() int {
	if s.IsZero() {
		return 0
	}
	var head struct {
		Components []json.RawMessage `json:"components"`
	}
	if err := json.Unmarshal(s, &head); err != nil {
		return 0
	}
	return len(head.Components)
}

// MarshalJSON emits the schema verbatim.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s.IsZero() {
		return []byte("null"), nil
	}
	return bytes.Clone(s), nil
}

// UnmarshalJSON stores the raw document without decoding it.
func (s *Schema) UnmarshalJSON(data []byte) error {
	if s == nil {
		return fmt.Errorf("form: UnmarshalJSON on nil schema")
	}
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*s = nil
		return nil
	}
	*s = Schema(bytes.Clone(trimmed))
	return nil
}

// UnmarshalYAML lets catalog seed files describe schemas inline as YAML.
func (s *Schema) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!str" {
		parsed, err := ParseSchema([]byte(node.Value))
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	}
	var decoded any
	if err := node.Decode(&decoded); err != nil {
		return fmt.Errorf("form: decode yaml schema: %w", err)
	}
	if decoded == nil {
		*s = nil
		return nil
	}
	raw, err := json.Marshal(decoded)
	if err != nil {
		return fmt.Errorf("form: encode yaml schema: %w", err)
	}
	*s = Schema(raw)
	return nil
}

// MarshalYAML renders the schema as a YAML structure.
func (s Schema) MarshalYAML() (any, error) {
	if s.IsZero() {
		return nil, nil
	}
	var decoded any
	if err := json.Unmarshal(s, &decoded); err != nil {
		return nil, fmt.Errorf("form: decode schema: %w", err)
	}
	return decoded, nil
}
