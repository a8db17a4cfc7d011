package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formembed/pkg/form"
)

type seedFile struct {
	Forms []form.Record `yaml:"forms"`
}

// LoadSeed decodes records from a YAML document with a top level "forms"
// list. Missing ids and paths are derived from the name and a missing status
// defaults to draft.
func LoadSeed(r io.Reader) ([]form.Record, error) {
	var doc seedFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("catalog: decode seed: %w", err)
	}

	records := make([]form.Record, 0, len(doc.Forms))
	for i, record := range doc.Forms {
		record.Name = strings.TrimSpace(record.Name)
		if record.ID == "" {
			record.ID = form.DeriveID(record.Name)
		}
		if record.Path == "" {
			record.Path = record.ID
		}
		if record.Status == "" {
			record.Status = form.StatusDraft
		}
		if err := record.Validate(); err != nil {
			return nil, fmt.Errorf("catalog: seed entry %d: %w", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// LoadSeedFile reads LoadSeed input from path.
func LoadSeedFile(path string) ([]form.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open seed: %w", err)
	}
	defer f.Close()
	return LoadSeed(f)
}
