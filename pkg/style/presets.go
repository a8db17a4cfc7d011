package style

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Presets maps a preset name to a configuration.
type Presets map[string]Configuration

type presetFile struct {
	Presets map[string]yaml.Node `yaml:"presets"`
}

// LoadPresets decodes named configurations from YAML:
//
//	presets:
//	  sidebar:
//	    width: "400"
//	    breakpoint: 640
//	    show_title: false
//
// Each preset starts from Default so omitted keys keep their default value.
func LoadPresets(r io.Reader) (Presets, error) {
	var file presetFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return Presets{}, nil
		}
		return nil, fmt.Errorf("style: decode presets: %w", err)
	}
	out := make(Presets, len(file.Presets))
	for name, node := range file.Presets {
		cfg := Default()
		if err := node.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("style: decode preset %q: %w", name, err)
		}
		out[name] = cfg.Normalize()
	}
	return out, nil
}

// LoadPresetsFile reads presets from path.
func LoadPresetsFile(path string) (Presets, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("style: open presets: %w", err)
	}
	defer f.Close()
	return LoadPresets(f)
}

// Names returns the preset names sorted alphabetically.
func (p Presets) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named preset.
func (p Presets) Lookup(name string) (Configuration, bool) {
	cfg, ok := p[name]
	return cfg, ok
}
