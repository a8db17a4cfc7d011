package artifact

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	theme "github.com/goliatone/go-theme"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formembed/pkg/style"
)

// ErrThemeNotFound is returned by ManifestSelector for unknown themes.
var ErrThemeNotFound = errors.New("artifact: theme not found")

// themeCSS resolves the configured theme into a :root block of CSS custom
// properties. Unknown themes produce no block; generation never fails on a
// theme lookup.
func (g *Generator) themeCSS(cfg style.Configuration) string {
	if g.themes == nil || !cfg.Themed() {
		return ""
	}
	selection, err := g.themes.Select(strings.TrimSpace(cfg.Theme), strings.TrimSpace(cfg.ThemeVariant))
	if err != nil || selection == nil {
		return ""
	}
	return cssVarsBlock(selectionTokens(selection))
}

func selectionTokens(selection *theme.Selection) map[string]string {
	if selection.Manifest == nil {
		return nil
	}
	tokens := make(map[string]string, len(selection.Manifest.Tokens))
	for key, value := range selection.Manifest.Tokens {
		tokens[key] = value
	}
	if selection.Variant != "" {
		if variant, ok := selection.Manifest.Variants[selection.Variant]; ok {
			for key, value := range variant.Tokens {
				tokens[key] = value
			}
		}
	}
	return tokens
}

func cssVarsBlock(tokens map[string]string) string {
	if len(tokens) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tokens))
	for key := range tokens {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("    :root {\n")
	for _, key := range keys {
		name := strings.TrimSpace(key)
		if !strings.HasPrefix(name, "--") {
			name = "--" + name
		}
		b.WriteString("      ")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(tokens[key])
		b.WriteString(";\n")
	}
	b.WriteString("    }")
	return b.String()
}

// ManifestSelector is a ThemeSelector over an in-memory set of manifests.
type ManifestSelector struct {
	manifests      map[string]*theme.Manifest
	defaultVariant string
}

var _ theme.ThemeSelector = (*ManifestSelector)(nil)

// NewManifestSelector indexes manifests by name.
func NewManifestSelector(manifests ...*theme.Manifest) *ManifestSelector {
	sel := &ManifestSelector{manifests: make(map[string]*theme.Manifest, len(manifests))}
	for _, manifest := range manifests {
		if manifest == nil || strings.TrimSpace(manifest.Name) == "" {
			continue
		}
		sel.manifests[manifest.Name] = manifest
	}
	return sel
}

// Select returns the manifest registered under name. An unknown variant
// falls back to the base tokens.
func (s *ManifestSelector) Select(name, variant string, _ ...theme.QueryOption) (*theme.Selection, error) {
	manifest, ok := s.manifests[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrThemeNotFound, name)
	}
	if variant == "" {
		variant = s.defaultVariant
	}
	if _, ok := manifest.Variants[variant]; !ok {
		variant = ""
	}
	return &theme.Selection{
		Theme:    manifest.Name,
		Variant:  variant,
		Manifest: manifest,
	}, nil
}

// Names lists the registered themes.
func (s *ManifestSelector) Names() []string {
	names := make([]string, 0, len(s.manifests))
	for name := range s.manifests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type themeFile struct {
	Themes map[string]struct {
		Version  string            `yaml:"version"`
		Tokens   map[string]string `yaml:"tokens"`
		Variants map[string]struct {
			Tokens map[string]string `yaml:"tokens"`
		} `yaml:"variants"`
	} `yaml:"themes"`
}

// LoadThemes reads theme manifests from YAML:
//
//	themes:
//	  acme:
//	    tokens:
//	      brand: "#123456"
//	    variants:
//	      dark:
//	        tokens:
//	          brand: "#654321"
func LoadThemes(r io.Reader) (*ManifestSelector, error) {
	var file themeFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("artifact: decode themes: %w", err)
	}
	manifests := make([]*theme.Manifest, 0, len(file.Themes))
	for name, entry := range file.Themes {
		version := entry.Version
		if version == "" {
			version = "1.0.0"
		}
		manifest := &theme.Manifest{
			Name:    name,
			Version: version,
			Tokens:  entry.Tokens,
		}
		if len(entry.Variants) > 0 {
			manifest.Variants = make(map[string]theme.Variant, len(entry.Variants))
			for variantName, variant := range entry.Variants {
				manifest.Variants[variantName] = theme.Variant{Tokens: variant.Tokens}
			}
		}
		manifests = append(manifests, manifest)
	}
	return NewManifestSelector(manifests...), nil
}
