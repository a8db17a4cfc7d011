package artifact

import (
	"io/fs"
	"os"
	"strings"

	rendertemplate "github.com/goliatone/go-formembed/pkg/render/template"
	theme "github.com/goliatone/go-theme"
)

const (
	DefaultOrigin        = "https://forms.example.com"
	DefaultScriptURL     = "https://cdn.form.io/formiojs/formio.full.min.js"
	DefaultStylesheetURL = "https://cdn.form.io/formiojs/formio.full.min.css"
)

// Service describes the external form hosting and rendering service that the
// generated artifacts reference. The generator never calls it.
type Service struct {
	// Origin is the base address forms are served from; a form lives at
	// {Origin}/{path}.
	Origin        string
	ScriptURL     string
	StylesheetURL string
}

// DefaultService returns the form.io CDN bundle with the default origin.
func DefaultService() Service {
	return Service{
		Origin:        DefaultOrigin,
		ScriptURL:     DefaultScriptURL,
		StylesheetURL: DefaultStylesheetURL,
	}
}

func (s Service) normalized() Service {
	def := DefaultService()
	out := Service{
		Origin:        strings.TrimRight(strings.TrimSpace(s.Origin), "/"),
		ScriptURL:     strings.TrimSpace(s.ScriptURL),
		StylesheetURL: strings.TrimSpace(s.StylesheetURL),
	}
	if out.Origin == "" {
		out.Origin = def.Origin
	}
	if out.ScriptURL == "" {
		out.ScriptURL = def.ScriptURL
	}
	if out.StylesheetURL == "" {
		out.StylesheetURL = def.StylesheetURL
	}
	return out
}

// FormURL returns the address of the form at path on the hosting service.
func (s Service) FormURL(path string) string {
	return strings.TrimRight(s.Origin, "/") + "/" + strings.TrimLeft(path, "/")
}

// StylePolicy controls how operator supplied CSS reaches the output.
type StylePolicy int

const (
	// StyleTrusted inserts custom CSS verbatim. The operator is responsible
	// for its content.
	StyleTrusted StylePolicy = iota
	// StyleStripMarkup removes anything that parses as HTML markup so the
	// text cannot close the surrounding style element.
	StyleStripMarkup
)

// Option customises the generator.
type Option func(*config)

type config struct {
	service          Service
	templateFS       fs.FS
	templateRenderer rendertemplate.TemplateRenderer
	themes           theme.ThemeSelector
	stylePolicy      StylePolicy
}

// WithService points generated artifacts at a different hosting service.
func WithService(service Service) Option {
	return func(cfg *config) {
		cfg.service = service
	}
}

// WithTemplatesFS supplies an alternate document/snippet template bundle.
func WithTemplatesFS(files fs.FS) Option {
	return func(cfg *config) {
		if files != nil {
			cfg.templateFS = files
		}
	}
}

// WithTemplatesDir loads templates from a directory on disk.
func WithTemplatesDir(path string) Option {
	return func(cfg *config) {
		if path == "" {
			return
		}
		cfg.templateFS = os.DirFS(path)
	}
}

// WithTemplateRenderer injects a custom template renderer.
func WithTemplateRenderer(renderer rendertemplate.TemplateRenderer) Option {
	return func(cfg *config) {
		if renderer != nil {
			cfg.templateRenderer = renderer
		}
	}
}

// WithThemeSelector resolves style themes into CSS custom properties.
func WithThemeSelector(selector theme.ThemeSelector) Option {
	return func(cfg *config) {
		cfg.themes = selector
	}
}

// WithStylePolicy selects how custom CSS is inserted.
func WithStylePolicy(policy StylePolicy) Option {
	return func(cfg *config) {
		cfg.stylePolicy = policy
	}
}
