package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/goliatone/go-formembed/pkg/form"
	rendertemplate "github.com/goliatone/go-formembed/pkg/render/template"
	gotemplate "github.com/goliatone/go-formembed/pkg/render/template/gotemplate"
	"github.com/goliatone/go-formembed/pkg/style"
	theme "github.com/goliatone/go-theme"
)

const (
	documentTemplate = "document.tmpl"
	snippetTemplate  = "snippet.tmpl"

	// PreviewMediaType is the content type preview resources are served with.
	PreviewMediaType = "text/html"

	mountPrefix       = "formio-"
	untitledPageTitle = "Embedded form"
)

// ErrIncompleteRecord is returned when the record lacks the identity needed
// to address the form.
var ErrIncompleteRecord = errors.New("artifact: record id and path are required")

// Artifacts holds the generated outputs for one record and configuration.
type Artifacts struct {
	FormID   string `json:"formId"`
	MountID  string `json:"mountId"`
	FormURL  string `json:"formUrl"`
	Document string `json:"document"`
	Snippet  string `json:"snippet"`
}

// PreviewResource describes the content a preview handle must serve.
type PreviewResource struct {
	MediaType string
	Content   []byte
	Digest    string
}

// Preview returns the descriptor of the preview resource for the document.
func (a Artifacts) Preview() PreviewResource {
	sum := sha256.Sum256([]byte(a.Document))
	return PreviewResource{
		MediaType: PreviewMediaType,
		Content:   []byte(a.Document),
		Digest:    hex.EncodeToString(sum[:]),
	}
}

// Generator renders artifacts from the embedded templates.
type Generator struct {
	templates   rendertemplate.TemplateRenderer
	service     Service
	themes      theme.ThemeSelector
	stylePolicy StylePolicy
}

// New constructs a generator applying the provided options.
func New(options ...Option) (*Generator, error) {
	cfg := config{
		service:    DefaultService(),
		templateFS: TemplatesFS(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	templateRenderer := cfg.templateRenderer
	if templateRenderer == nil {
		if err := ensureTemplates(cfg.templateFS); err != nil {
			return nil, err
		}
		engine, err := gotemplate.New(
			gotemplate.WithName("formembed-artifacts"),
			gotemplate.WithFS(cfg.templateFS),
			gotemplate.WithExtension(".tmpl"),
		)
		if err != nil {
			return nil, fmt.Errorf("artifact: configure template renderer: %w", err)
		}
		templateRenderer = engine
	}

	return &Generator{
		templates:   templateRenderer,
		service:     cfg.service.normalized(),
		themes:      cfg.themes,
		stylePolicy: cfg.stylePolicy,
	}, nil
}

// Service returns the hosting service the generator targets.
func (g *Generator) Service() Service {
	return g.service
}

// Generate produces the full document and inline snippet for record styled by
// cfg. The configuration is used as given; callers normalize it first.
func (g *Generator) Generate(record form.Record, cfg style.Configuration) (Artifacts, error) {
	if g == nil || g.templates == nil {
		return Artifacts{}, errors.New("artifact: generator is not configured")
	}
	if strings.TrimSpace(record.ID) == "" || strings.TrimSpace(record.Path) == "" {
		return Artifacts{}, ErrIncompleteRecord
	}

	mountID := MountID(record.ID)
	formURL := g.service.FormURL(record.Path)
	customStyle := g.customStyle(cfg.CustomStyle)
	themeCSS := g.themeCSS(cfg)

	pageTitle := untitledPageTitle
	if cfg.ShowTitle {
		pageTitle = record.Name
	}

	document, err := g.templates.RenderTemplate(documentTemplate, map[string]any{
		"page_title":     pageTitle,
		"stylesheet_url": g.service.StylesheetURL,
		"script_url":     g.service.ScriptURL,
		"theme_css":      themeCSS,
		"width":          cfg.WidthMode.Width(),
		"max_width":      cfg.WidthMode.MaxWidth(),
		"custom_style":   customStyle,
		"breakpoint":     strconv.Itoa(cfg.BreakpointPx),
		"show_title":     cfg.ShowTitle,
		"form_name":      record.Name,
		"mount_id":       mountID,
		"mount_id_js":    jsString(mountID),
		"origin_js":      jsString(g.service.Origin),
		"form_url_js":    jsString(formURL),
	})
	if err != nil {
		return Artifacts{}, fmt.Errorf("artifact: render document: %w", err)
	}

	snippetStyle := joinStyle(themeCSS, customStyle)
	styleJS := ""
	if snippetStyle != "" {
		styleJS = jsString(snippetStyle)
	}

	snippet, err := g.templates.RenderTemplate(snippetTemplate, map[string]any{
		"mount_id_js":       jsString(mountID),
		"width_js":          jsString(cfg.WidthMode.Width()),
		"style_js":          styleJS,
		"stylesheet_url_js": jsString(g.service.StylesheetURL),
		"script_url_js":     jsString(g.service.ScriptURL),
		"origin_js":         jsString(g.service.Origin),
		"form_url_js":       jsString(formURL),
	})
	if err != nil {
		return Artifacts{}, fmt.Errorf("artifact: render snippet: %w", err)
	}

	return Artifacts{
		FormID:   record.ID,
		MountID:  mountID,
		FormURL:  formURL,
		Document: document,
		Snippet:  snippet,
	}, nil
}

// MountID returns the DOM id of the element a form is rendered into.
func MountID(formID string) string {
	return mountPrefix + formID
}

func (g *Generator) customStyle(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	if g.stylePolicy == StyleStripMarkup {
		return stripMarkup(raw)
	}
	return raw
}

func joinStyle(parts ...string) string {
	var kept []string
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, "\n")
}

// jsString encodes s as a JavaScript string literal. HTML significant
// characters are escaped so the literal cannot terminate a script element.
func jsString(s string) string {
	encoded, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(encoded)
}

func ensureTemplates(store fs.FS) error {
	if store == nil {
		return errors.New("artifact: template file system is nil")
	}
	for _, name := range []string{documentTemplate, snippetTemplate} {
		if _, err := fs.Stat(store, name); err != nil {
			return fmt.Errorf("artifact: template %q not found: %w", name, err)
		}
	}
	return nil
}
