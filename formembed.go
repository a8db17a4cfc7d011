// Package formembed packages form.io form definitions for embedding on other
// sites. Most callers want the pkg/ packages directly; this package offers the
// one-call path and the bundled templates.
package formembed

import (
	"io/fs"

	"github.com/goliatone/go-formembed/pkg/artifact"
	"github.com/goliatone/go-formembed/pkg/builder/wsbridge"
	"github.com/goliatone/go-formembed/pkg/form"
	"github.com/goliatone/go-formembed/pkg/style"
)

// Artifacts aliases artifact.Artifacts.
type Artifacts = artifact.Artifacts

// Generate builds the standalone document and inline snippet for record using
// a generator configured by options.
func Generate(record form.Record, cfg style.Configuration, options ...artifact.Option) (Artifacts, error) {
	gen, err := artifact.New(options...)
	if err != nil {
		return Artifacts{}, err
	}
	return gen.Generate(record, cfg)
}

// EmbeddedTemplates exposes the built-in document and snippet templates so
// callers can copy and extend them before passing them back through
// artifact.WithTemplatesFS.
func EmbeddedTemplates() fs.FS {
	return artifact.TemplatesFS()
}

// BuilderTemplates exposes the builder host page template.
func BuilderTemplates() fs.FS {
	return wsbridge.TemplatesFS()
}
