// Package template defines the template rendering seam shared by the artifact
// generator and the builder host page. The gotemplate subpackage provides the
// pongo2 backed implementation.
package template
