package testsupport

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formembed/pkg/catalog"
	"github.com/goliatone/go-formembed/pkg/form"
)

// ContactSchema is a small form definition used across package tests.
const ContactSchema = `{"title":"Contact Form","display":"form","components":[` +
	`{"type":"textfield","key":"name","label":"Name"},` +
	`{"type":"email","key":"email","label":"Email"},` +
	`{"type":"textarea","key":"message","label":"Message"}]}`

// ContactForm returns the published sample record addressed as "test".
func ContactForm() form.Record {
	return form.Record{
		ID:           "test",
		Name:         "Contact Form",
		Path:         "test",
		Schema:       form.Schema(ContactSchema),
		Status:       form.StatusPublished,
		Submissions:  23,
		Views:        145,
		LastModified: time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC),
	}
}

// MustSchema parses raw as a schema, failing the test on error.
func MustSchema(t *testing.T, raw string) form.Schema {
	t.Helper()
	schema, err := form.ParseSchema([]byte(raw))
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	return schema
}

// SeededCatalog returns an in-memory catalog holding the sample forms.
func SeededCatalog(t *testing.T, opts ...catalog.Option) *catalog.Memory {
	t.Helper()
	opts = append([]catalog.Option{catalog.WithSeed(catalog.DefaultSeed()...)}, opts...)
	mem, err := catalog.NewMemory(opts...)
	if err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	return mem
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}

// CompareGolden returns a diff string if the values differ.
func CompareGolden(want, got any) string {
	return cmp.Diff(want, got)
}

// CaptureTemplateOutput executes a render function that writes to an io.Writer,
// returning both the string result and the writer contents.
func CaptureTemplateOutput(t *testing.T, render func(io.Writer) (string, error)) (string, string) {
	t.Helper()

	var buf bytes.Buffer
	out, err := render(&buf)
	if err != nil {
		t.Fatalf("render template: %v", err)
	}

	return out, buf.String()
}
