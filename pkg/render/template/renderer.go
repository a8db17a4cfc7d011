package template

import (
	"io"
)

// TemplateRenderer renders named templates or inline template strings with a
// data context. Implementations write the rendered text to every writer in
// out in addition to returning it.
type TemplateRenderer interface {
	RenderTemplate(name string, data any, out ...io.Writer) (string, error)
	RenderString(templateContent string, data any, out ...io.Writer) (string, error)
	GlobalContext(data any) error
}
