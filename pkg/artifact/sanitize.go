package artifact

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stylePolicyOnce sync.Once
	stylePolicy     *bluemonday.Policy
)

const maxSanitizePasses = 4

// stripMarkup removes HTML tags from CSS text while keeping CSS syntax
// (quotes, child combinators) intact. Passes repeat until the text is stable
// so split tags cannot reassemble into a closing style tag.
func stripMarkup(raw string) string {
	policy := styleSanitizer()
	current := raw
	for i := 0; i < maxSanitizePasses; i++ {
		cleaned := html.UnescapeString(policy.Sanitize(current))
		if cleaned == current {
			break
		}
		current = cleaned
	}
	if strings.Contains(strings.ToLower(current), "</style") {
		current = strings.ReplaceAll(current, "</", "<\\/")
	}
	return strings.TrimSpace(current)
}

func styleSanitizer() *bluemonday.Policy {
	stylePolicyOnce.Do(func() {
		stylePolicy = bluemonday.StrictPolicy()
	})
	return stylePolicy
}
