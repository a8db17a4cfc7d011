// Package style describes the presentation choices applied when a form is
// packaged for embedding: container width, the mobile breakpoint, title
// visibility, free form CSS and an optional theme.
package style

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// WidthMode is either a fixed pixel width or the responsive sentinel.
type WidthMode string

const (
	Width400        WidthMode = "400"
	Width600        WidthMode = "600"
	Width800        WidthMode = "800"
	WidthResponsive WidthMode = "responsive"
)

const (
	DefaultWidthMode  = Width600
	DefaultBreakpoint = 768
	DefaultTheme      = "default"

	// responsiveMaxWidth caps the container when the width follows the page.
	responsiveMaxWidth = "600px"
)

// ErrConfigurationInvalid reports a width or breakpoint outside the supported
// values. Generation does not enforce it; callers decide whether to validate.
var ErrConfigurationInvalid = errors.New("style: configuration invalid")

// WidthModes lists the supported modes in display order.
func WidthModes() []WidthMode {
	return []WidthMode{Width400, Width600, Width800, WidthResponsive}
}

// Responsive reports whether the container should follow the page width.
func (m WidthMode) Responsive() bool {
	return m == WidthResponsive
}

// Known reports whether m is one of the supported modes.
func (m WidthMode) Known() bool {
	for _, mode := range WidthModes() {
		if m == mode {
			return true
		}
	}
	return false
}

// Width resolves the CSS width of the form container. Unknown modes are
// interpolated as pixel values.
func (m WidthMode) Width() string {
	if m.Responsive() {
		return "100%"
	}
	return string(m) + "px"
}

// MaxWidth resolves the CSS max-width of the form container.
func (m WidthMode) MaxWidth() string {
	if m.Responsive() {
		return responsiveMaxWidth
	}
	return string(m) + "px"
}

// Configuration is the user facing style state of the embed view.
type Configuration struct {
	WidthMode    WidthMode `json:"width" yaml:"width"`
	BreakpointPx int       `json:"responsiveBreakpoint" yaml:"breakpoint"`
	ShowTitle    bool      `json:"showTitle" yaml:"show_title"`
	CustomStyle  string    `json:"customCSS" yaml:"custom_css"`
	Theme        string    `json:"theme,omitempty" yaml:"theme,omitempty"`
	ThemeVariant string    `json:"themeVariant,omitempty" yaml:"theme_variant,omitempty"`
}

// Default returns the configuration a fresh embed view starts with.
func Default() Configuration {
	return Configuration{
		WidthMode:    DefaultWidthMode,
		BreakpointPx: DefaultBreakpoint,
		ShowTitle:    true,
		Theme:        DefaultTheme,
	}
}

// Normalize fills in defaults for missing width and breakpoint values so
// artifact generation always has something to interpolate. Present values are
// kept as-is, including unknown width modes.
func (c Configuration) Normalize() Configuration {
	c.WidthMode = WidthMode(strings.TrimSpace(string(c.WidthMode)))
	if c.WidthMode == "" {
		c.WidthMode = DefaultWidthMode
	}
	if c.BreakpointPx <= 0 {
		c.BreakpointPx = DefaultBreakpoint
	}
	c.Theme = strings.TrimSpace(c.Theme)
	if c.Theme == "" {
		c.Theme = DefaultTheme
	}
	c.ThemeVariant = strings.TrimSpace(c.ThemeVariant)
	return c
}

// Validate reports ErrConfigurationInvalid for unsupported widths or a
// non-positive breakpoint.
func (c Configuration) Validate() error {
	var problems []string
	if !c.WidthMode.Known() {
		problems = append(problems, fmt.Sprintf("unsupported width %q", c.WidthMode))
	}
	if c.BreakpointPx <= 0 {
		problems = append(problems, fmt.Sprintf("breakpoint must be positive, got %d", c.BreakpointPx))
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrConfigurationInvalid, strings.Join(problems, "; "))
}

// Themed reports whether a non default theme was chosen.
func (c Configuration) Themed() bool {
	theme := strings.TrimSpace(c.Theme)
	return theme != "" && theme != DefaultTheme
}

// Fingerprint returns a stable digest of every field that influences the
// generated artifacts.
func (c Configuration) Fingerprint() string {
	h := sha256.New()
	for _, part := range []string{
		string(c.WidthMode),
		strconv.Itoa(c.BreakpointPx),
		strconv.FormatBool(c.ShowTitle),
		c.CustomStyle,
		c.Theme,
		c.ThemeVariant,
	} {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{':'})
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// ParseWidthMode accepts the textual forms used by the HTTP API and CLI
// ("600", "600px", "responsive").
func ParseWidthMode(raw string) WidthMode {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	trimmed = strings.TrimSuffix(trimmed, "px")
	return WidthMode(trimmed)
}
