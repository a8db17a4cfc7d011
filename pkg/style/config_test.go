package style_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-formembed/pkg/style"
)

func TestWidthResolution(t *testing.T) {
	cases := []struct {
		mode     style.WidthMode
		width    string
		maxWidth string
	}{
		{style.WidthResponsive, "100%", "600px"},
		{style.Width400, "400px", "400px"},
		{style.Width800, "800px", "800px"},
		{style.WidthMode("720"), "720px", "720px"},
	}
	for _, tc := range cases {
		if got := tc.mode.Width(); got != tc.width {
			t.Fatalf("%s width = %q, want %q", tc.mode, got, tc.width)
		}
		if got := tc.mode.MaxWidth(); got != tc.maxWidth {
			t.Fatalf("%s max width = %q, want %q", tc.mode, got, tc.maxWidth)
		}
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := style.Configuration{CustomStyle: "h2 { color: red; }"}.Normalize()
	if cfg.WidthMode != style.DefaultWidthMode || cfg.BreakpointPx != style.DefaultBreakpoint {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.CustomStyle != "h2 { color: red; }" {
		t.Fatalf("custom style must be kept verbatim, got %q", cfg.CustomStyle)
	}

	kept := style.Configuration{WidthMode: "950", BreakpointPx: 500}.Normalize()
	if kept.WidthMode != "950" || kept.BreakpointPx != 500 {
		t.Fatalf("present values must pass through: %+v", kept)
	}
}

func TestValidate(t *testing.T) {
	if err := style.Default().Validate(); err != nil {
		t.Fatalf("default configuration should validate: %v", err)
	}
	err := style.Configuration{WidthMode: "950", BreakpointPx: 0}.Validate()
	if !errors.Is(err, style.ErrConfigurationInvalid) {
		t.Fatalf("expected ErrConfigurationInvalid, got %v", err)
	}
	if !strings.Contains(err.Error(), "950") {
		t.Fatalf("expected width in error, got %v", err)
	}
}

func TestFingerprintTracksEveryField(t *testing.T) {
	base := style.Default()
	if base.Fingerprint() != style.Default().Fingerprint() {
		t.Fatalf("fingerprint must be stable")
	}
	changed := base
	changed.CustomStyle = "body { margin: 0; }"
	if changed.Fingerprint() == base.Fingerprint() {
		t.Fatalf("fingerprint must change with custom style")
	}
	hidden := base
	hidden.ShowTitle = false
	if hidden.Fingerprint() == base.Fingerprint() {
		t.Fatalf("fingerprint must change with title visibility")
	}
}

func TestParseWidthMode(t *testing.T) {
	if got := style.ParseWidthMode(" 800px "); got != style.Width800 {
		t.Fatalf("got %q", got)
	}
	if got := style.ParseWidthMode("Responsive"); got != style.WidthResponsive {
		t.Fatalf("got %q", got)
	}
}

func TestLoadPresets(t *testing.T) {
	presets, err := style.LoadPresets(strings.NewReader(`
presets:
  sidebar:
    width: "400"
    show_title: false
  landing:
    width: responsive
    breakpoint: 640
    custom_css: ".formio-container { background: #fafafa; }"
`))
	if err != nil {
		t.Fatalf("load presets: %v", err)
	}
	if got := presets.Names(); len(got) != 2 || got[0] != "landing" || got[1] != "sidebar" {
		t.Fatalf("unexpected names: %v", got)
	}
	sidebar, _ := presets.Lookup("sidebar")
	if sidebar.WidthMode != style.Width400 || sidebar.ShowTitle || sidebar.BreakpointPx != style.DefaultBreakpoint {
		t.Fatalf("unexpected sidebar preset: %+v", sidebar)
	}
	landing, _ := presets.Lookup("landing")
	if !landing.WidthMode.Responsive() || landing.BreakpointPx != 640 || !landing.ShowTitle {
		t.Fatalf("unexpected landing preset: %+v", landing)
	}
}
