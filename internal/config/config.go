// Package config loads the console configuration from an optional YAML file,
// .env files and FORMEMBED_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FORMEMBED"

// Config is the full console configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Forms   FormsConfig   `yaml:"forms"`
	Catalog CatalogConfig `yaml:"catalog"`
	Builder BuilderConfig `yaml:"builder"`
	Style   StyleConfig   `yaml:"style"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig configures the HTTP console.
type ServerConfig struct {
	Addr string `yaml:"addr" split_words:"true"`
	// PublicURL is the externally visible base URL preview links use.
	PublicURL       string        `yaml:"public_url" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

// FormsConfig points at the service hosting and rendering forms.
type FormsConfig struct {
	Origin        string `yaml:"origin" split_words:"true"`
	ScriptURL     string `yaml:"script_url" split_words:"true"`
	StylesheetURL string `yaml:"stylesheet_url" split_words:"true"`
}

// CatalogConfig selects the catalog backend.
type CatalogConfig struct {
	// Driver is "memory" or "bolt".
	Driver   string `yaml:"driver" split_words:"true"`
	Path     string `yaml:"path" split_words:"true"`
	SeedFile string `yaml:"seed_file" split_words:"true"`
	// SampleForms seeds the sample catalog when no seed file is given.
	SampleForms bool `yaml:"sample_forms" split_words:"true"`
}

// BuilderConfig configures builder sessions.
type BuilderConfig struct {
	Mount                 string        `yaml:"mount" split_words:"true"`
	StallAfter            time.Duration `yaml:"stall_after" split_words:"true"`
	NoDefaultSubmitButton bool          `yaml:"no_default_submit_button" split_words:"true"`
}

// StyleConfig configures artifact styling.
type StyleConfig struct {
	PresetsFile string `yaml:"presets_file" split_words:"true"`
	ThemesFile  string `yaml:"themes_file" split_words:"true"`
	// StripMarkup removes markup from custom CSS before embedding it.
	StripMarkup bool `yaml:"strip_markup" split_words:"true"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" split_words:"true"`
	// Format is "console" or "json".
	Format string `yaml:"format" split_words:"true"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			PublicURL:       "http://localhost:8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Forms: FormsConfig{
			Origin:        "https://forms.example.com",
			ScriptURL:     "https://cdn.form.io/formiojs/formio.full.min.js",
			StylesheetURL: "https://cdn.form.io/formiojs/formio.full.min.css",
		},
		Catalog: CatalogConfig{
			Driver:      "memory",
			Path:        "formembed.db",
			SampleForms: true,
		},
		Builder: BuilderConfig{
			Mount:      "builder",
			StallAfter: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Options controls where Load looks for configuration.
type Options struct {
	// File is an optional YAML file. Missing files are an error only when
	// the path was set explicitly.
	File string
	// EnvFiles are .env files loaded into the environment; missing files are
	// skipped. Variables already set are not overwritten.
	EnvFiles []string
}

// Load builds the configuration.
func Load(opts Options) (Config, error) {
	cfg := Default()

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", opts.File, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", opts.File, err)
		}
	}

	for _, file := range opts.EnvFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", file, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values Load cannot fix up.
func (c Config) Validate() error {
	var problems []string
	switch strings.ToLower(c.Catalog.Driver) {
	case "memory":
	case "bolt":
		if strings.TrimSpace(c.Catalog.Path) == "" {
			problems = append(problems, "catalog.path is required for the bolt driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown catalog driver %q", c.Catalog.Driver))
	}
	if strings.TrimSpace(c.Forms.Origin) == "" {
		problems = append(problems, "forms.origin is required")
	}
	if c.Builder.StallAfter < 0 {
		problems = append(problems, "builder.stall_after must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("config: %s", strings.Join(problems, "; "))
}
