package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formembed/internal/prompt"
	"github.com/goliatone/go-formembed/pkg/style"
)

type generateOptions struct {
	width       string
	breakpoint  int
	hideTitle   bool
	cssFile     string
	preset      string
	interactive bool
	outDir      string
}

func newGenerateCmd(a *app) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate [form-id]",
		Short: "Write the standalone page and inline snippet for a form",
		Long: `generate writes <id>.html (a standalone page) and <id>.snippet.html
(an inline script snippet) for the selected form. Without a form id the form
is picked interactively.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cat, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer cat.Close()

			var id string
			if len(args) == 1 {
				id = args[0]
			}
			record, err := a.findForm(ctx, cat, id)
			if err != nil {
				return err
			}

			cfg, err := a.resolveStyle(cmd, opts)
			if err != nil {
				return err
			}
			if opts.interactive {
				if cfg, err = prompt.EditStyle(ctx, a.driver, cfg); err != nil {
					return err
				}
			}

			gen, err := a.newGenerator()
			if err != nil {
				return err
			}
			result, err := gen.Generate(record, cfg)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			outputs := []struct {
				name    string
				content string
			}{
				{record.ID + ".html", result.Document},
				{record.ID + ".snippet.html", result.Snippet},
			}
			for _, out := range outputs {
				path := filepath.Join(opts.outDir, out.name)
				if err := os.WriteFile(path, []byte(out.content), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			a.logger.Debug("artifacts written",
				zap.String("form", record.ID),
				zap.String("width", string(cfg.WidthMode)),
				zap.String("dir", opts.outDir))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.width, "width", "", "width mode (400, 600, 800, responsive)")
	flags.IntVar(&opts.breakpoint, "breakpoint", 0, "responsive breakpoint in px")
	flags.BoolVar(&opts.hideTitle, "hide-title", false, "omit the form title heading")
	flags.StringVar(&opts.cssFile, "css-file", "", "custom CSS inserted after the container rule")
	flags.StringVar(&opts.preset, "preset", "", "named style preset from style.presets_file")
	flags.BoolVarP(&opts.interactive, "interactive", "i", false, "edit the style interactively")
	flags.StringVarP(&opts.outDir, "out-dir", "o", ".", "output directory")
	return cmd
}

// resolveStyle starts from the default (or preset) configuration and applies
// the flags that were set explicitly.
func (a *app) resolveStyle(cmd *cobra.Command, opts *generateOptions) (style.Configuration, error) {
	cfg := style.Default()
	if opts.preset != "" {
		presets, err := a.loadPresets()
		if err != nil {
			return style.Configuration{}, err
		}
		preset, ok := presets.Lookup(opts.preset)
		if !ok {
			return style.Configuration{}, fmt.Errorf("unknown preset %q (have %s)", opts.preset, strings.Join(presets.Names(), ", "))
		}
		cfg = preset
	}

	flags := cmd.Flags()
	if flags.Changed("width") {
		cfg.WidthMode = style.ParseWidthMode(opts.width)
	}
	if flags.Changed("breakpoint") {
		cfg.BreakpointPx = opts.breakpoint
	}
	if flags.Changed("hide-title") {
		cfg.ShowTitle = !opts.hideTitle
	}
	if opts.cssFile != "" {
		data, err := os.ReadFile(opts.cssFile)
		if err != nil {
			return style.Configuration{}, fmt.Errorf("read css: %w", err)
		}
		cfg.CustomStyle = string(data)
	}

	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return style.Configuration{}, err
	}
	return cfg, nil
}
