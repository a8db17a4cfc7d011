package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-formembed/internal/prompt"
	"github.com/goliatone/go-formembed/pkg/artifact"
	"github.com/goliatone/go-formembed/pkg/catalog"
	"github.com/goliatone/go-formembed/pkg/form"
	"github.com/goliatone/go-formembed/pkg/style"
)

// catalogHandle is an opened catalog plus its release function.
type catalogHandle struct {
	catalog.Catalog
	close func() error
}

func (h catalogHandle) Close() error {
	if h.close == nil {
		return nil
	}
	return h.close()
}

func (a *app) seedRecords() ([]form.Record, error) {
	if path := strings.TrimSpace(a.cfg.Catalog.SeedFile); path != "" {
		return catalog.LoadSeedFile(path)
	}
	if a.cfg.Catalog.SampleForms {
		return catalog.DefaultSeed(), nil
	}
	return nil, nil
}

func (a *app) openCatalog() (catalogHandle, error) {
	seed, err := a.seedRecords()
	if err != nil {
		return catalogHandle{}, err
	}
	opts := []catalog.Option{
		catalog.WithLogger(a.logger.Named("catalog")),
		catalog.WithSeed(seed...),
	}

	switch strings.ToLower(a.cfg.Catalog.Driver) {
	case "bolt":
		db, err := catalog.OpenBolt(a.cfg.Catalog.Path, opts...)
		if err != nil {
			return catalogHandle{}, err
		}
		return catalogHandle{Catalog: db, close: db.Close}, nil
	default:
		mem, err := catalog.NewMemory(opts...)
		if err != nil {
			return catalogHandle{}, err
		}
		return catalogHandle{Catalog: mem}, nil
	}
}

func (a *app) service() artifact.Service {
	return artifact.Service{
		Origin:        a.cfg.Forms.Origin,
		ScriptURL:     a.cfg.Forms.ScriptURL,
		StylesheetURL: a.cfg.Forms.StylesheetURL,
	}
}

func (a *app) newGenerator() (*artifact.Generator, error) {
	opts := []artifact.Option{artifact.WithService(a.service())}
	if a.cfg.Style.StripMarkup {
		opts = append(opts, artifact.WithStylePolicy(artifact.StyleStripMarkup))
	}
	if path := strings.TrimSpace(a.cfg.Style.ThemesFile); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open themes: %w", err)
		}
		defer f.Close()
		selector, err := artifact.LoadThemes(f)
		if err != nil {
			return nil, err
		}
		opts = append(opts, artifact.WithThemeSelector(selector))
	}
	return artifact.New(opts...)
}

func (a *app) loadPresets() (style.Presets, error) {
	path := strings.TrimSpace(a.cfg.Style.PresetsFile)
	if path == "" {
		return style.Presets{}, nil
	}
	return style.LoadPresetsFile(path)
}

func (a *app) findForm(ctx context.Context, cat catalog.Catalog, id string) (form.Record, error) {
	if id != "" {
		return cat.GetForm(ctx, id)
	}
	records, err := cat.ListForms(ctx)
	if err != nil {
		return form.Record{}, err
	}
	return prompt.SelectForm(ctx, a.driver, records)
}
