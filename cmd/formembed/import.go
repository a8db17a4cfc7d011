package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formembed/internal/prompt"
	"github.com/goliatone/go-formembed/pkg/builder"
	"github.com/goliatone/go-formembed/pkg/catalog"
	"github.com/goliatone/go-formembed/pkg/form"
)

type importOptions struct {
	formID string
	name   string
}

func newImportCmd(a *app) *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import <schema.json>",
		Short: "Save a form definition into the catalog",
		Long: `import runs a headless builder session seeded with the given form
definition and saves it. With --form the existing form is updated; otherwise
a new form is created and its name is taken from --name or asked for.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read schema: %w", err)
			}
			schema, err := form.ParseSchema(data)
			if err != nil {
				return err
			}

			cat, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer cat.Close()

			saved, err := a.importSchema(ctx, cat, schema, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s, %s)\n", saved.ID, saved.Name, saved.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.formID, "form", "", "update this form instead of creating one")
	cmd.Flags().StringVar(&opts.name, "name", "", "name for the new form")
	return cmd
}

func (a *app) importSchema(ctx context.Context, cat catalog.Catalog, schema form.Schema, opts *importOptions) (form.Record, error) {
	var existing *form.Record
	if opts.formID != "" {
		record, err := cat.GetForm(ctx, opts.formID)
		if err != nil {
			return form.Record{}, err
		}
		existing = &record
	}

	editor := builder.NewStaticEditor(builder.WithInitialSchema(schema))
	session, err := builder.NewSession(editor, cat,
		builder.WithMount(builder.MountRef(a.cfg.Builder.Mount)),
		builder.WithNameSource(prompt.NameSource{Driver: a.driver}),
		builder.WithLogger(a.logger.Named("builder")),
	)
	if err != nil {
		return form.Record{}, err
	}
	defer session.Detach()

	if err := session.Mount(ctx, existing); err != nil {
		return form.Record{}, err
	}
	if err := session.Wait(ctx); err != nil {
		return form.Record{}, err
	}

	var saveOpts []builder.SaveOption
	if opts.name != "" {
		saveOpts = append(saveOpts, builder.SaveWithName(opts.name))
	}
	saved, err := session.Save(ctx, saveOpts...)
	if err != nil {
		return form.Record{}, err
	}
	a.logger.Info("form imported", zap.String("id", saved.ID), zap.Bool("created", existing == nil))
	return saved, nil
}
