package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formembed/internal/server"
	"github.com/goliatone/go-formembed/pkg/builder"
	"github.com/goliatone/go-formembed/pkg/builder/wsbridge"
	"github.com/goliatone/go-formembed/pkg/preview"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP console",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cat, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer cat.Close()

			gen, err := a.newGenerator()
			if err != nil {
				return err
			}
			presets, err := a.loadPresets()
			if err != nil {
				return err
			}

			bridge, err := wsbridge.New(
				wsbridge.WithService(a.service()),
				wsbridge.WithLogger(a.logger.Named("bridge")),
			)
			if err != nil {
				return err
			}

			metrics := server.NewMetrics()
			session, err := builder.NewSession(bridge, cat,
				builder.WithMount(builder.MountRef(a.cfg.Builder.Mount)),
				builder.WithAttachOptions(builder.AttachOptions{
					NoDefaultSubmitButton: a.cfg.Builder.NoDefaultSubmitButton,
				}),
				builder.WithStallAfter(a.cfg.Builder.StallAfter),
				builder.WithLogger(a.logger.Named("builder")),
				builder.WithListener(metrics.ObserveBuilderEvent),
			)
			if err != nil {
				return err
			}

			previewBase := strings.TrimRight(a.cfg.Server.PublicURL, "/") + "/preview"
			srv, err := server.New(server.Dependencies{
				Catalog:   cat,
				Generator: gen,
				Previews:  preview.NewMemoryStore(previewBase),
				Session:   session,
				Bridge:    bridge,
				Presets:   presets,
				Logger:    a.logger.Named("http"),
				Metrics:   metrics,
			})
			if err != nil {
				return err
			}

			a.logger.Info("builder page available",
				zap.String("url", fmt.Sprintf("%s%s/%s", strings.TrimRight(a.cfg.Server.PublicURL, "/"), server.BuilderPrefix, a.cfg.Builder.Mount)))
			return srv.Run(ctx, addr, a.cfg.Server.ShutdownTimeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	return cmd
}
