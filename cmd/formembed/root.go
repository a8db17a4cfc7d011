package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formembed/internal/config"
	"github.com/goliatone/go-formembed/internal/logging"
	"github.com/goliatone/go-formembed/internal/prompt"
)

type rootOptions struct {
	configFile string
	envFiles   []string
	logLevel   string
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	driver prompt.Driver
}

func newRootCmd() *cobra.Command {
	return newRootCmdWithDriver(prompt.NewSurveyDriver())
}

func newRootCmdWithDriver(driver prompt.Driver) *cobra.Command {
	opts := &rootOptions{}
	a := &app{driver: driver}

	cmd := &cobra.Command{
		Use:   "formembed",
		Short: "Manage forms and produce embed artifacts",
		Long: `formembed manages a catalog of form.io form definitions, hosts the
visual builder for editing them and generates standalone pages, inline
snippets and preview links for embedding forms on other sites.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Options{File: opts.configFile, EnvFiles: opts.envFiles})
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Log.Level = opts.logLevel
			}
			logger, err := logging.New(logging.Options{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				Output: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "YAML configuration file")
	flags.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, ".env files to load")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(a),
		newListCmd(a),
		newGenerateCmd(a),
		newImportCmd(a),
	)
	return cmd
}
