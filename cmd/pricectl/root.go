package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/homeprice/engine/artifact"
	"github.com/WessleyAI/homeprice/pkg/config"
	"github.com/WessleyAI/homeprice/pkg/logging"
)

// commandContext carries the persistent flags and lazily loaded config.
type commandContext struct {
	configFlag    string
	artifactsFlag string
	jsonFlag      bool
	logLevelFlag  string

	cfg *config.Config
}

func (c *commandContext) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configFlag)
	if err != nil {
		return nil, err
	}
	if c.artifactsFlag != "" {
		cfg.ArtifactDir = c.artifactsFlag
		cfg.SchemaFile, cfg.ScalerFile, cfg.ModelFile = "", "", ""
	}
	if c.logLevelFlag != "" {
		cfg.LogLevel = c.logLevelFlag
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) logger(w io.Writer) *slog.Logger {
	cfg, err := c.config()
	if err != nil {
		return logging.New(w, "warn", "auto")
	}
	return logging.New(w, cfg.LogLevel, "auto")
}

func (c *commandContext) paths() (artifact.Paths, error) {
	cfg, err := c.config()
	if err != nil {
		return artifact.Paths{}, err
	}
	schema, scaler, model := cfg.ArtifactFiles()
	return artifact.Paths{Schema: schema, Scaler: scaler, Model: model}, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "pricectl",
		Short:         "House price model CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&ctx.artifactsFlag, "artifacts", "a", "", "Artifact directory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&ctx.jsonFlag, "json", false, "Write JSON instead of tables")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newSchemaCommand(ctx))
	rootCmd.AddCommand(newCategoriesCommand(ctx))
	rootCmd.AddCommand(newEncodeCommand(ctx))
	rootCmd.AddCommand(newPredictCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))

	return rootCmd
}

func usageError(format string, args ...any) error {
	return fmt.Errorf("usage: "+format, args...)
}
