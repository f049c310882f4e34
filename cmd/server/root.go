package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/recipe-box/internal/config"
)

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:   "recipe-box",
		Short: "A personal recipe manager with OIDC login",
		Long: `recipe-box serves a small web app where each user keeps their own
recipes, grouped by category, with an optional photo per recipe.

Configuration comes from environment variables, optionally seeded from a
.env file. Run without a subcommand to start the server.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(newServeCmd(&envFile), newSweepCmd(&envFile))
	return root
}

// loadConfig reads the configuration and builds the logger it asks for.
func loadConfig(envFile string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}
