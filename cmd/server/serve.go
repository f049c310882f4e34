package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/recipe-box/internal/server"
)

func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *envFile)
		},
	}
}

func runServe(cmd *cobra.Command, envFile string) error {
	cfg, logger, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	logger.Info("configuration loaded", slog.Any("config", cfg))

	srv, err := server.New(cmd.Context(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start blocks until SIGINT/SIGTERM.
	return srv.Start()
}
