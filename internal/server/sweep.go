package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/recipe-box/internal/config"
	"github.com/sakif/recipe-box/internal/service"
	"github.com/sakif/recipe-box/internal/upload"
)

// Sweep removes upload objects that no recipe references, plus stale
// staging leftovers, from the configured store. It needs no OIDC provider
// and can run next to a live server.
func Sweep(ctx context.Context, cfg *config.Config, logger *slog.Logger, dryRun bool) (upload.SweepReport, error) {
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return upload.SweepReport{}, err
	}
	defer st.Close()

	uploads := upload.NewManager(st.images, logger)
	recipes := service.NewRecipeService(st.db, uploads, logger)

	referenced, err := recipes.ReferencedImages(ctx)
	if err != nil {
		return upload.SweepReport{}, fmt.Errorf("loading referenced images: %w", err)
	}

	report, err := uploads.Sweep(ctx, referenced, cfg.SweepGrace, dryRun)
	if err != nil {
		return report, err
	}
	logger.Info("sweep finished",
		slog.Int("scanned", report.Scanned),
		slog.Int("orphans", report.Orphans),
		slog.Int("staleStaging", report.StaleStaging),
		slog.Int("removed", report.Removed),
		slog.Bool("dryRun", dryRun),
	)
	return report, nil
}
