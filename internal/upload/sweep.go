package upload

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/recipe-box/internal/metrics"
)

// SweepReport summarises one Sweep run.
type SweepReport struct {
	Scanned      int
	Referenced   int
	TooNew       int
	Orphans      int // committed objects no recipe points at
	StaleStaging int // staging objects past the grace period
	Removed      int
	DryRun       bool
}

// Sweep removes committed objects that no recipe references, staging
// leftovers and partial writes. All of them only go once they are older than grace, so an upload that
// is mid-request (staged but not yet committed, or committed a moment before
// its row) is left alone.
//
// referenced is the set of image_filename values currently in the database.
func (m *Manager) Sweep(ctx context.Context, referenced map[string]struct{}, grace time.Duration, dryRun bool) (SweepReport, error) {
	report := SweepReport{DryRun: dryRun}

	objects, err := m.store.List(ctx)
	if err != nil {
		return report, fmt.Errorf("sweep: %w", err)
	}

	cutoff := m.now().Add(-grace)
	for _, obj := range objects {
		report.Scanned++

		staging := obj.Partial || strings.HasPrefix(obj.Key, StagingPrefix)
		if !staging {
			if _, ok := referenced[obj.Key]; ok {
				report.Referenced++
				continue
			}
		}
		if obj.ModTime.After(cutoff) {
			report.TooNew++
			continue
		}

		kind := "orphan"
		if staging {
			kind = "staging"
			report.StaleStaging++
		} else {
			report.Orphans++
		}

		m.logger.Info("sweeping upload",
			slog.String("key", obj.Key),
			slog.String("kind", kind),
			slog.Bool("dry_run", dryRun),
		)
		if dryRun {
			continue
		}
		if err := m.store.Remove(ctx, obj.Key); err != nil {
			return report, fmt.Errorf("sweep: %w", err)
		}
		metrics.SweptObjects.WithLabelValues(kind).Inc()
		report.Removed++
	}

	return report, nil
}
