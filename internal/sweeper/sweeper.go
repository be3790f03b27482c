// Package sweeper is the safety net behind the per-execution staleness
// pass: any active deal that has not been refreshed for the configured
// maximum age gets deactivated, even when the rule that produced it was
// deleted or disabled long ago.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dealscout/dealscout/internal/models"
)

type DealStore interface {
	ListActiveDealsOlderThan(ctx context.Context, cutoff time.Time) ([]models.Deal, error)
	DeactivateDeal(ctx context.Context, itemID string) error
}

type Sweeper struct {
	store  DealStore
	maxAge time.Duration
}

func New(store DealStore, maxAge time.Duration) *Sweeper {
	return &Sweeper{store: store, maxAge: maxAge}
}

// Sweep deactivates every active deal older than the maximum age and
// returns how many it deactivated. Failures on individual deals are
// logged and skipped so one bad document cannot stall the sweep.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.maxAge)
	stale, err := s.store.ListActiveDealsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing stale deals: %w", err)
	}

	swept := 0
	for _, d := range stale {
		if err := s.store.DeactivateDeal(ctx, d.MarketplaceItemID); err != nil {
			slog.Error("failed to deactivate stale deal",
				"item_id", d.MarketplaceItemID,
				"error", err)
			continue
		}
		swept++
	}
	if swept > 0 {
		slog.Info("staleness sweep complete", "deactivated", swept, "cutoff", cutoff)
	}
	return swept, nil
}
