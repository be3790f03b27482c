// Package reconciler diffs a batch of freshly aggregated listings against
// the stored deal catalog and applies the minimal set of writes: new deals
// are inserted, re-sighted deals are refreshed, and deals that fell out of
// a rule's bounds or stopped appearing are deactivated. Deals are never
// hard-deleted here.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dealscout/dealscout/internal/models"
)

// ItemError records a store failure for a single listing. The pass keeps
// going past these; they surface in the execution record.
type ItemError struct {
	MarketplaceItemID string
	Op                string
	Err               error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.MarketplaceItemID, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// Outcome summarizes what one reconciliation pass did to the catalog.
type Outcome struct {
	Added   int
	Updated int
	Removed int
	Errors  []ItemError

	// AddedDeals carries the deals behind the Added count so callers can
	// announce them.
	AddedDeals []models.Deal
}

// Engine applies one rule's search results to the deal catalog.
type Engine struct {
	store       DealStore
	staleCutoff time.Duration
}

func New(store DealStore, staleCutoff time.Duration) *Engine {
	return &Engine{store: store, staleCutoff: staleCutoff}
}

// Reconcile applies listings gathered for rule to the catalog. Item-level
// store failures are collected in the outcome and skipped; the returned
// error is non-nil only when the pass itself could not complete, such as
// the stale-deal listing failing.
func (e *Engine) Reconcile(ctx context.Context, rule models.Rule, listings []models.Listing) (Outcome, error) {
	now := time.Now()
	var out Outcome

	found := make(map[string]bool, len(listings))
	for _, l := range listings {
		found[l.MarketplaceItemID] = true

		existing, err := e.store.GetDealByMarketplaceID(ctx, l.MarketplaceItemID)
		if err != nil {
			out.Errors = append(out.Errors, ItemError{l.MarketplaceItemID, "get", err})
			continue
		}

		if existing == nil {
			if !rule.Matches(l) {
				continue
			}
			deal := models.FromListing(l, now)
			err := e.store.TryCreateDeal(ctx, deal)
			switch {
			case err == nil:
				out.Added++
				out.AddedDeals = append(out.AddedDeals, deal)
				continue
			case errors.Is(err, models.ErrDealExists):
				// Lost a create race; re-read and fall through to the
				// update path.
				existing, err = e.store.GetDealByMarketplaceID(ctx, l.MarketplaceItemID)
				if err != nil || existing == nil {
					out.Errors = append(out.Errors, ItemError{l.MarketplaceItemID, "get", err})
					continue
				}
			default:
				out.Errors = append(out.Errors, ItemError{l.MarketplaceItemID, "create", err})
				continue
			}
		}

		if !rule.Matches(l) {
			// Still listed upstream but no longer inside the rule's
			// bounds, for example the discount shrank.
			if !existing.Active {
				continue
			}
			if err := e.store.DeactivateDeal(ctx, l.MarketplaceItemID); err != nil {
				out.Errors = append(out.Errors, ItemError{l.MarketplaceItemID, "deactivate", err})
				continue
			}
			out.Removed++
			continue
		}

		changed := existing.CurrentPrice != l.CurrentPrice || existing.DiscountPercent != l.DiscountPercent
		if err := e.store.UpdateDeal(ctx, models.FromListing(l, now)); err != nil {
			out.Errors = append(out.Errors, ItemError{l.MarketplaceItemID, "update", err})
			continue
		}
		if changed {
			out.Updated++
		}
	}

	// Anything still active that this execution did not see and that has
	// not been refreshed within the cutoff has likely expired upstream.
	cutoff := now.Add(-e.staleCutoff)
	stale, err := e.store.ListActiveDealsOlderThan(ctx, cutoff)
	if err != nil {
		return out, fmt.Errorf("listing stale deals: %w", err)
	}
	for _, d := range stale {
		if found[d.MarketplaceItemID] {
			continue
		}
		if err := e.store.DeactivateDeal(ctx, d.MarketplaceItemID); err != nil {
			out.Errors = append(out.Errors, ItemError{d.MarketplaceItemID, "deactivate", err})
			continue
		}
		slog.Debug("deactivated stale deal",
			"item_id", d.MarketplaceItemID,
			"last_seen", d.UpdatedAt)
		out.Removed++
	}

	return out, nil
}
