package reconciler

import (
	"context"
	"time"

	"github.com/dealscout/dealscout/internal/models"
)

// DealStore abstracts the catalog writes the reconciliation pass performs.
type DealStore interface {
	GetDealByMarketplaceID(ctx context.Context, itemID string) (*models.Deal, error)
	TryCreateDeal(ctx context.Context, deal models.Deal) error
	UpdateDeal(ctx context.Context, deal models.Deal) error
	DeactivateDeal(ctx context.Context, itemID string) error
	ListActiveDealsOlderThan(ctx context.Context, cutoff time.Time) ([]models.Deal, error)
}
