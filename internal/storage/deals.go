package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dealscout/dealscout/internal/models"
)

// GetDealByMarketplaceID retrieves a deal by its marketplace item id, which
// doubles as the Firestore document id. A missing deal returns (nil, nil).
func (c *Client) GetDealByMarketplaceID(ctx context.Context, itemID string) (*models.Deal, error) {
	doc, err := c.client.Collection(dealsCollection).Doc(itemID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get deal %s: %w", itemID, err)
	}
	if !doc.Exists() {
		return nil, nil
	}

	var deal models.Deal
	if err := doc.DataTo(&deal); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deal data: %w", err)
	}
	deal.MarketplaceItemID = doc.Ref.ID
	return &deal, nil
}

// TryCreateDeal attempts to create a new deal. Returns models.ErrDealExists
// if a deal for that marketplace item id is already present.
func (c *Client) TryCreateDeal(ctx context.Context, deal models.Deal) error {
	docRef := c.client.Collection(dealsCollection).Doc(deal.MarketplaceItemID)
	// Create fails if the document already exists.
	if _, err := docRef.Create(ctx, deal); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return models.ErrDealExists
		}
		return fmt.Errorf("failed to create deal %s: %w", deal.MarketplaceItemID, err)
	}
	return nil
}

// UpdateDeal overwrites the enumerated mutable fields of a deal. Writes are
// never assembled from caller-supplied field lists.
func (c *Client) UpdateDeal(ctx context.Context, deal models.Deal) error {
	docRef := c.client.Collection(dealsCollection).Doc(deal.MarketplaceItemID)

	_, err := docRef.Update(ctx, []firestore.Update{
		{Path: "title", Value: deal.Title},
		{Path: "imageURL", Value: deal.ImageURL},
		{Path: "originalPrice", Value: deal.OriginalPrice},
		{Path: "currentPrice", Value: deal.CurrentPrice},
		{Path: "discountPercent", Value: deal.DiscountPercent},
		{Path: "currency", Value: deal.Currency},
		{Path: "condition", Value: deal.Condition},
		{Path: "itemURL", Value: deal.ItemURL},
		{Path: "categoryID", Value: deal.CategoryID},
		{Path: "active", Value: deal.Active},
		{Path: "updatedAt", Value: deal.UpdatedAt},
		{Path: "deactivatedAt", Value: firestore.Delete},
	})
	if err != nil {
		return fmt.Errorf("failed to update deal %s: %w", deal.MarketplaceItemID, err)
	}
	return nil
}

// DeactivateDeal flips a deal's active flag off and stamps deactivatedAt so
// the eviction stays recoverable. Everything else, updatedAt included, keeps
// how the deal last looked on record.
func (c *Client) DeactivateDeal(ctx context.Context, itemID string) error {
	docRef := c.client.Collection(dealsCollection).Doc(itemID)
	_, err := docRef.Update(ctx, []firestore.Update{
		{Path: "active", Value: false},
		{Path: "deactivatedAt", Value: time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to deactivate deal %s: %w", itemID, err)
	}
	return nil
}

// ListActiveDealsOlderThan returns every active deal whose updatedAt is
// before cutoff. Backed by the composite (active, updatedAt) index.
func (c *Client) ListActiveDealsOlderThan(ctx context.Context, cutoff time.Time) ([]models.Deal, error) {
	iter := c.client.Collection(dealsCollection).
		Where("active", "==", true).
		Where("updatedAt", "<", cutoff).
		Documents(ctx)
	defer iter.Stop()

	var deals []models.Deal
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate stale deals: %w", err)
		}

		var deal models.Deal
		if err := doc.DataTo(&deal); err != nil {
			slog.Warn("Skipping undecodable deal document", "id", doc.Ref.ID, "error", err)
			continue
		}
		deal.MarketplaceItemID = doc.Ref.ID
		deals = append(deals, deal)
	}
	return deals, nil
}

// ReactivateDeactivatedSince flips back every deal deactivated after since,
// matched on the deactivatedAt stamp rather than updatedAt: a deal evicted
// for staleness was by definition last refreshed long before the eviction.
// This is the operator's recovery hatch for an eviction pass that went too
// far; nothing reactivates deals automatically.
func (c *Client) ReactivateDeactivatedSince(ctx context.Context, since time.Time) (int, error) {
	iter := c.client.Collection(dealsCollection).
		Where("active", "==", false).
		Where("deactivatedAt", ">", since).
		Documents(ctx)
	defer iter.Stop()

	bulkWriter := c.client.BulkWriter(ctx)
	defer bulkWriter.End()

	restored := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return restored, fmt.Errorf("failed to iterate deactivated deals: %w", err)
		}

		_, wErr := bulkWriter.Update(doc.Ref, []firestore.Update{
			{Path: "active", Value: true},
			{Path: "deactivatedAt", Value: firestore.Delete},
		})
		if wErr != nil {
			slog.Warn("Failed to queue deal reactivation", "id", doc.Ref.ID, "error", wErr)
			continue
		}
		restored++
	}

	if restored > 0 {
		bulkWriter.Flush()
	}
	return restored, nil
}
