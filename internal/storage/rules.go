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

// GetRule retrieves one rule by id. Returns models.ErrRuleNotFound when the
// rule does not exist.
func (c *Client) GetRule(ctx context.Context, ruleID string) (*models.Rule, error) {
	doc, err := c.client.Collection(rulesCollection).Doc(ruleID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, models.ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get rule %s: %w", ruleID, err)
	}

	var rule models.Rule
	if err := doc.DataTo(&rule); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule data: %w", err)
	}
	rule.ID = doc.Ref.ID
	return &rule, nil
}

// ListActiveRules returns every rule with its active flag set; the scheduler
// arms one timer per entry.
func (c *Client) ListActiveRules(ctx context.Context) ([]models.Rule, error) {
	iter := c.client.Collection(rulesCollection).
		Where("active", "==", true).
		Documents(ctx)
	defer iter.Stop()

	var rules []models.Rule
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate rules: %w", err)
		}

		var rule models.Rule
		if err := doc.DataTo(&rule); err != nil {
			slog.Warn("Skipping undecodable rule document", "id", doc.Ref.ID, "error", err)
			continue
		}
		rule.ID = doc.Ref.ID
		rules = append(rules, rule)
	}
	return rules, nil
}

// SetRuleLastRun records the completion timestamp of a rule execution. This
// is the only rule field the synchronization engine ever writes.
func (c *Client) SetRuleLastRun(ctx context.Context, ruleID string, ts time.Time) error {
	_, err := c.client.Collection(rulesCollection).Doc(ruleID).Update(ctx, []firestore.Update{
		{Path: "lastRun", Value: ts},
	})
	if err != nil {
		return fmt.Errorf("failed to set lastRun for rule %s: %w", ruleID, err)
	}
	return nil
}
