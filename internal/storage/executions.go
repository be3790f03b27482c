package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/dealscout/dealscout/internal/models"
)

// AppendExecution persists one execution journal row. Rows are append-only
// and never updated.
func (c *Client) AppendExecution(ctx context.Context, exec models.Execution) error {
	if _, _, err := c.client.Collection(executionsCollection).Add(ctx, exec); err != nil {
		return fmt.Errorf("failed to append execution for rule %s: %w", exec.RuleID, err)
	}
	return nil
}

// ListExecutions returns up to limit execution rows most recent first. A
// non-zero before paginates: only rows strictly older than it are returned.
func (c *Client) ListExecutions(ctx context.Context, limit int, before time.Time) ([]models.Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	query := c.client.Collection(executionsCollection).
		OrderBy("timestamp", firestore.Desc).
		Limit(limit)
	if !before.IsZero() {
		query = query.Where("timestamp", "<", before)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var execs []models.Execution
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate executions: %w", err)
		}

		var exec models.Execution
		if err := doc.DataTo(&exec); err != nil {
			slog.Warn("Skipping undecodable execution document", "id", doc.Ref.ID, "error", err)
			continue
		}
		exec.ID = doc.Ref.ID
		execs = append(execs, exec)
	}
	return execs, nil
}

// DeleteExecutionsForRule removes every journal row belonging to a deleted
// rule. This cascade is the single case where execution rows are deleted.
func (c *Client) DeleteExecutionsForRule(ctx context.Context, ruleID string) (int, error) {
	iter := c.client.Collection(executionsCollection).
		Where("ruleID", "==", ruleID).
		Documents(ctx)
	defer iter.Stop()

	bulkWriter := c.client.BulkWriter(ctx)
	defer bulkWriter.End()

	deleted := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deleted, fmt.Errorf("failed to iterate executions for rule %s: %w", ruleID, err)
		}

		if _, delErr := bulkWriter.Delete(doc.Ref); delErr != nil {
			slog.Warn("Failed to queue execution delete", "id", doc.Ref.ID, "error", delErr)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		bulkWriter.Flush()
	}
	return deleted, nil
}
