package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
)

const (
	dealsCollection      = "deals"
	rulesCollection      = "rules"
	executionsCollection = "executions"
)

// Client wraps the Firestore connection shared by the deal, rule and
// execution stores.
type Client struct {
	client *firestore.Client
}

func New(ctx context.Context, projectID string) (*Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
