// Package notifier announces newly cataloged deals to a Discord-compatible
// webhook. Announcements are best-effort; the synchronization pipeline
// never depends on them.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dealscout/dealscout/internal/models"
)

// Embed colors by discount depth.
const (
	colorModest = 3092790  // #2F3136
	colorWarm   = 16753920 // #FFA500
	colorHot    = 16711680 // #FF0000

	discountThresholdWarm = 30
	discountThresholdHot  = 50
)

type Client struct {
	webhookURL string
	client     *http.Client
}

// New builds a webhook client. An empty URL yields a client whose Announce
// is a no-op, so callers never need to special-case unconfigured webhooks.
func New(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Announce posts one newly added deal.
func (c *Client) Announce(ctx context.Context, deal models.Deal) error {
	if c.webhookURL == "" {
		return nil
	}

	payload := webhookPayload{Embeds: []embed{formatDeal(deal)}}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, snippet)
	}
	return nil
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

type embedThumbnail struct {
	URL string `json:"url,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type embed struct {
	Title     string          `json:"title,omitempty"`
	URL       string          `json:"url,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Color     int             `json:"color,omitempty"`
	Thumbnail *embedThumbnail `json:"thumbnail,omitempty"`
	Fields    []embedField    `json:"fields,omitempty"`
}

func formatDeal(deal models.Deal) embed {
	e := embed{
		Title: deal.Title,
		URL:   deal.ItemURL,
		Color: colorForDiscount(deal.DiscountPercent),
		Fields: []embedField{
			{Name: "Price", Value: formatPrice(deal.CurrentPrice, deal.Currency), Inline: true},
			{Name: "Discount", Value: fmt.Sprintf("%.0f%% off", deal.DiscountPercent), Inline: true},
		},
	}
	if deal.OriginalPrice > deal.CurrentPrice {
		e.Fields = append(e.Fields, embedField{
			Name:   "Was",
			Value:  formatPrice(deal.OriginalPrice, deal.Currency),
			Inline: true,
		})
	}
	if deal.ImageURL != "" {
		e.Thumbnail = &embedThumbnail{URL: deal.ImageURL}
	}
	if !deal.UpdatedAt.IsZero() {
		e.Timestamp = deal.UpdatedAt.Format(time.RFC3339)
	}
	return e
}

func colorForDiscount(discount float64) int {
	switch {
	case discount >= discountThresholdHot:
		return colorHot
	case discount >= discountThresholdWarm:
		return colorWarm
	default:
		return colorModest
	}
}

func formatPrice(amount float64, currency string) string {
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}
