package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dealscout/dealscout/internal/models"
	"github.com/dealscout/dealscout/internal/util"
)

const maxSearchRetries = 2

// APIClient talks to the marketplace's JSON search endpoint:
//
//	GET {base}/api/search?q=...&min_price=...&max_price=...&min_discount=...&category=...&limit=...
//	  -> {"items": [...]}
//
// Responses are normalized into models.Listing records with the affiliate
// campaign id already applied to item URLs.
type APIClient struct {
	baseURL    string
	token      string
	campaignID string
	httpClient *http.Client
}

func NewAPIClient(baseURL, token, campaignID string, timeout time.Duration) (*APIClient, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("marketplace base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid marketplace base URL: %w", err)
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &APIClient{
		baseURL:    base,
		token:      token,
		campaignID: campaignID,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	ItemID          string  `json:"item_id"`
	Title           string  `json:"title"`
	ImageURL        string  `json:"image_url"`
	OriginalPrice   float64 `json:"original_price"`
	CurrentPrice    float64 `json:"current_price"`
	DiscountPercent float64 `json:"discount_percent"`
	Currency        string  `json:"currency"`
	Condition       string  `json:"condition"`
	ItemURL         string  `json:"item_url"`
	CategoryID      string  `json:"category_id"`
	CategoryName    string  `json:"category_name"`
}

// Search runs one keyword search. Rate-limited and transient failures are
// retried with backoff; an unauthenticated response comes back immediately.
func (c *APIClient) Search(ctx context.Context, q Query) ([]models.Listing, error) {
	reqURL, err := c.buildSearchURL(q)
	if err != nil {
		return nil, err
	}

	var listings []models.Listing
	err = util.RetryWithBackoff(ctx, maxSearchRetries, IsRetryable, func(attempt int) error {
		if attempt > 0 {
			slog.Debug("Retrying marketplace search", "keyword", q.Keyword, "attempt", attempt)
		}
		var attemptErr error
		listings, attemptErr = c.doSearch(ctx, reqURL)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}
	return listings, nil
}

func (c *APIClient) doSearch(ctx context.Context, reqURL string) ([]models.Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, classifyStatus(res.StatusCode,
			fmt.Errorf("search returned status %d: %s", res.StatusCode, strings.TrimSpace(string(body))))
	}

	var payload searchResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, &Error{Kind: KindTransient, Err: fmt.Errorf("failed to decode search response: %w", err)}
	}

	listings := make([]models.Listing, 0, len(payload.Items))
	for _, item := range payload.Items {
		l, ok := c.normalize(item)
		if !ok {
			continue
		}
		listings = append(listings, l)
	}
	return listings, nil
}

func (c *APIClient) buildSearchURL(q Query) (string, error) {
	u, err := url.Parse(c.baseURL + "/api/search")
	if err != nil {
		return "", fmt.Errorf("failed to build search URL: %w", err)
	}
	params := u.Query()
	params.Set("q", strings.TrimSpace(q.Keyword))
	if q.MinPrice > 0 {
		params.Set("min_price", formatPrice(q.MinPrice))
	}
	if q.MaxPrice > 0 {
		params.Set("max_price", formatPrice(q.MaxPrice))
	}
	if q.MinDiscount > 0 {
		params.Set("min_discount", formatPrice(q.MinDiscount))
	}
	if q.CategoryID != "" {
		params.Set("category", q.CategoryID)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// normalize converts a payload record into a Listing. Items without an id or
// URL are unusable and dropped. A missing discount is derived from the two
// prices so downstream bound checks always have a value to work with.
func (c *APIClient) normalize(item searchItem) (models.Listing, bool) {
	if strings.TrimSpace(item.ItemID) == "" || strings.TrimSpace(item.ItemURL) == "" {
		return models.Listing{}, false
	}

	itemURL := item.ItemURL
	if normalized, err := util.NormalizeItemURL(itemURL); err == nil {
		itemURL = normalized
	}
	if decorated, changed := util.DecorateAffiliateURL(itemURL, c.campaignID); changed {
		itemURL = decorated
	}

	discount := item.DiscountPercent
	if discount == 0 {
		discount = models.DiscountPercent(item.OriginalPrice, item.CurrentPrice)
	}

	return models.Listing{
		MarketplaceItemID: strings.TrimSpace(item.ItemID),
		Title:             strings.TrimSpace(item.Title),
		ImageURL:          item.ImageURL,
		OriginalPrice:     item.OriginalPrice,
		CurrentPrice:      item.CurrentPrice,
		DiscountPercent:   discount,
		Currency:          item.Currency,
		Condition:         item.Condition,
		ItemURL:           itemURL,
		CategoryID:        item.CategoryID,
		CategoryName:      item.CategoryName,
	}, true
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
