package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dealscout/dealscout/internal/models"
	"github.com/dealscout/dealscout/internal/util"
)

const htmlUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// HTMLClient covers marketplaces that expose no search API: it fetches the
// public search-results page and extracts listing cards. The page offers no
// price or discount filters, so bound enforcement happens downstream in the
// reconciliation pass.
type HTMLClient struct {
	baseURL        string
	campaignID     string
	allowedDomains []string
	httpClient     *http.Client
}

func NewHTMLClient(baseURL, campaignID string, allowedDomains []string, timeout time.Duration) (*HTMLClient, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("marketplace base URL is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid marketplace base URL: %w", err)
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	// The search page's own host is always fetchable.
	domains := append([]string{parsed.Hostname()}, allowedDomains...)
	return &HTMLClient{
		baseURL:        base,
		campaignID:     campaignID,
		allowedDomains: domains,
		httpClient:     &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTMLClient) Search(ctx context.Context, q Query) ([]models.Listing, error) {
	u, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("failed to build search URL: %w", err)
	}
	params := u.Query()
	params.Set("q", strings.TrimSpace(q.Keyword))
	if q.CategoryID != "" {
		params.Set("category", q.CategoryID)
	}
	u.RawQuery = params.Encode()

	doc, err := c.fetchDocument(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var listings []models.Listing
	doc.Find("li.listing-card").Each(func(_ int, s *goquery.Selection) {
		listing, ok := c.parseCard(s)
		if !ok {
			return
		}
		if q.Limit > 0 && len(listings) >= q.Limit {
			return
		}
		listings = append(listings, listing)
	})
	return listings, nil
}

func (c *HTMLClient) parseCard(s *goquery.Selection) (models.Listing, bool) {
	itemID, _ := s.Attr("data-item-id")
	itemID = strings.TrimSpace(itemID)

	link := s.Find("a.listing-card__link").First()
	href, _ := link.Attr("href")
	title := strings.TrimSpace(s.Find(".listing-card__title").First().Text())
	if itemID == "" || href == "" || title == "" {
		return models.Listing{}, false
	}

	if strings.HasPrefix(href, "/") {
		href = c.baseURL + href
	}
	if normalized, err := util.NormalizeItemURL(href); err == nil {
		href = normalized
	}
	if decorated, changed := util.DecorateAffiliateURL(href, c.campaignID); changed {
		href = decorated
	}

	current := util.ParsePrice(s.Find(".listing-card__price").First().Text())
	original := util.ParsePrice(s.Find(".listing-card__original-price").First().Text())
	discount := util.ParsePercent(s.Find(".listing-card__discount").First().Text())
	if discount == 0 {
		discount = models.DiscountPercent(original, current)
	}

	imageURL, _ := s.Find(".listing-card__image img").First().Attr("src")
	categoryID, _ := s.Attr("data-category-id")

	return models.Listing{
		MarketplaceItemID: itemID,
		Title:             title,
		ImageURL:          imageURL,
		OriginalPrice:     original,
		CurrentPrice:      current,
		DiscountPercent:   discount,
		Currency:          strings.TrimSpace(s.Find(".listing-card__currency").First().Text()),
		Condition:         strings.TrimSpace(s.Find(".listing-card__condition").First().Text()),
		ItemURL:           href,
		CategoryID:        strings.TrimSpace(categoryID),
		CategoryName:      strings.TrimSpace(s.Find(".listing-card__category").First().Text()),
	}, true
}

func (c *HTMLClient) fetchDocument(ctx context.Context, urlStr string) (*goquery.Document, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL %s: %w", urlStr, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme %s: only http and https allowed", parsedURL.Scheme)
	}

	hostname := parsedURL.Hostname()
	allowed := false
	for _, domain := range c.allowedDomains {
		if hostname == domain {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("URL hostname %s is not in allowlist", hostname)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for URL %s: %w", urlStr, err)
	}
	req.Header.Set("User-Agent", htmlUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, classifyStatus(res.StatusCode, fmt.Errorf("fetch %s returned status %d", urlStr, res.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Err: fmt.Errorf("failed to parse search page: %w", err)}
	}
	return doc, nil
}
