package aggregator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/dealscout/dealscout/internal/marketplace"
	"github.com/dealscout/dealscout/internal/models"
)

// KeywordError records the failure of a single keyword search. A keyword
// failure never aborts the rest of the execution; the partial found set is
// handed downstream as-is.
type KeywordError struct {
	Keyword string
	Err     error
}

// Result is one aggregation pass over all of a rule's keywords.
type Result struct {
	Listings        []models.Listing
	PerKeywordCount map[string]int
	Errors          []KeywordError
}

// AllFailed reports whether every attempted keyword errored, which
// distinguishes a dead marketplace from a genuinely thin result set.
func (r Result) AllFailed() bool {
	return len(r.Errors) > 0 && len(r.PerKeywordCount) == 0
}

// Aggregator fans one marketplace search per rule keyword and merges the
// results into a single deduplicated listing set.
type Aggregator struct {
	searcher    marketplace.Searcher
	limiter     *rate.Limiter
	callTimeout time.Duration
	searchLimit int
}

// New builds an aggregator. delay is the minimum spacing between successive
// keyword calls; callTimeout bounds each individual search.
func New(searcher marketplace.Searcher, delay, callTimeout time.Duration, searchLimit int) *Aggregator {
	if delay <= 0 {
		delay = time.Second
	}
	if callTimeout <= 0 {
		callTimeout = 20 * time.Second
	}
	return &Aggregator{
		searcher:    searcher,
		limiter:     rate.NewLimiter(rate.Every(delay), 1),
		callTimeout: callTimeout,
		searchLimit: searchLimit,
	}
}

// Run searches every usable keyword of the rule sequentially and returns the
// merged, deduplicated listing set. A listing surfaced by two keywords counts
// once; which keyword contributed it first is irrelevant downstream.
func (a *Aggregator) Run(ctx context.Context, rule models.Rule) (Result, error) {
	res := Result{PerKeywordCount: make(map[string]int)}
	seen := make(map[string]struct{})

	for _, keyword := range rule.SearchKeywords() {
		// Pace calls so a many-keyword rule doesn't burst the marketplace.
		if err := a.limiter.Wait(ctx); err != nil {
			return res, err
		}

		listings, err := a.searchKeyword(ctx, rule, keyword)
		if err != nil {
			slog.Warn("Keyword search failed", "rule", rule.ID, "keyword", keyword, "error", err)
			res.Errors = append(res.Errors, KeywordError{Keyword: keyword, Err: err})
			continue
		}

		res.PerKeywordCount[keyword] = len(listings)
		for _, l := range listings {
			if _, dup := seen[l.MarketplaceItemID]; dup {
				continue
			}
			seen[l.MarketplaceItemID] = struct{}{}
			res.Listings = append(res.Listings, l)
		}
	}

	return res, nil
}

func (a *Aggregator) searchKeyword(ctx context.Context, rule models.Rule, keyword string) ([]models.Listing, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	return a.searcher.Search(callCtx, marketplace.Query{
		Keyword:     keyword,
		MinPrice:    rule.MinPrice,
		MaxPrice:    rule.MaxPrice,
		MinDiscount: rule.MinDiscount,
		CategoryID:  rule.CategoryID,
		Limit:       a.searchLimit,
	})
}
