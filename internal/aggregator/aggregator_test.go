package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dealscout/dealscout/internal/marketplace"
	"github.com/dealscout/dealscout/internal/models"
)

// fakeSearcher returns canned listings (or an error) per keyword.
type fakeSearcher struct {
	byKeyword map[string][]models.Listing
	errors    map[string]error
	queries   []marketplace.Query
}

func (f *fakeSearcher) Search(_ context.Context, q marketplace.Query) ([]models.Listing, error) {
	f.queries = append(f.queries, q)
	if err, ok := f.errors[q.Keyword]; ok {
		return nil, err
	}
	return f.byKeyword[q.Keyword], nil
}

func listing(id string, price float64) models.Listing {
	return models.Listing{
		MarketplaceItemID: id,
		Title:             "Listing " + id,
		CurrentPrice:      price,
		OriginalPrice:     price * 2,
		DiscountPercent:   50,
		ItemURL:           "https://market.test/itm/" + id,
	}
}

func newTestAggregator(s marketplace.Searcher) *Aggregator {
	// Near-zero delay keeps tests fast; pacing itself is the limiter's
	// concern, not ours.
	return New(s, time.Millisecond, time.Second, 50)
}

func TestRun_MergesAndDeduplicates(t *testing.T) {
	s := &fakeSearcher{byKeyword: map[string][]models.Listing{
		"rolex": {listing("E1", 700), listing("E2", 300)},
		"omega": {listing("E2", 300), listing("E3", 150)},
	}}

	agg := newTestAggregator(s)
	res, err := agg.Run(context.Background(), models.Rule{
		ID:       "rule-1",
		Keywords: []string{"rolex", "omega"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// E2 is surfaced by both keywords but must appear once
	if len(res.Listings) != 3 {
		t.Fatalf("Expected 3 unique listings, got %d", len(res.Listings))
	}
	seen := make(map[string]int)
	for _, l := range res.Listings {
		seen[l.MarketplaceItemID]++
	}
	if seen["E2"] != 1 {
		t.Errorf("E2 appeared %d times, want exactly 1", seen["E2"])
	}

	// Per-keyword counts reflect raw (pre-dedup) hits
	if res.PerKeywordCount["rolex"] != 2 || res.PerKeywordCount["omega"] != 2 {
		t.Errorf("PerKeywordCount = %v, want rolex:2, omega:2", res.PerKeywordCount)
	}
	if len(res.Errors) != 0 {
		t.Errorf("Expected no keyword errors, got %v", res.Errors)
	}
}

func TestRun_PartialFailureContinues(t *testing.T) {
	s := &fakeSearcher{
		byKeyword: map[string][]models.Listing{
			"rolex": {listing("E1", 700)},
		},
		errors: map[string]error{
			"gucci": &marketplace.Error{Kind: marketplace.KindTransient, Err: errors.New("timeout")},
		},
	}

	agg := newTestAggregator(s)
	res, err := agg.Run(context.Background(), models.Rule{
		ID:       "rule-1",
		Keywords: []string{"gucci", "rolex"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(res.Listings) != 1 || res.Listings[0].MarketplaceItemID != "E1" {
		t.Fatalf("Expected only the rolex listing, got %v", res.Listings)
	}
	if len(res.Errors) != 1 || res.Errors[0].Keyword != "gucci" {
		t.Fatalf("Expected one gucci error, got %v", res.Errors)
	}
	if res.AllFailed() {
		t.Error("Partial failure must not report AllFailed")
	}
}

func TestRun_AllKeywordsFailed(t *testing.T) {
	s := &fakeSearcher{errors: map[string]error{
		"gucci": errors.New("boom"),
		"rolex": errors.New("boom"),
	}}

	agg := newTestAggregator(s)
	res, err := agg.Run(context.Background(), models.Rule{
		ID:       "rule-1",
		Keywords: []string{"gucci", "rolex"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.AllFailed() {
		t.Error("Expected AllFailed when every keyword errors")
	}
}

func TestRun_SkipsBlankKeywords(t *testing.T) {
	s := &fakeSearcher{byKeyword: map[string][]models.Listing{
		"rolex": {listing("E1", 700)},
	}}

	agg := newTestAggregator(s)
	res, err := agg.Run(context.Background(), models.Rule{
		ID:       "rule-1",
		Keywords: []string{"  ", "", "rolex", "\t"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(s.queries) != 1 {
		t.Fatalf("Expected 1 search call, got %d", len(s.queries))
	}
	if s.queries[0].Keyword != "rolex" {
		t.Errorf("Keyword = %q, want rolex", s.queries[0].Keyword)
	}
	if len(res.Listings) != 1 {
		t.Errorf("Expected 1 listing, got %d", len(res.Listings))
	}
}

func TestRun_InertRuleFindsNothing(t *testing.T) {
	s := &fakeSearcher{}
	agg := newTestAggregator(s)

	res, err := agg.Run(context.Background(), models.Rule{ID: "rule-1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Listings) != 0 || len(s.queries) != 0 {
		t.Errorf("Inert rule should search nothing, got %d listings from %d calls", len(res.Listings), len(s.queries))
	}
}

func TestRun_PassesRuleBounds(t *testing.T) {
	s := &fakeSearcher{}
	agg := newTestAggregator(s)

	_, err := agg.Run(context.Background(), models.Rule{
		ID:          "rule-1",
		Keywords:    []string{"luxury watch"},
		MinPrice:    100,
		MaxPrice:    1000,
		MinDiscount: 30,
		CategoryID:  "281",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(s.queries) != 1 {
		t.Fatal("Expected one search call")
	}
	q := s.queries[0]
	if q.MinPrice != 100 || q.MaxPrice != 1000 || q.MinDiscount != 30 || q.CategoryID != "281" || q.Limit != 50 {
		t.Errorf("Query bounds not propagated: %+v", q)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &fakeSearcher{}
	agg := newTestAggregator(s)
	_, err := agg.Run(ctx, models.Rule{ID: "rule-1", Keywords: []string{"rolex"}})
	if err == nil {
		t.Error("Expected context error from cancelled run")
	}
}
