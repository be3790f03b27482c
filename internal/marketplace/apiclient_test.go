package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAPIClient_Search(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"q":            r.URL.Query().Get("q"),
			"min_price":    r.URL.Query().Get("min_price"),
			"max_price":    r.URL.Query().Get("max_price"),
			"min_discount": r.URL.Query().Get("min_discount"),
			"limit":        r.URL.Query().Get("limit"),
			"auth":         r.Header.Get("Authorization"),
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items":[
			{"item_id":"E1","title":"Luxury Watch","item_url":"http://market.test/itm/E1/","original_price":1000,"current_price":700,"currency":"USD","condition":"New","category_id":"281"},
			{"item_id":"E2","title":"Another Watch","item_url":"https://market.test/itm/E2","original_price":500,"current_price":400,"discount_percent":20,"currency":"USD"},
			{"item_id":"","title":"No ID","item_url":"https://market.test/itm/none"}
		]}`)
	}))
	defer srv.Close()

	c, err := NewAPIClient(srv.URL, "tok-123", "5338-001", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	listings, err := c.Search(context.Background(), Query{
		Keyword:     "luxury watch",
		MinPrice:    100,
		MaxPrice:    1000,
		MinDiscount: 30,
		Limit:       50,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if gotQuery["q"] != "luxury watch" {
		t.Errorf("q = %q, want %q", gotQuery["q"], "luxury watch")
	}
	if gotQuery["min_price"] != "100" || gotQuery["max_price"] != "1000" {
		t.Errorf("price bounds = %q..%q, want 100..1000", gotQuery["min_price"], gotQuery["max_price"])
	}
	if gotQuery["min_discount"] != "30" {
		t.Errorf("min_discount = %q, want 30", gotQuery["min_discount"])
	}
	if gotQuery["auth"] != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want Bearer token", gotQuery["auth"])
	}

	// Item without an id is dropped
	if len(listings) != 2 {
		t.Fatalf("Expected 2 listings, got %d", len(listings))
	}

	l := listings[0]
	if l.MarketplaceItemID != "E1" {
		t.Errorf("MarketplaceItemID = %q, want E1", l.MarketplaceItemID)
	}
	// Missing discount is derived from prices: (1000-700)/1000 = 30%
	if l.DiscountPercent != 30 {
		t.Errorf("DiscountPercent = %v, want 30", l.DiscountPercent)
	}
	// URL is normalized (https, no trailing slash) and affiliate-decorated
	want := "https://market.test/itm/E1?campid=5338-001"
	if l.ItemURL != want {
		t.Errorf("ItemURL = %q, want %q", l.ItemURL, want)
	}

	// Explicit discount is kept as-is
	if listings[1].DiscountPercent != 20 {
		t.Errorf("listings[1].DiscountPercent = %v, want 20", listings[1].DiscountPercent)
	}
}

func TestAPIClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind ErrorKind
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, wantKind: KindRateLimited},
		{name: "unauthenticated", status: http.StatusUnauthorized, wantKind: KindUnauthenticated},
		{name: "forbidden", status: http.StatusForbidden, wantKind: KindUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c, err := NewAPIClient(srv.URL, "", "", 2*time.Second)
			if err != nil {
				t.Fatal(err)
			}

			// Hit the single-attempt path directly so retry backoff doesn't
			// stall the test.
			reqURL, err := c.buildSearchURL(Query{Keyword: "rolex"})
			if err != nil {
				t.Fatal(err)
			}
			_, err = c.doSearch(context.Background(), reqURL)
			if err == nil {
				t.Fatal("Expected error")
			}
			var merr *Error
			if !errors.As(err, &merr) {
				t.Fatalf("Expected *Error, got %T: %v", err, err)
			}
			if merr.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", merr.Kind, tt.wantKind)
			}
		})
	}
}

func TestAPIClient_UnauthenticatedNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewAPIClient(srv.URL, "stale-token", "", 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Search(context.Background(), Query{Keyword: "rolex"})
	if err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("Expected exactly 1 request for unauthenticated error, got %d", calls)
	}
}

func TestAPIClient_TransientRetriedThenSucceeds(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"items":[{"item_id":"E1","title":"Watch","item_url":"https://market.test/itm/E1","original_price":100,"current_price":50}]}`)
	}))
	defer srv.Close()

	c, err := NewAPIClient(srv.URL, "", "", 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	listings, err := c.Search(context.Background(), Query{Keyword: "watch"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 requests (1 failure + 1 retry), got %d", calls)
	}
	if len(listings) != 1 {
		t.Fatalf("Expected 1 listing, got %d", len(listings))
	}
}

func TestNewAPIClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewAPIClient("  ", "", "", time.Second); err == nil {
		t.Error("Expected error for empty base URL")
	}
}
