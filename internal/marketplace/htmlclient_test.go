package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const searchPageHTML = `<!DOCTYPE html>
<html>
<body>
<ul class="search-results">
	<li class="listing-card" data-item-id="H1" data-category-id="281">
		<a class="listing-card__link" href="/itm/H1?utm_source=search">
			<span class="listing-card__title">Luxury Watch Automatic</span>
		</a>
		<div class="listing-card__image"><img src="https://img.market.test/H1.jpg" /></div>
		<span class="listing-card__price">$650.00</span>
		<span class="listing-card__original-price">$1,000.00</span>
		<span class="listing-card__discount">35% OFF</span>
		<span class="listing-card__condition">Pre-owned</span>
		<span class="listing-card__category">Watches</span>
	</li>
	<li class="listing-card" data-item-id="H2">
		<a class="listing-card__link" href="/itm/H2">
			<span class="listing-card__title">Dive Watch</span>
		</a>
		<span class="listing-card__price">$120.00</span>
		<span class="listing-card__original-price">$160.00</span>
	</li>
	<li class="listing-card">
		<a class="listing-card__link" href="/itm/broken">
			<span class="listing-card__title">Card without item id</span>
		</a>
	</li>
</ul>
</body>
</html>`

func TestHTMLClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		if q := r.URL.Query().Get("q"); q != "luxury watch" {
			t.Errorf("q = %q, want %q", q, "luxury watch")
		}
		fmt.Fprint(w, searchPageHTML)
	}))
	defer srv.Close()

	c, err := NewHTMLClient(srv.URL, "5338-001", nil, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	listings, err := c.Search(context.Background(), Query{Keyword: "luxury watch", Limit: 50})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	// The card without a data-item-id is dropped
	if len(listings) != 2 {
		t.Fatalf("Expected 2 listings, got %d", len(listings))
	}

	l := listings[0]
	if l.MarketplaceItemID != "H1" {
		t.Errorf("MarketplaceItemID = %q, want H1", l.MarketplaceItemID)
	}
	if l.Title != "Luxury Watch Automatic" {
		t.Errorf("Title = %q", l.Title)
	}
	if l.CurrentPrice != 650 || l.OriginalPrice != 1000 {
		t.Errorf("Prices = %v/%v, want 650/1000", l.CurrentPrice, l.OriginalPrice)
	}
	if l.DiscountPercent != 35 {
		t.Errorf("DiscountPercent = %v, want 35", l.DiscountPercent)
	}
	if l.Condition != "Pre-owned" || l.CategoryID != "281" {
		t.Errorf("Condition/Category = %q/%q", l.Condition, l.CategoryID)
	}

	// Relative href resolved against base, forced https, tracking stripped,
	// affiliate added
	want := "https://" + strings.TrimPrefix(srv.URL, "http://") + "/itm/H1?campid=5338-001"
	if l.ItemURL != want {
		t.Errorf("ItemURL = %q, want %q", l.ItemURL, want)
	}

	// H2 has no discount badge: derived from prices, (160-120)/160 = 25%
	if listings[1].DiscountPercent != 25 {
		t.Errorf("listings[1].DiscountPercent = %v, want 25", listings[1].DiscountPercent)
	}
}

func TestHTMLClient_DisallowedHost(t *testing.T) {
	c, err := NewHTMLClient("https://market.test", "", nil, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.fetchDocument(context.Background(), "https://evil.test/search")
	if err == nil {
		t.Error("Expected allowlist error for foreign host")
	}
}

func TestHTMLClient_NotFoundIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewHTMLClient(srv.URL, "", nil, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Search(context.Background(), Query{Keyword: "watch"})
	if err == nil {
		t.Fatal("Expected error")
	}
	if !IsRetryable(err) {
		t.Errorf("503 should classify as retryable, got %v", err)
	}
}
