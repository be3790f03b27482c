package models

import (
	"errors"
	"strings"
	"time"
)

// ErrDealExists is returned when attempting to create a deal that already exists.
var ErrDealExists = errors.New("deal already exists")

// ErrRuleNotFound is returned when a rule id resolves to nothing.
var ErrRuleNotFound = errors.New("rule not found")

// ErrRuleBusy is returned when a manual trigger targets a rule that already
// has an execution in flight.
var ErrRuleBusy = errors.New("rule execution already in progress")

// Rule is an operator-defined synchronization policy: which keywords to
// search, which price/discount bounds a listing must satisfy, and how often
// to re-run the search.
type Rule struct {
	ID          string    `firestore:"-" validate:"required"`
	Name        string    `firestore:"name"`
	Keywords    []string  `firestore:"keywords"`
	CategoryID  string    `firestore:"categoryID,omitempty"`
	MinPrice    float64   `firestore:"minPrice" validate:"gte=0"`
	MaxPrice    float64   `firestore:"maxPrice" validate:"gte=0"`
	MinDiscount float64   `firestore:"minDiscount" validate:"gte=0,lte=100"`
	Schedule    string    `firestore:"schedule" validate:"required"`
	Active      bool      `firestore:"active"`
	LastRun     time.Time `firestore:"lastRun,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt,omitempty"`
}

// SearchKeywords returns the rule's keywords trimmed, with empty entries
// dropped. A rule with no usable keywords is inert: it arms a timer but every
// execution finds nothing.
func (r Rule) SearchKeywords() []string {
	out := make([]string, 0, len(r.Keywords))
	for _, kw := range r.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// Matches reports whether a listing satisfies the rule's price and discount
// bounds. A zero MaxPrice means unbounded above.
func (r Rule) Matches(l Listing) bool {
	if l.CurrentPrice < r.MinPrice {
		return false
	}
	if r.MaxPrice > 0 && l.CurrentPrice > r.MaxPrice {
		return false
	}
	return l.DiscountPercent >= r.MinDiscount
}

// Listing is one normalized marketplace search result. Listings only live
// inside a single rule execution; they are never persisted as-is.
type Listing struct {
	MarketplaceItemID string
	Title             string
	ImageURL          string
	OriginalPrice     float64
	CurrentPrice      float64
	DiscountPercent   float64
	Currency          string
	Condition         string
	ItemURL           string
	CategoryID        string
	CategoryName      string
}

// Deal is the persisted catalog entry derived from listings. The document id
// is the marketplace item id, so there is exactly one Deal per item. Deals
// are deactivated rather than deleted so eviction is always recoverable.
type Deal struct {
	MarketplaceItemID string    `firestore:"-" validate:"required"`
	Title             string    `firestore:"title" validate:"required"`
	ImageURL          string    `firestore:"imageURL,omitempty" validate:"omitempty,url"`
	OriginalPrice     float64   `firestore:"originalPrice" validate:"gte=0"`
	CurrentPrice      float64   `firestore:"currentPrice" validate:"gte=0"`
	DiscountPercent   float64   `firestore:"discountPercent" validate:"gte=0,lte=100"`
	Currency          string    `firestore:"currency,omitempty"`
	Condition         string    `firestore:"condition,omitempty"`
	ItemURL           string    `firestore:"itemURL" validate:"required,url"`
	CategoryID        string    `firestore:"categoryID,omitempty"`
	Active            bool      `firestore:"active"`
	UpdatedAt         time.Time `firestore:"updatedAt"`

	// DeactivatedAt marks when the deal was last deactivated; the restore
	// path keys off it. Zero while the deal is active. UpdatedAt keeps the
	// last sighting even across deactivation.
	DeactivatedAt time.Time `firestore:"deactivatedAt,omitempty"`
}

// Execution statuses. A partially failed run (some keywords errored, some
// succeeded) still records success; only a run that could not reconcile at
// all records an error.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Execution is one append-only journal row per rule execution.
type Execution struct {
	ID        string    `firestore:"-"`
	RuleID    string    `firestore:"ruleID"`
	Status    string    `firestore:"status"`
	Found     int       `firestore:"found"`
	Added     int       `firestore:"added"`
	Updated   int       `firestore:"updated"`
	Removed   int       `firestore:"removed"`
	Error     string    `firestore:"error,omitempty"`
	Timestamp time.Time `firestore:"timestamp"`
}

// DiscountPercent derives the discount of current against original, clamped
// to [0,100]. A missing or nonsensical original price yields 0.
func DiscountPercent(original, current float64) float64 {
	if original <= 0 || current < 0 || current >= original {
		return 0
	}
	return (original - current) / original * 100
}

// FromListing builds an active Deal out of a listing sighting.
func FromListing(l Listing, now time.Time) Deal {
	return Deal{
		MarketplaceItemID: l.MarketplaceItemID,
		Title:             l.Title,
		ImageURL:          l.ImageURL,
		OriginalPrice:     l.OriginalPrice,
		CurrentPrice:      l.CurrentPrice,
		DiscountPercent:   l.DiscountPercent,
		Currency:          l.Currency,
		Condition:         l.Condition,
		ItemURL:           l.ItemURL,
		CategoryID:        l.CategoryID,
		Active:            true,
		UpdatedAt:         now,
	}
}
