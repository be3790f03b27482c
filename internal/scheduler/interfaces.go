package scheduler

import (
	"context"
	"time"

	"github.com/dealscout/dealscout/internal/aggregator"
	"github.com/dealscout/dealscout/internal/models"
	"github.com/dealscout/dealscout/internal/reconciler"
)

// RuleStore provides the rule reads the scheduler needs plus the single
// rule field it writes back.
type RuleStore interface {
	GetRule(ctx context.Context, ruleID string) (*models.Rule, error)
	ListActiveRules(ctx context.Context) ([]models.Rule, error)
	SetRuleLastRun(ctx context.Context, ruleID string, ts time.Time) error
}

// ListingAggregator gathers one rule's deduplicated search results.
type ListingAggregator interface {
	Run(ctx context.Context, rule models.Rule) (aggregator.Result, error)
}

// Reconciler applies gathered listings to the deal catalog.
type Reconciler interface {
	Reconcile(ctx context.Context, rule models.Rule, listings []models.Listing) (reconciler.Outcome, error)
}

// Sweeper runs the periodic catalog-wide staleness pass.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// ExecutionRecorder journals one row per execution; it never fails the
// caller.
type ExecutionRecorder interface {
	Record(ctx context.Context, exec models.Execution)
}

// DealNotifier announces newly cataloged deals. Announcement failures are
// logged, never propagated.
type DealNotifier interface {
	Announce(ctx context.Context, deal models.Deal) error
}
