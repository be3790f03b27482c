// Package scheduler arms one timer per active rule and drives the
// aggregate-reconcile-journal pipeline whenever a timer fires or an
// operator triggers a rule manually. Executions of different rules run
// concurrently; executions of the same rule are mutually exclusive.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dealscout/dealscout/internal/models"
)

type job struct {
	rule     models.Rule
	schedule cron.Schedule
	stop     chan struct{}
}

// JobStatus describes one armed timer for the admin surface.
type JobStatus struct {
	RuleID   string    `json:"ruleId"`
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"nextRun"`
}

type Scheduler struct {
	store         RuleStore
	agg           ListingAggregator
	engine        Reconciler
	sweeper       Sweeper
	journal       ExecutionRecorder
	notifier      DealNotifier
	sweepInterval time.Duration

	ctx context.Context

	mu       sync.Mutex
	jobs     map[string]*job
	inFlight map[string]bool
}

func New(store RuleStore, agg ListingAggregator, engine Reconciler, sweeper Sweeper, journal ExecutionRecorder, notifier DealNotifier, sweepInterval time.Duration) *Scheduler {
	return &Scheduler{
		store:         store,
		agg:           agg,
		engine:        engine,
		sweeper:       sweeper,
		journal:       journal,
		notifier:      notifier,
		sweepInterval: sweepInterval,
		ctx:           context.Background(),
		jobs:          make(map[string]*job),
		inFlight:      make(map[string]bool),
	}
}

// Start arms a timer for every active rule and launches the periodic
// staleness sweep. A rule with a malformed schedule is logged and skipped;
// it never prevents the rest from starting. Start returns once all timers
// are armed; ctx cancellation tears everything down.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx

	rules, err := s.store.ListActiveRules(ctx)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	for _, rule := range rules {
		if err := s.UpsertRule(rule); err != nil {
			slog.Warn("Skipping rule with invalid schedule",
				"rule", rule.ID, "schedule", rule.Schedule, "error", err)
		}
	}
	slog.Info("Scheduler started", "rules", len(s.jobs))

	go s.runSweeps(ctx)
	return nil
}

// UpsertRule arms or re-arms the timer for one rule. An inactive rule is
// the same as removal. Returns an error only when the schedule expression
// does not parse; the previous timer, if any, is left untouched then.
func (s *Scheduler) UpsertRule(rule models.Rule) error {
	if !rule.Active {
		s.RemoveRule(rule.ID)
		return nil
	}
	schedule, err := cron.ParseStandard(rule.Schedule)
	if err != nil {
		return fmt.Errorf("parsing schedule %q: %w", rule.Schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.jobs[rule.ID]; ok {
		close(old.stop)
	}
	j := &job{rule: rule, schedule: schedule, stop: make(chan struct{})}
	s.jobs[rule.ID] = j
	go s.runTimer(j)
	return nil
}

// RemoveRule disarms a rule's timer. An execution already in flight for the
// rule finishes on its own.
func (s *Scheduler) RemoveRule(ruleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[ruleID]; ok {
		close(j.stop)
		delete(s.jobs, ruleID)
	}
}

// Jobs lists the currently armed timers.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, JobStatus{
			RuleID:   j.rule.ID,
			Name:     j.rule.Name,
			Schedule: j.rule.Schedule,
			NextRun:  j.schedule.Next(now),
		})
	}
	return out
}

// RunNow triggers one execution of a rule immediately, bypassing its timer.
// Returns models.ErrRuleBusy when the rule already has an execution in
// flight, and models.ErrRuleNotFound for unknown rules.
func (s *Scheduler) RunNow(ctx context.Context, ruleID string) (models.Execution, error) {
	return s.execute(ctx, ruleID)
}

func (s *Scheduler) runTimer(j *job) {
	for {
		next := j.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-j.stop:
			timer.Stop()
			return
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.fire(j.rule.ID)
	}
}

// fire runs one scheduled execution, recovering panics so a bad rule can
// never take the timer loop down with it.
func (s *Scheduler) fire(ruleID string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic during rule execution", "rule", ruleID, "panic", r)
		}
	}()

	exec, err := s.execute(s.ctx, ruleID)
	switch {
	case errors.Is(err, models.ErrRuleBusy):
		slog.Warn("Skipping scheduled fire, previous execution still running", "rule", ruleID)
	case err != nil:
		slog.Error("Rule execution failed", "rule", ruleID, "error", err)
	default:
		slog.Info("Rule execution complete",
			"rule", ruleID,
			"status", exec.Status,
			"found", exec.Found,
			"added", exec.Added,
			"updated", exec.Updated,
			"removed", exec.Removed)
	}
}

func (s *Scheduler) execute(ctx context.Context, ruleID string) (models.Execution, error) {
	if !s.acquire(ruleID) {
		return models.Execution{}, models.ErrRuleBusy
	}
	defer s.release(ruleID)

	// Re-read so an edit between timer fires takes effect immediately.
	rule, err := s.store.GetRule(ctx, ruleID)
	if err != nil {
		return models.Execution{}, err
	}

	exec := models.Execution{
		RuleID:    ruleID,
		Status:    models.StatusSuccess,
		Timestamp: time.Now(),
	}

	res, err := s.agg.Run(ctx, *rule)
	if err != nil {
		exec.Status = models.StatusError
		exec.Error = err.Error()
		s.finish(ctx, exec)
		return exec, err
	}
	exec.Found = len(res.Listings)

	if res.AllFailed() {
		exec.Status = models.StatusError
		exec.Error = fmt.Sprintf("all %d keyword searches failed: %v", len(res.Errors), res.Errors[0].Err)
		s.finish(ctx, exec)
		return exec, nil
	}

	outcome, err := s.engine.Reconcile(ctx, *rule, res.Listings)
	exec.Added = outcome.Added
	exec.Updated = outcome.Updated
	exec.Removed = outcome.Removed
	if err != nil {
		exec.Status = models.StatusError
		exec.Error = err.Error()
	} else if len(outcome.Errors) > 0 {
		// Item-level write failures leave the run a partial success; the
		// first failure is kept for the journal.
		exec.Error = outcome.Errors[0].Error()
	}

	if s.notifier != nil {
		for _, deal := range outcome.AddedDeals {
			if err := s.notifier.Announce(ctx, deal); err != nil {
				slog.Warn("Failed to announce new deal",
					"rule", ruleID, "item_id", deal.MarketplaceItemID, "error", err)
			}
		}
	}

	s.finish(ctx, exec)
	return exec, nil
}

// finish journals the execution and advances the rule's lastRun marker.
// Both are best-effort: a run that did its catalog work is complete even
// if its bookkeeping writes fail.
func (s *Scheduler) finish(ctx context.Context, exec models.Execution) {
	s.journal.Record(ctx, exec)
	if err := s.store.SetRuleLastRun(ctx, exec.RuleID, exec.Timestamp); err != nil {
		slog.Error("Failed to advance rule lastRun", "rule", exec.RuleID, "error", err)
	}
}

func (s *Scheduler) acquire(ruleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[ruleID] {
		return false
	}
	s.inFlight[ruleID] = true
	return true
}

func (s *Scheduler) release(ruleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, ruleID)
}

func (s *Scheduler) runSweeps(ctx context.Context) {
	if s.sweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.sweeper.Sweep(ctx); err != nil {
				slog.Error("Staleness sweep failed", "error", err)
			}
		}
	}
}
