package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dealscout/dealscout/internal/models"
	"github.com/dealscout/dealscout/internal/scheduler"
	"github.com/dealscout/dealscout/internal/validator"
)

// adminStore is the slice of the storage client the admin surface uses.
type adminStore interface {
	GetRule(ctx context.Context, ruleID string) (*models.Rule, error)
	DeleteExecutionsForRule(ctx context.Context, ruleID string) (int, error)
	ReactivateDeactivatedSince(ctx context.Context, since time.Time) (int, error)
}

type ruleScheduler interface {
	RunNow(ctx context.Context, ruleID string) (models.Execution, error)
	UpsertRule(rule models.Rule) error
	RemoveRule(ruleID string)
	Jobs() []scheduler.JobStatus
}

type executionHistory interface {
	History(ctx context.Context, limit int, before time.Time) ([]models.Execution, error)
}

type Server struct {
	store    adminStore
	sched    ruleScheduler
	journal  executionHistory
	validate *validator.Validator
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rules/{id}/run", s.runRuleHandler)
	mux.HandleFunc("POST /rules/{id}/sync", s.syncRuleHandler)
	mux.HandleFunc("DELETE /rules/{id}/schedule", s.deleteScheduleHandler)
	mux.HandleFunc("GET /executions", s.executionsHandler)
	mux.HandleFunc("POST /deals/restore", s.restoreDealsHandler)
	mux.HandleFunc("GET /jobs", s.jobsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// runRuleHandler triggers one execution immediately, bypassing the timer.
// A rule already mid-execution answers 409 rather than queueing.
func (s *Server) runRuleHandler(w http.ResponseWriter, r *http.Request) {
	ruleID := r.PathValue("id")

	exec, err := s.sched.RunNow(r.Context(), ruleID)
	switch {
	case errors.Is(err, models.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, models.ErrRuleBusy):
		writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		slog.Error("Manual rule run failed", "rule", ruleID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

// syncRuleHandler re-reads a rule edited out of band, validates it, and
// re-arms (or disarms) its timer.
func (s *Server) syncRuleHandler(w http.ResponseWriter, r *http.Request) {
	ruleID := r.PathValue("id")

	rule, err := s.store.GetRule(r.Context(), ruleID)
	if errors.Is(err, models.ErrRuleNotFound) {
		// A deleted rule syncs to a disarmed timer.
		s.sched.RemoveRule(ruleID)
		writeJSON(w, http.StatusOK, map[string]string{"ruleId": ruleID, "schedule": "removed"})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := s.validate.ValidateRule(*rule); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err := s.sched.UpsertRule(*rule); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	state := "armed"
	if !rule.Active {
		state = "removed"
	}
	writeJSON(w, http.StatusOK, map[string]string{"ruleId": ruleID, "schedule": state})
}

// deleteScheduleHandler disarms a rule's timer and cascades deletion of its
// execution journal. Deals stay untouched; they only ever deactivate.
func (s *Server) deleteScheduleHandler(w http.ResponseWriter, r *http.Request) {
	ruleID := r.PathValue("id")

	s.sched.RemoveRule(ruleID)
	deleted, err := s.store.DeleteExecutionsForRule(r.Context(), ruleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ruleId": ruleID, "deletedExecutions": deleted})
}

func (s *Server) executionsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = parsed
	}

	var before time.Time
	if v := r.URL.Query().Get("before"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid before %q: expected RFC 3339", v))
			return
		}
		before = parsed
	}

	execs, err := s.journal.History(r.Context(), limit, before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if execs == nil {
		execs = []models.Execution{}
	}
	writeJSON(w, http.StatusOK, execs)
}

// restoreDealsHandler reactivates deals deactivated since a given time,
// the recovery path for an over-aggressive rule edit or sweep.
func (s *Server) restoreDealsHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Since time.Time `json:"since"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Since.IsZero() {
		writeError(w, http.StatusBadRequest, errors.New("since is required"))
		return
	}

	restored, err := s.store.ReactivateDeactivatedSince(r.Context(), req.Since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"restored": restored})
}

func (s *Server) jobsHandler(w http.ResponseWriter, _ *http.Request) {
	jobs := s.sched.Jobs()
	if jobs == nil {
		jobs = []scheduler.JobStatus{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
