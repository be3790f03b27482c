// Package journal keeps the append-only record of rule executions.
// Recording is strictly best-effort: a journal write failure is logged
// and swallowed so it can never fail the execution it describes.
package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/dealscout/dealscout/internal/models"
)

type ExecutionStore interface {
	AppendExecution(ctx context.Context, exec models.Execution) error
	ListExecutions(ctx context.Context, limit int, before time.Time) ([]models.Execution, error)
}

type Recorder struct {
	store ExecutionStore
}

func NewRecorder(store ExecutionStore) *Recorder {
	return &Recorder{store: store}
}

// Record appends one execution row. The row's timestamp is set here if
// the caller left it zero.
func (r *Recorder) Record(ctx context.Context, exec models.Execution) {
	if exec.Timestamp.IsZero() {
		exec.Timestamp = time.Now()
	}
	if err := r.store.AppendExecution(ctx, exec); err != nil {
		slog.Error("failed to record execution",
			"rule_id", exec.RuleID,
			"status", exec.Status,
			"error", err)
	}
}

// History returns execution rows newest first. A zero before time means
// start from the latest row.
func (r *Recorder) History(ctx context.Context, limit int, before time.Time) ([]models.Execution, error) {
	return r.store.ListExecutions(ctx, limit, before)
}
