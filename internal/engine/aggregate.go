package engine

import (
	"log/slog"
	"time"

	"github.com/shopfloor/floorstate/internal/domain"
)

// AggregateStages folds open batches into one StageMetric per pipeline stage.
// Output order is always domain.PipelineStages, and every stage is always
// present — a stage with no open batches yields all-zero metrics, never nil.
//
// Batches with an unknown stage tag are logged and excluded; they must not
// halt aggregation of the known stages. Batches whose work order is missing
// from orders still count, they just can never be overdue.
func AggregateStages(
	batches []domain.StageBatch,
	orders map[string]domain.WorkOrderSummary,
	now time.Time,
	logger *slog.Logger,
) []domain.StageMetric {
	type acc struct {
		count      int
		quantity   int
		waitHours  float64
		waitSample int
		inQueue    int
		inProgress int
		overdue    int
	}
	byStage := make(map[domain.Stage]*acc, len(domain.PipelineStages))
	for _, s := range domain.PipelineStages {
		byStage[s] = &acc{}
	}

	for _, b := range batches {
		if !b.Open() {
			continue
		}
		a, ok := byStage[b.Stage]
		if !ok {
			softErr := &domain.UnknownStageError{BatchID: b.ID, Stage: b.Stage}
			logger.Warn("skipping batch", slog.String("error", softErr.Error()))
			continue
		}

		a.count++
		a.quantity += b.Quantity

		// Wait time only for batches that actually carry an entry timestamp.
		if !b.EnteredAt.IsZero() {
			a.waitHours += now.Sub(b.EnteredAt).Hours()
			a.waitSample++
		}

		switch b.Status {
		case domain.BatchQueued:
			a.inQueue++
		case domain.BatchInProgress:
			a.inProgress++
		}

		if o, ok := orders[b.WorkOrderID]; ok && o.Overdue(now) {
			a.overdue++
		}
	}

	metrics := make([]domain.StageMetric, 0, len(domain.PipelineStages))
	for _, s := range domain.PipelineStages {
		a := byStage[s]
		m := domain.StageMetric{
			Stage:          s,
			BatchCount:     a.count,
			TotalQuantity:  a.quantity,
			InQueue:        a.inQueue,
			InProgress:     a.inProgress,
			OverdueCount:   a.overdue,
			HasWork:        a.count > 0,
			BlockingReason: domain.StageBlockNone,
		}
		if a.waitSample > 0 {
			m.AvgWaitHours = a.waitHours / float64(a.waitSample)
		}
		metrics = append(metrics, m)
	}
	return metrics
}
