package domain

import "fmt"

// WorkOrderNotFoundError marks a batch or assignment referencing a work order
// absent from the same cycle's fact set. Soft inconsistency: the consumer
// renders best-effort defaults instead of dropping the entity.
type WorkOrderNotFoundError struct {
	WorkOrderID string
}

func (e *WorkOrderNotFoundError) Error() string {
	return fmt.Sprintf("work order not found: %s", e.WorkOrderID)
}

// UnknownStageError marks a batch carrying a stage tag outside the pipeline.
// The batch is excluded from per-stage output; aggregation continues.
type UnknownStageError struct {
	BatchID string
	Stage   Stage
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("batch %s carries unknown stage tag %q", e.BatchID, e.Stage)
}

// SnapshotNotFoundError is returned when a view has not published yet.
type SnapshotNotFoundError struct {
	View string
}

func (e *SnapshotNotFoundError) Error() string {
	return fmt.Sprintf("no snapshot published for view %q", e.View)
}
