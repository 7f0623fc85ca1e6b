package domain

import (
	"strings"
	"time"
)

// Stage is one step of the fixed production pipeline.
type Stage string

const (
	StageCutting    Stage = "cutting"
	StageProduction Stage = "production"
	StageQuality    Stage = "quality"
	StagePacking    Stage = "packing"
	StageDispatch   Stage = "dispatch"
	StageExternal   Stage = "external"
)

// PipelineStages is the fixed pipeline order. Every per-stage output follows
// this order regardless of the order facts arrive in.
var PipelineStages = []Stage{
	StageCutting,
	StageProduction,
	StageQuality,
	StagePacking,
	StageDispatch,
	StageExternal,
}

// Known reports whether s is one of the pipeline stages.
func (s Stage) Known() bool {
	for _, known := range PipelineStages {
		if s == known {
			return true
		}
	}
	return false
}

// BatchStatus is the lifecycle tag on a stage batch.
type BatchStatus string

const (
	BatchQueued     BatchStatus = "QUEUED"
	BatchInProgress BatchStatus = "IN_PROGRESS"
	BatchCompleted  BatchStatus = "COMPLETED"
)

// Machine is a raw machine record as fetched from the floor datastore.
// The engine never mutates it.
type Machine struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	RawStatus          string     `json:"raw_status"`
	CurrentWorkOrderID string     `json:"current_work_order_id,omitempty"`
	JobStartedAt       *time.Time `json:"job_started_at,omitempty"`
	QCFlag             string     `json:"qc_flag,omitempty"`
}

// RawDown reports whether the machine's raw status tag indicates a fault.
func (m Machine) RawDown() bool {
	s := strings.ToLower(m.RawStatus)
	return s == "down" || s == "fault" || s == "breakdown"
}

// RawRunning reports whether the raw status tag claims the machine is running.
func (m Machine) RawRunning() bool {
	return strings.ToLower(m.RawStatus) == "running"
}

// QCFailed reports whether the machine-level QC flag indicates failure.
func (m Machine) QCFailed() bool {
	return strings.ToLower(m.QCFlag) == "failed"
}

// StageBatch is a tracked sub-quantity of a work order moving through one
// stage. A work order may have several open batches in different stages at
// the same time; stage membership is derived from open batches only.
type StageBatch struct {
	ID          string      `json:"id"`
	WorkOrderID string      `json:"work_order_id"`
	Stage       Stage       `json:"stage"`
	Quantity    int         `json:"quantity"`
	EnteredAt   time.Time   `json:"entered_at"`
	EndedAt     *time.Time  `json:"ended_at,omitempty"`
	Status      BatchStatus `json:"status"`
}

// Open reports whether the batch is still in its stage.
func (b StageBatch) Open() bool { return b.EndedAt == nil }

// MaintenanceEvent is a maintenance log entry. A nil EndedAt is the liveness
// signal for "this machine is currently blocked by maintenance".
type MaintenanceEvent struct {
	ID        string     `json:"id"`
	MachineID string     `json:"machine_id"`
	Reason    string     `json:"reason"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Active reports whether the event is still open.
func (e MaintenanceEvent) Active() bool { return e.EndedAt == nil }

// Planned reports whether the reason text reads like scheduled servicing
// rather than a breakdown.
func (e MaintenanceEvent) Planned() bool {
	r := strings.ToLower(e.Reason)
	return strings.Contains(r, "maintenance") || strings.Contains(r, "service")
}

// QueuedAssignment is a scheduled job waiting for a machine.
type QueuedAssignment struct {
	ID          string    `json:"id"`
	MachineID   string    `json:"machine_id"`
	WorkOrderID string    `json:"work_order_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
}

// WorkOrderSummary is the work-order metadata the engine joins against.
type WorkOrderSummary struct {
	ID                  string     `json:"id"`
	ItemCode            string     `json:"item_code"`
	DueDate             *time.Time `json:"due_date,omitempty"`
	Quantity            int        `json:"quantity"`
	MaterialQCPassed    bool       `json:"material_qc_passed"`
	FirstPieceQCPassed  bool       `json:"first_piece_qc_passed"`
	CycleTimeSec        float64    `json:"cycle_time_sec,omitempty"`
	ExternalProcessName string     `json:"external_process_name,omitempty"`
}

// Overdue reports whether the order's due date has passed at the given
// instant. Orders without a due date are never overdue.
func (w WorkOrderSummary) Overdue(now time.Time) bool {
	return w.DueDate != nil && w.DueDate.Before(now)
}

// ItemMaster is the item-master record backing the last cycle-time tier.
type ItemMaster struct {
	Code         string  `json:"code"`
	Description  string  `json:"description,omitempty"`
	CycleTimeSec float64 `json:"cycle_time_sec,omitempty"`
}

// ProductionLogRow is one machine/day production log line: logged cycle time,
// quantities and downtime for the current production day.
type ProductionLogRow struct {
	MachineID        string    `json:"machine_id"`
	WorkOrderID      string    `json:"work_order_id"`
	LogDate          time.Time `json:"log_date"`
	LoggedAt         time.Time `json:"logged_at"`
	CycleTimeSec     float64   `json:"cycle_time_sec,omitempty"`
	PiecesProduced   int       `json:"pieces_produced"`
	DowntimeMinutes  int       `json:"downtime_minutes"`
	DowntimeReason   string    `json:"downtime_reason,omitempty"`
	DowntimeResolved bool      `json:"downtime_resolved"`
}

// OpenDowntime reports whether the row records downtime that nobody has
// resolved yet.
func (r ProductionLogRow) OpenDowntime() bool {
	return r.DowntimeMinutes > 0 && !r.DowntimeResolved
}
