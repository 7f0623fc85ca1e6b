package domain

import "time"

// Readiness is the single-valued operational state of a machine, recomputed
// from raw facts every refresh cycle. There is no stored transition history.
type Readiness string

const (
	ReadinessReady          Readiness = "ready"
	ReadinessRunning        Readiness = "running"
	ReadinessSetupRequired  Readiness = "setup_required"
	ReadinessMaintenanceDue Readiness = "maintenance_due"
	ReadinessDown           Readiness = "down"
	ReadinessQCBlocked      Readiness = "qc_blocked"
)

// Blocked reports whether the state means the machine cannot take work.
func (r Readiness) Blocked() bool {
	return r == ReadinessDown || r == ReadinessQCBlocked || r == ReadinessMaintenanceDue
}

// ProductionStatus labels a running machine's output against expectation.
type ProductionStatus string

const (
	ProductionOnCycle ProductionStatus = "on_cycle"
	ProductionAtRisk  ProductionStatus = "at_risk"
	ProductionBlocked ProductionStatus = "blocked"
	ProductionIdle    ProductionStatus = "idle"
)

// CycleTimeSource identifies which fallback tier satisfied a cycle-time
// lookup. It is a first-class output so consumers can show provenance.
type CycleTimeSource string

const (
	CycleSourceLog        CycleTimeSource = "log"
	CycleSourceWorkOrder  CycleTimeSource = "work_order"
	CycleSourceItemMaster CycleTimeSource = "item_master"
)

// CycleTime is a resolved effective cycle time with its provenance.
// A nil *CycleTime means no tier resolved — absent, not zero.
type CycleTime struct {
	Seconds float64         `json:"seconds"`
	Source  CycleTimeSource `json:"source"`
}

// ExpectedPerHour converts the cycle time into an expected hourly output.
func (c CycleTime) ExpectedPerHour() float64 {
	if c.Seconds <= 0 {
		return 0
	}
	return 3600 / c.Seconds
}

// StageBlockingReason is the single headline reason a stage is not flowing.
type StageBlockingReason string

const (
	StageBlockMaintenance StageBlockingReason = "maintenance"
	StageBlockQC          StageBlockingReason = "qc"
	StageBlockOverdue     StageBlockingReason = "overdue"
	StageBlockCapacity    StageBlockingReason = "capacity"
	StageBlockNone        StageBlockingReason = "none"
)

// StageMetric is the derived per-stage picture for one refresh cycle.
// A stage with no open batches still appears, all-zero.
type StageMetric struct {
	Stage          Stage               `json:"stage"`
	BatchCount     int                 `json:"batch_count"`
	TotalQuantity  int                 `json:"total_quantity"`
	AvgWaitHours   float64             `json:"avg_wait_hours"`
	InQueue        int                 `json:"in_queue"`
	InProgress     int                 `json:"in_progress"`
	OverdueCount   int                 `json:"overdue_count"`
	HasWork        bool                `json:"has_work"`
	BlockingReason StageBlockingReason `json:"blocking_reason"`
	BlockingCount  int                 `json:"blocking_count"`
	BottleneckRank int                 `json:"bottleneck_rank,omitempty"`
}

// MachineState is the derived per-machine picture for one refresh cycle.
// Fully recomputed every cycle, never patched incrementally.
type MachineState struct {
	MachineID         string           `json:"machine_id"`
	Name              string           `json:"name"`
	Readiness         Readiness        `json:"readiness"`
	Production        ProductionStatus `json:"production"`
	Blockers          []string         `json:"blockers,omitempty"`
	CycleTime         *CycleTime       `json:"cycle_time,omitempty"`
	WorkOrderID       string           `json:"work_order_id,omitempty"`
	WorkOrderLabel    string           `json:"work_order_label,omitempty"`
	PiecesToday       int              `json:"pieces_today"`
	HoursRunning      float64          `json:"hours_running"`
	QueueDepth        int              `json:"queue_depth"`
	QueuedQuantity    int              `json:"queued_quantity"`
	OldestQueuedHours float64          `json:"oldest_queued_hours"`
}

// BottleneckKind distinguishes the two entity kinds that can be ranked.
type BottleneckKind string

const (
	BottleneckStage   BottleneckKind = "stage"
	BottleneckMachine BottleneckKind = "machine"
)

// BottleneckEntry is one ranked contention point. Only the top two entries of
// a cycle carry a rank; rank 3+ is deliberately undefined.
type BottleneckEntry struct {
	Kind  BottleneckKind `json:"kind"`
	ID    string         `json:"id"`
	Score float64        `json:"score"`
	Rank  int            `json:"rank"`
}

// Snapshot is one complete, immutable output of the derivation engine. It is
// a pure function of one cycle's fetched facts plus the wall-clock time that
// was passed in, so identical inputs produce identical snapshots.
type Snapshot struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Stages      []StageMetric     `json:"stages"`
	Machines    []MachineState    `json:"machines"`
	Bottlenecks []BottleneckEntry `json:"bottlenecks"`
}
