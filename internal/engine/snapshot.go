package engine

import (
	"log/slog"
	"sort"
	"time"

	"github.com/shopfloor/floorstate/internal/domain"
)

// unknownLabel is the best-effort display label for dangling references.
const unknownLabel = "Unknown"

// BuildSnapshot composes the full derived picture for one refresh cycle. It
// is deterministic: the same fact set and wall-clock instant always produce
// an identical snapshot, so republishing unchanged facts is byte-stable.
//
// dayStart is the start of the current production day (shift boundary); it is
// the fallback for hours-running when a machine carries no job-start
// timestamp.
func BuildSnapshot(
	facts *FactSet,
	now time.Time,
	dayStart time.Time,
	cfg Config,
	logger *slog.Logger,
) *domain.Snapshot {
	stages := AggregateStages(facts.Batches, facts.Orders, now, logger)

	maintByMachine := facts.maintenanceByMachine()
	queueByMachine := facts.assignmentsByMachine()
	logsByMachine := facts.logsByMachine()
	openStages := facts.openStagesByOrder()

	machines := make([]domain.Machine, len(facts.Machines))
	copy(machines, facts.Machines)
	sort.Slice(machines, func(i, j int) bool { return machines[i].ID < machines[j].ID })

	states := make([]domain.MachineState, 0, len(machines))
	for _, m := range machines {
		states = append(states, deriveMachineState(
			m,
			facts,
			maintByMachine[m.ID],
			queueByMachine[m.ID],
			logsByMachine[m.ID],
			now, dayStart, cfg, logger,
		))
	}

	applyStageBlocking(stages, machines, maintByMachine, openStages, facts, cfg)

	bottlenecks := RankBottlenecks(stages, states, cfg)
	for _, e := range bottlenecks {
		if e.Kind != domain.BottleneckStage {
			continue
		}
		for i := range stages {
			if string(stages[i].Stage) == e.ID {
				stages[i].BottleneckRank = e.Rank
			}
		}
	}

	return &domain.Snapshot{
		GeneratedAt: now,
		Stages:      stages,
		Machines:    states,
		Bottlenecks: bottlenecks,
	}
}

func deriveMachineState(
	m domain.Machine,
	facts *FactSet,
	maint []domain.MaintenanceEvent,
	queue []domain.QueuedAssignment,
	todayLogs []domain.ProductionLogRow,
	now, dayStart time.Time,
	cfg Config,
	logger *slog.Logger,
) domain.MachineState {
	state := domain.MachineState{
		MachineID:   m.ID,
		Name:        m.Name,
		WorkOrderID: m.CurrentWorkOrderID,
		QueueDepth:  len(queue),
	}

	// Queue depth, queued quantity and oldest-item age. A queued assignment
	// whose work order is missing still counts toward depth, it just carries
	// zero quantity.
	var oldest time.Time
	for _, a := range queue {
		if o, err := facts.Order(a.WorkOrderID); err == nil {
			state.QueuedQuantity += o.Quantity
		}
		if oldest.IsZero() || a.ScheduledAt.Before(oldest) {
			oldest = a.ScheduledAt
		}
	}
	if !oldest.IsZero() && oldest.Before(now) {
		state.OldestQueuedHours = now.Sub(oldest).Hours()
	}

	state.Readiness = ClassifyReadiness(MachineFacts{
		Machine:     m,
		Maintenance: maint,
		QueueDepth:  state.QueueDepth,
	})

	// Resolve the current work order. A dangling reference is a soft
	// inconsistency: render with defaults, never drop the machine.
	var order *domain.WorkOrderSummary
	if m.CurrentWorkOrderID != "" {
		if o, err := facts.Order(m.CurrentWorkOrderID); err == nil {
			order = &o
			state.WorkOrderLabel = o.ID
		} else {
			state.WorkOrderLabel = unknownLabel
			logger.Warn("machine references missing work order",
				slog.String("machine_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	state.CycleTime = ResolveCycleTime(m.ID, order, todayLogs, facts.Items)
	state.Blockers = MachineBlockers(m, order, todayLogs)

	for _, r := range todayLogs {
		state.PiecesToday += r.PiecesProduced
	}

	start := dayStart
	if m.JobStartedAt != nil {
		start = *m.JobStartedAt
	}
	if start.Before(now) {
		state.HoursRunning = now.Sub(start).Hours()
	}

	state.Production = ClassifyProduction(
		state.Blockers, state.CycleTime, state.PiecesToday, state.HoursRunning, cfg,
	)
	return state
}

// applyStageBlocking resolves the headline blocking reason for each stage.
func applyStageBlocking(
	stages []domain.StageMetric,
	machines []domain.Machine,
	maintByMachine map[string][]domain.MaintenanceEvent,
	openStages map[string]map[domain.Stage]bool,
	facts *FactSet,
	cfg Config,
) {
	for i := range stages {
		s := &stages[i]

		blockFacts := StageBlockFacts{
			OverdueCount: s.OverdueCount,
			AvgWaitHours: s.AvgWaitHours,
		}

		// Machines relevant to the stage: current work order has an open
		// batch there.
		for _, m := range machines {
			if m.CurrentWorkOrderID == "" || len(maintByMachine[m.ID]) == 0 {
				continue
			}
			if openStages[m.CurrentWorkOrderID][s.Stage] {
				blockFacts.MaintenanceCount++
			}
		}

		// Work orders in the stage failing QC.
		counted := map[string]bool{}
		for _, b := range facts.Batches {
			if !b.Open() || b.Stage != s.Stage || counted[b.WorkOrderID] {
				continue
			}
			counted[b.WorkOrderID] = true
			if o, err := facts.Order(b.WorkOrderID); err == nil {
				if !o.MaterialQCPassed || !o.FirstPieceQCPassed {
					blockFacts.QCFailCount++
				}
			}
		}

		s.BlockingReason, s.BlockingCount = StageBlocking(blockFacts, cfg)
	}
}
