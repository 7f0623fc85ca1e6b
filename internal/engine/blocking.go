package engine

import (
	"fmt"

	"github.com/shopfloor/floorstate/internal/domain"
)

// StageBlockFacts is the per-stage input to the stage-level resolver.
type StageBlockFacts struct {
	// MaintenanceCount is the number of machines relevant to the stage that
	// are under active maintenance. A machine is relevant when its current
	// work order has an open batch in the stage.
	MaintenanceCount int
	// QCFailCount is the number of work orders in the stage failing QC.
	QCFailCount int
	// OverdueCount is the number of batches in the stage past their order's
	// due date.
	OverdueCount int
	AvgWaitHours float64
}

// stageBlockRule pairs a reason with its predicate and the count to report.
type stageBlockRule struct {
	Reason domain.StageBlockingReason
	Match  func(StageBlockFacts, Config) (bool, int)
}

// Stage rules in dominance order: maintenance beats qc beats overdue beats
// capacity. A stage gets exactly one headline reason — compact display needs
// one answer, not a list.
var stageBlockRules = []stageBlockRule{
	{domain.StageBlockMaintenance, func(f StageBlockFacts, _ Config) (bool, int) {
		return f.MaintenanceCount > 0, f.MaintenanceCount
	}},
	{domain.StageBlockQC, func(f StageBlockFacts, _ Config) (bool, int) {
		return f.QCFailCount > 0, f.QCFailCount
	}},
	{domain.StageBlockOverdue, func(f StageBlockFacts, _ Config) (bool, int) {
		return f.OverdueCount > 0, f.OverdueCount
	}},
	{domain.StageBlockCapacity, func(f StageBlockFacts, cfg Config) (bool, int) {
		return f.AvgWaitHours > cfg.CapacityWaitHours, 0
	}},
}

// StageBlocking resolves the single dominant blocking reason for a stage.
func StageBlocking(f StageBlockFacts, cfg Config) (domain.StageBlockingReason, int) {
	for _, rule := range stageBlockRules {
		if ok, count := rule.Match(f, cfg); ok {
			return rule.Reason, count
		}
	}
	return domain.StageBlockNone, 0
}

// MachineBlockers collects every blocker currently applying to a machine, in
// a fixed order. Unlike stages, machines report the full list: the operator
// needs the complete remediation checklist, not a headline.
//
// order may be nil when the machine's work-order reference did not resolve;
// job-level QC checks are skipped in that case.
func MachineBlockers(
	m domain.Machine,
	order *domain.WorkOrderSummary,
	todayLogs []domain.ProductionLogRow,
) []string {
	var blockers []string

	if m.QCFailed() {
		blockers = append(blockers, "qc failure")
	}
	if order != nil {
		if !order.MaterialQCPassed {
			blockers = append(blockers, "material qc pending")
		}
		if !order.FirstPieceQCPassed {
			blockers = append(blockers, "first piece qc pending")
		}
	}
	for _, r := range todayLogs {
		if r.MachineID != m.ID || !r.OpenDowntime() {
			continue
		}
		reason := r.DowntimeReason
		if reason == "" {
			reason = "unspecified"
		}
		blockers = append(blockers, fmt.Sprintf("unresolved downtime: %s", reason))
	}
	return blockers
}
