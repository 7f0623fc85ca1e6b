package engine

import "github.com/shopfloor/floorstate/internal/domain"

// ResolveCycleTime resolves the effective cycle time for a machine/work-order
// pair through the strict fallback chain: today's logged value for the exact
// pair, then the work order's declared value, then the item master. The first
// non-empty tier wins and its name is reported as provenance.
//
// A nil result means no tier resolved — the cycle time is absent, not zero,
// and no hourly expectation exists for the machine.
func ResolveCycleTime(
	machineID string,
	order *domain.WorkOrderSummary,
	logs []domain.ProductionLogRow,
	items map[string]domain.ItemMaster,
) *domain.CycleTime {
	if order == nil {
		return nil
	}

	// Tier 1: most recent log row for this exact machine+order pair.
	var best *domain.ProductionLogRow
	for i := range logs {
		r := &logs[i]
		if r.MachineID != machineID || r.WorkOrderID != order.ID || r.CycleTimeSec <= 0 {
			continue
		}
		if best == nil || r.LoggedAt.After(best.LoggedAt) {
			best = r
		}
	}
	if best != nil {
		return &domain.CycleTime{Seconds: best.CycleTimeSec, Source: domain.CycleSourceLog}
	}

	// Tier 2: declared on the work order.
	if order.CycleTimeSec > 0 {
		return &domain.CycleTime{Seconds: order.CycleTimeSec, Source: domain.CycleSourceWorkOrder}
	}

	// Tier 3: item master for the order's item code.
	if it, ok := items[order.ItemCode]; ok && it.CycleTimeSec > 0 {
		return &domain.CycleTime{Seconds: it.CycleTimeSec, Source: domain.CycleSourceItemMaster}
	}

	return nil
}
