package engine

import "github.com/shopfloor/floorstate/internal/domain"

// ClassifyProduction labels a machine's current run by comparing actual to
// expected output.
//
// Any blocker dominates regardless of the output ratio. Without a resolved
// cycle time there is no expectation to compare against, so the run is idle.
// A non-positive expectation window (the job just started) counts as on
// cycle: no expectation has elapsed yet.
func ClassifyProduction(
	blockers []string,
	cycleTime *domain.CycleTime,
	piecesToday int,
	hoursRunning float64,
	cfg Config,
) domain.ProductionStatus {
	if len(blockers) > 0 {
		return domain.ProductionBlocked
	}
	if cycleTime == nil {
		return domain.ProductionIdle
	}

	expected := cycleTime.ExpectedPerHour() * hoursRunning
	if expected <= 0 {
		return domain.ProductionOnCycle
	}

	ratio := float64(piecesToday) / expected
	switch {
	case ratio >= cfg.OnCycleRatio:
		return domain.ProductionOnCycle
	case ratio >= cfg.AtRiskRatio:
		return domain.ProductionAtRisk
	default:
		return domain.ProductionBlocked
	}
}
